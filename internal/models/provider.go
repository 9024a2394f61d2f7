package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider verification_state enums.
const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
	VerificationRejected   = "rejected"
)

type Provider struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	DisplayName       string    `json:"display_name"`
	PasswordHash      string    `json:"-"`
	CreditBalance     int       `json:"credit_balance"`
	VerificationState string    `json:"verification_state"`
	IsOperator        bool      `json:"is_operator"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
