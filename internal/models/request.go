package models

import (
	"time"

	"github.com/google/uuid"
)

// Request is a customer's unit of demand. Owned by the intake subsystem;
// this core reads it and only ever flips Approved (bulk approve).
type Request struct {
	ID            uuid.UUID `json:"id"`
	ContactEmail  string    `json:"contact_email"`
	Category      string    `json:"category"`
	Region        string    `json:"region"`
	Urgency       string    `json:"urgency"`
	SubmitterAddr string    `json:"submitter_addr"`
	Approved      bool      `json:"approved"`
	Closed        bool      `json:"closed"`
	Archived      bool      `json:"archived"`
	CreatedAt     time.Time `json:"created_at"`
}
