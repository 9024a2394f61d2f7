package models

import (
	"time"

	"github.com/google/uuid"
)

// Fraud flag severity enums, derived from linked-account count.
const (
	FraudSeverityLow    = "low"
	FraudSeverityMedium = "medium"
	FraudSeverityHigh   = "high"
)

// Fraud flag status enums. Transitions are operator-driven.
const (
	FraudStatusPending   = "pending"
	FraudStatusReviewed  = "reviewed"
	FraudStatusDismissed = "dismissed"
	FraudStatusConfirmed = "confirmed"
)

// FraudFlag records evidence that FlaggedUID is linked to LinkedUIDs via a
// shared device fingerprint or network address.
type FraudFlag struct {
	ID                uuid.UUID   `json:"id"`
	FlaggedUID        uuid.UUID   `json:"flagged_uid"`
	LinkedUIDs        []uuid.UUID `json:"linked_uids"`
	SharedDeviceID    string      `json:"shared_device_id,omitempty"`
	SharedNetworkAddr string      `json:"shared_network_addr,omitempty"`
	Reasons           []string    `json:"reasons"`
	Severity          string      `json:"severity"`
	Status            string      `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
}
