package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer status enums.
const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusDeclined = "declined"
)

// Offer is a provider's priced response to one Request. At most one offer
// exists per (request_id, provider_id) pair, enforced by a unique index.
type Offer struct {
	ID                  uuid.UUID `json:"id"`
	RequestID           uuid.UUID `json:"request_id"`
	ProviderID          uuid.UUID `json:"provider_id"`
	Price               float64   `json:"price"`
	Message             string    `json:"message"`
	CostPaid            int       `json:"cost_paid"`
	Status              string    `json:"status"`
	Refunded            bool      `json:"refunded"`
	RefundEligibleUntil time.Time `json:"refund_eligible_until"`
	CreatedAt           time.Time `json:"created_at"`
}
