package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry_type enums.
const (
	LedgerEntryOfferPlacement = "offer_placement"
	LedgerEntryAdjustmentAdd  = "adjustment_add"
	LedgerEntryAdjustmentSub  = "adjustment_sub"
	LedgerEntryWelcomeGrant   = "welcome_grant"
	LedgerEntryRefund         = "refund"
)

// LedgerEntry is the immutable record of one balance change. Amount is
// signed; BalanceAfter is the provider balance after the mutation, written
// in the same atomic unit.
type LedgerEntry struct {
	ID           uuid.UUID  `json:"id"`
	ProviderID   uuid.UUID  `json:"provider_id"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter int        `json:"balance_after"`
	ReferenceID  *uuid.UUID `json:"reference_id,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
