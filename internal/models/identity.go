package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityRecord tracks the device/network identifiers observed for one
// account. One row per uid, upserted on every register/login event.
type IdentityRecord struct {
	UID          uuid.UUID `json:"uid"`
	Role         string    `json:"role"`
	Email        string    `json:"email"`
	DeviceID     string    `json:"device_id"`
	NetworkAddrs []string  `json:"network_addrs"`
	EventCount   int       `json:"event_count"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}
