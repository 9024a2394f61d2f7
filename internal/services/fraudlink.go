package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/google/uuid"

	"github.com/offerhub/backend/internal/models"
)

// Track event names.
const (
	TrackEventRegister = "register"
	TrackEventLogin    = "login"
)

const (
	deviceIDMinLen = 8
	deviceIDMaxLen = 128

	// linkLookupLimit caps each identifier lookup; the identity graph is
	// searched per registration, not persisted.
	linkLookupLimit = 10
)

// IdentityStore is the identifier index consulted by the detector.
type IdentityStore interface {
	Upsert(ctx context.Context, uid uuid.UUID, role, email, deviceID, networkAddr string) error
	FindByDeviceID(ctx context.Context, deviceID string, excludeUID uuid.UUID, limit int) ([]uuid.UUID, error)
	FindByNetworkAddr(ctx context.Context, addr string, excludeUID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// FlagStore writes and queries fraud flags.
type FlagStore interface {
	Create(ctx context.Context, f *models.FraudFlag) error
	ExistsReferencing(ctx context.Context, flaggedUID, referencedUID uuid.UUID) (bool, error)
}

// TrackEvent is one observed authentication event.
type TrackEvent struct {
	UID         uuid.UUID
	DeviceID    string
	NetworkAddr string
	Event       string
	Role        string
	Email       string
}

// TrackResult reports whether the event produced a fraud flag.
type TrackResult struct {
	Flagged bool `json:"flagged"`
}

// FraudService records device/network identifiers per account and, on
// registration, cross-references them against other accounts.
type FraudService struct {
	Identities IdentityStore
	Flags      FlagStore
	Logger     *slog.Logger
}

func NewFraudService(identities IdentityStore, flags FlagStore, logger *slog.Logger) *FraudService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FraudService{Identities: identities, Flags: flags, Logger: logger}
}

// Track upserts the identity record unconditionally, then on register only
// searches for accounts sharing the device fingerprint or network address.
// Login events never trigger the graph search; repeat usage would generate
// a flag storm.
func (s *FraudService) Track(ctx context.Context, ev TrackEvent) (*TrackResult, error) {
	if ev.Event != TrackEventRegister && ev.Event != TrackEventLogin {
		return nil, ErrUnknownTrackEvent
	}
	if !validDeviceID(ev.DeviceID) {
		return nil, ErrInvalidDeviceID
	}
	addr, err := netip.ParseAddr(ev.NetworkAddr)
	if err != nil {
		return nil, ErrInvalidNetworkAddr
	}
	normalizedAddr := addr.String()

	if err := s.Identities.Upsert(ctx, ev.UID, ev.Role, ev.Email, ev.DeviceID, normalizedAddr); err != nil {
		return nil, err
	}

	if ev.Event != TrackEventRegister {
		return &TrackResult{Flagged: false}, nil
	}

	deviceMatches, err := s.Identities.FindByDeviceID(ctx, ev.DeviceID, ev.UID, linkLookupLimit)
	if err != nil {
		return nil, err
	}
	addrMatches, err := s.Identities.FindByNetworkAddr(ctx, normalizedAddr, ev.UID, linkLookupLimit)
	if err != nil {
		return nil, err
	}

	linked := unionUIDs(deviceMatches, addrMatches)
	if len(linked) == 0 {
		return &TrackResult{Flagged: false}, nil
	}

	// Re-registration finds the same neighbours again; only links not yet
	// referenced by one of this account's flags produce new writes, so a
	// repeated register leaves exactly one flag per direction.
	newLinks := make([]uuid.UUID, 0, len(linked))
	for _, other := range linked {
		has, err := s.Flags.ExistsReferencing(ctx, ev.UID, other)
		if err != nil {
			return nil, err
		}
		if !has {
			newLinks = append(newLinks, other)
		}
	}
	if len(newLinks) == 0 {
		return &TrackResult{Flagged: true}, nil
	}

	flag := &models.FraudFlag{
		ID:         uuid.New(),
		FlaggedUID: ev.UID,
		LinkedUIDs: newLinks,
		Severity:   severityFor(len(linked)),
		Status:     models.FraudStatusPending,
	}
	if len(deviceMatches) > 0 {
		flag.SharedDeviceID = ev.DeviceID
		flag.Reasons = append(flag.Reasons, fmt.Sprintf("same device fingerprint shared with %d other account(s)", len(deviceMatches)))
	}
	if len(addrMatches) > 0 {
		flag.SharedNetworkAddr = normalizedAddr
		flag.Reasons = append(flag.Reasons, fmt.Sprintf("same network address shared with %d other account(s)", len(addrMatches)))
	}
	if err := s.Flags.Create(ctx, flag); err != nil {
		return nil, err
	}

	// Reciprocal low-severity flags so investigators can find the link
	// from either side. The existence check keeps re-registration from
	// piling up back-references.
	for _, other := range newLinks {
		has, err := s.Flags.ExistsReferencing(ctx, other, ev.UID)
		if err != nil {
			return nil, err
		}
		if has {
			continue
		}
		back := &models.FraudFlag{
			ID:         uuid.New(),
			FlaggedUID: other,
			LinkedUIDs: []uuid.UUID{ev.UID},
			Reasons:    []string{fmt.Sprintf("linked from newly registered account %s", ev.UID)},
			Severity:   models.FraudSeverityLow,
			Status:     models.FraudStatusPending,
		}
		if len(deviceMatches) > 0 {
			back.SharedDeviceID = ev.DeviceID
		}
		if len(addrMatches) > 0 {
			back.SharedNetworkAddr = normalizedAddr
		}
		if err := s.Flags.Create(ctx, back); err != nil {
			return nil, err
		}
	}

	return &TrackResult{Flagged: true}, nil
}

func validDeviceID(id string) bool {
	if len(id) < deviceIDMinLen || len(id) > deviceIDMaxLen {
		return false
	}
	return !strings.ContainsAny(id, " \t\r\n")
}

func severityFor(linkedCount int) string {
	switch {
	case linkedCount >= 3:
		return models.FraudSeverityHigh
	case linkedCount >= 2:
		return models.FraudSeverityMedium
	default:
		return models.FraudSeverityLow
	}
}

func unionUIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	var out []uuid.UUID
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
