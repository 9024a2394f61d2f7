package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/offerhub/backend/internal/models"
)

// routeKey groups requests by who asked for what, where. A struct key keeps
// field boundaries intact no matter what characters the email contains.
type routeKey struct {
	contact, category, region string
}

const (
	// dupeScanMaxRows bounds one scan against the backing store.
	dupeScanMaxRows = 2000

	// addrSubmissionThreshold flags a network address submitting more
	// requests than plausible for one household in the window.
	addrSubmissionThreshold = 5
)

// ScanRequestStore lists recent requests for the read-only scan.
type ScanRequestStore interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]*models.Request, error)
}

// DuplicateGroup is a set of requests sharing a contact and route within
// the scan window.
type DuplicateGroup struct {
	ContactEmail string      `json:"contact_email"`
	Category     string      `json:"category"`
	Region       string      `json:"region"`
	RequestIDs   []uuid.UUID `json:"request_ids"`
}

// SuspiciousAddr is a submitter address with an anomalously high count.
type SuspiciousAddr struct {
	Addr  string `json:"addr"`
	Count int    `json:"count"`
}

// DuplicateScanReport is returned to operator tooling; nothing is mutated.
type DuplicateScanReport struct {
	WindowStart     time.Time        `json:"window_start"`
	Scanned         int              `json:"scanned"`
	DuplicateGroups []DuplicateGroup `json:"duplicate_groups"`
	SuspiciousAddrs []SuspiciousAddr `json:"suspicious_addrs"`
}

// DupeScanService flags probable duplicate submissions among recent
// requests.
type DupeScanService struct {
	Requests ScanRequestStore
	Audit    AuditStore
	Window   time.Duration
	Logger   *slog.Logger
}

func NewDupeScanService(requests ScanRequestStore, audit AuditStore, window time.Duration, logger *slog.Logger) *DupeScanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DupeScanService{Requests: requests, Audit: audit, Window: window, Logger: logger}
}

// DetectDuplicates groups the window's requests by (contact email,
// category, region) and flags groups of two or more, plus any submitter
// address over the submission threshold. One audit entry, no mutations.
func (s *DupeScanService) DetectDuplicates(ctx context.Context, actorID uuid.UUID) (*DuplicateScanReport, error) {
	since := time.Now().Add(-s.Window)
	requests, err := s.Requests.ListSince(ctx, since, dupeScanMaxRows)
	if err != nil {
		return nil, err
	}

	byRoute := make(map[routeKey][]uuid.UUID)
	byAddr := make(map[string]int)
	for _, q := range requests {
		key := routeKey{contact: q.ContactEmail, category: q.Category, region: q.Region}
		byRoute[key] = append(byRoute[key], q.ID)
		if q.SubmitterAddr != "" {
			byAddr[q.SubmitterAddr]++
		}
	}

	report := &DuplicateScanReport{WindowStart: since, Scanned: len(requests)}
	for key, ids := range byRoute {
		if len(ids) < 2 {
			continue
		}
		report.DuplicateGroups = append(report.DuplicateGroups, DuplicateGroup{
			ContactEmail: key.contact,
			Category:     key.category,
			Region:       key.region,
			RequestIDs:   ids,
		})
	}
	for addr, n := range byAddr {
		if n > addrSubmissionThreshold {
			report.SuspiciousAddrs = append(report.SuspiciousAddrs, SuspiciousAddr{Addr: addr, Count: n})
		}
	}

	params, _ := json.Marshal(map[string]int{
		"scanned":          report.Scanned,
		"duplicate_groups": len(report.DuplicateGroups),
		"suspicious_addrs": len(report.SuspiciousAddrs),
	})
	if err := s.Audit.Create(ctx, &models.AuditLogEntry{
		ID:          uuid.New(),
		ActorID:     actorID,
		Action:      "duplicate-scan",
		TargetCount: report.Scanned,
		Params:      params,
	}); err != nil {
		s.Logger.Error("duplicate scan audit write failed", "error", err)
	}

	return report, nil
}
