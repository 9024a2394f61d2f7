package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/offerhub/backend/internal/models"
	"github.com/offerhub/backend/internal/notify"
)

// Bulk operation types. Closed enum; anything else is rejected before any
// write.
const (
	BulkApproveRequests    = "approve-requests"
	BulkVerifyProviders    = "verify-providers"
	BulkAdjustCredits      = "adjust-credits"
	BulkSendNotifications  = "send-notifications"
	DefaultBulkMaxEntities = 200
)

// BulkProviderStore reads providers and queues their bulk mutations.
type BulkProviderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	QueueSetVerified(b *pgx.Batch, id uuid.UUID)
	QueueSetBalance(b *pgx.Batch, id uuid.UUID, balance int)
}

// BulkRequestStore reads requests and queues their bulk mutations.
type BulkRequestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	QueueApprove(b *pgx.Batch, id uuid.UUID)
}

// BulkLedgerStore queues ledger appends onto the batch.
type BulkLedgerStore interface {
	QueueInsert(b *pgx.Batch, e *models.LedgerEntry)
}

// AuditStore records the per-invocation audit entry.
type AuditStore interface {
	Create(ctx context.Context, e *models.AuditLogEntry) error
}

// BulkNotifier queues notification jobs in the batch transaction.
type BulkNotifier interface {
	EnqueueManyTx(ctx context.Context, tx pgx.Tx, msgs []notify.Message) error
}

// BulkParams carries the operation-specific inputs.
type BulkParams struct {
	Amount  int    `json:"amount,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// EntityResult is the per-id outcome of one bulk run.
type EntityResult struct {
	ID    uuid.UUID `json:"id"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

// BulkResult reports one executor invocation.
type BulkResult struct {
	Processed int            `json:"processed"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []EntityResult `json:"per_entity_results"`
}

// BulkOperationTemplate describes one available operation for operator
// tooling.
type BulkOperationTemplate struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
}

// ListBulkOperations returns the closed set of operation templates.
func ListBulkOperations() []BulkOperationTemplate {
	return []BulkOperationTemplate{
		{Type: BulkApproveRequests, Description: "Set the approval flag on each request", Params: nil},
		{Type: BulkVerifyProviders, Description: "Mark each provider as verified", Params: nil},
		{Type: BulkAdjustCredits, Description: "Add or subtract credits on each provider, with a ledger entry per provider", Params: []string{"amount", "reason"}},
		{Type: BulkSendNotifications, Description: "Queue one notification per provider", Params: []string{"subject", "body"}},
	}
}

// BulkService applies one mutation template to up to MaxEntities entities
// in a single batched write.
type BulkService struct {
	Pool        TxBeginner
	Providers   BulkProviderStore
	Requests    BulkRequestStore
	Ledger      BulkLedgerStore
	Audit       AuditStore
	Notifier    BulkNotifier
	MaxEntities int
	Logger      *slog.Logger
}

func NewBulkService(pool TxBeginner, providers BulkProviderStore, requests BulkRequestStore, ledger BulkLedgerStore, audit AuditStore, notifier BulkNotifier, maxEntities int, logger *slog.Logger) *BulkService {
	if maxEntities <= 0 {
		maxEntities = DefaultBulkMaxEntities
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkService{
		Pool:        pool,
		Providers:   providers,
		Requests:    requests,
		Ledger:      ledger,
		Audit:       audit,
		Notifier:    notifier,
		MaxEntities: maxEntities,
		Logger:      logger,
	}
}

// RunBulk validates, builds one batch, commits it all-or-nothing, and
// writes one audit entry. Entities that fail pre-validation (not found,
// would go negative) are recorded in the result and excluded from the
// batch without aborting the rest.
//
// adjust-credits reads each balance before queueing its update line but
// does not re-read inside the transaction; a concurrent debit during a
// bulk run is a known, accepted race since bulk runs are operator-driven
// and infrequent.
func (s *BulkService) RunBulk(ctx context.Context, actorID uuid.UUID, op string, ids []uuid.UUID, params BulkParams) (*BulkResult, error) {
	switch op {
	case BulkApproveRequests, BulkVerifyProviders, BulkAdjustCredits, BulkSendNotifications:
	default:
		return nil, ErrUnknownOperation
	}
	if len(ids) == 0 {
		return nil, ErrNoEntities
	}
	if len(ids) > s.MaxEntities {
		return nil, ErrBatchTooLarge
	}
	if op == BulkAdjustCredits && params.Amount == 0 {
		return nil, ErrMissingAdjustment
	}
	if op == BulkSendNotifications && (params.Subject == "" || params.Body == "") {
		return nil, ErrMissingNotifyBody
	}

	b := &pgx.Batch{}
	var msgs []notify.Message
	results := make([]EntityResult, 0, len(ids))

	// A repeated id would queue two absolute-balance writes computed from
	// the same read, silently dropping one adjustment while the ledger
	// records both. Each entity is queued at most once per run.
	seen := make(map[uuid.UUID]struct{}, len(ids))

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			results = append(results, EntityResult{ID: id, Error: "duplicate entity id"})
			continue
		}
		seen[id] = struct{}{}
		if err := s.queueEntity(ctx, b, &msgs, op, id, params); err != nil {
			results = append(results, EntityResult{ID: id, Error: err.Error()})
			continue
		}
		results = append(results, EntityResult{ID: id, OK: true})
	}

	if b.Len() > 0 || len(msgs) > 0 {
		if err := s.commitBatch(ctx, b, msgs); err != nil {
			return nil, err
		}
	}

	s.writeAudit(ctx, actorID, op, len(ids), params)

	res := &BulkResult{Processed: len(ids), Results: results}
	for _, r := range results {
		if r.OK {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

func (s *BulkService) queueEntity(ctx context.Context, b *pgx.Batch, msgs *[]notify.Message, op string, id uuid.UUID, params BulkParams) error {
	switch op {
	case BulkApproveRequests:
		if _, err := s.Requests.GetByID(ctx, id); err != nil {
			return entityLookupErr("request", err)
		}
		s.Requests.QueueApprove(b, id)

	case BulkVerifyProviders:
		if _, err := s.Providers.GetByID(ctx, id); err != nil {
			return entityLookupErr("provider", err)
		}
		s.Providers.QueueSetVerified(b, id)

	case BulkAdjustCredits:
		p, err := s.Providers.GetByID(ctx, id)
		if err != nil {
			return entityLookupErr("provider", err)
		}
		newBalance := p.CreditBalance + params.Amount
		if newBalance < 0 {
			return fmt.Errorf("adjustment would drive balance negative (%d%+d)", p.CreditBalance, params.Amount)
		}
		s.Providers.QueueSetBalance(b, id, newBalance)
		entryType := models.LedgerEntryAdjustmentAdd
		if params.Amount < 0 {
			entryType = models.LedgerEntryAdjustmentSub
		}
		s.Ledger.QueueInsert(b, &models.LedgerEntry{
			ID:           uuid.New(),
			ProviderID:   id,
			EntryType:    entryType,
			Amount:       params.Amount,
			BalanceAfter: newBalance,
			Reason:       params.Reason,
		})

	case BulkSendNotifications:
		p, err := s.Providers.GetByID(ctx, id)
		if err != nil {
			return entityLookupErr("provider", err)
		}
		*msgs = append(*msgs, notify.Message{
			RecipientID: id,
			Recipient:   p.Email,
			Subject:     params.Subject,
			Body:        params.Body,
			Kind:        notify.KindBulk,
		})
	}
	return nil
}

// commitBatch sends the whole batch in one transaction; the storage layer
// applies it all-or-nothing.
func (s *BulkService) commitBatch(ctx context.Context, b *pgx.Batch, msgs []notify.Message) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if b.Len() > 0 {
		br := tx.SendBatch(ctx, b)
		if err := br.Close(); err != nil {
			return err
		}
	}
	if len(msgs) > 0 {
		if err := s.Notifier.EnqueueManyTx(ctx, tx, msgs); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// writeAudit records the invocation even when every entity failed
// pre-validation and no batch was committed.
func (s *BulkService) writeAudit(ctx context.Context, actorID uuid.UUID, op string, count int, params BulkParams) {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = nil
	}
	entry := &models.AuditLogEntry{
		ID:          uuid.New(),
		ActorID:     actorID,
		Action:      "bulk:" + op,
		TargetCount: count,
		Params:      raw,
	}
	if err := s.Audit.Create(ctx, entry); err != nil {
		s.Logger.Error("bulk audit write failed", "operation", op, "error", err)
	}
}

func entityLookupErr(kind string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s not found", kind)
	}
	return err
}
