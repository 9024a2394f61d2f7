package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/offerhub/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PlacementProviderStore is the minimal provider repository interface for placement.
type PlacementProviderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	DebitCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// PlacementRequestStore reads the request being responded to.
type PlacementRequestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
}

// PlacementOfferStore checks for and creates offers.
type PlacementOfferStore interface {
	ExistsByRequestProvider(ctx context.Context, requestID, providerID uuid.UUID) (bool, error)
	CreateTx(ctx context.Context, tx pgx.Tx, o *models.Offer) error
}

// PlacementLedgerStore appends the placement ledger entry.
type PlacementLedgerStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
}

// OfferNotifier enqueues the best-effort owner notification after commit.
type OfferNotifier interface {
	OfferPlaced(ctx context.Context, offer *models.Offer, req *models.Request) error
}

// PlacementResult is returned on a successful placement.
type PlacementResult struct {
	OfferID          uuid.UUID `json:"offer_id"`
	CostPaid         int       `json:"cost_paid"`
	RemainingBalance int       `json:"remaining_balance"`
}

// PlacementService validates a provider's eligibility, computes the cost,
// and atomically debits the balance while creating the offer and ledger
// entry.
type PlacementService struct {
	Pool          TxBeginner
	Providers     PlacementProviderStore
	Requests      PlacementRequestStore
	Offers        PlacementOfferStore
	Ledger        PlacementLedgerStore
	Pricing       PricingFunc
	Notifier      OfferNotifier
	MessageMaxLen int
	RefundWindow  time.Duration
	Logger        *slog.Logger
}

func NewPlacementService(pool TxBeginner, providers PlacementProviderStore, requests PlacementRequestStore, offers PlacementOfferStore, ledger PlacementLedgerStore, pricing PricingFunc, notifier OfferNotifier, messageMaxLen int, refundWindow time.Duration, logger *slog.Logger) *PlacementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlacementService{
		Pool:          pool,
		Providers:     providers,
		Requests:      requests,
		Offers:        offers,
		Ledger:        ledger,
		Pricing:       pricing,
		Notifier:      notifier,
		MessageMaxLen: messageMaxLen,
		RefundWindow:  refundWindow,
		Logger:        logger,
	}
}

// PlaceOffer runs the precondition checks in order, then debits, creates
// the offer and appends the ledger entry in one transaction. The balance
// check before the transaction is a fast-fail courtesy; the conditional
// debit inside the transaction is the source of truth, so two concurrent
// placements cannot double-spend the same credits.
func (s *PlacementService) PlaceOffer(ctx context.Context, providerID, requestID uuid.UUID, price float64, message string) (*PlacementResult, error) {
	if price <= 0 {
		return nil, ErrInvalidPrice
	}
	if len(message) > s.MessageMaxLen {
		return nil, ErrMessageTooLong
	}

	provider, err := s.Providers.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	if provider.VerificationState != models.VerificationVerified {
		return nil, ErrProviderNotVerified
	}

	req, err := s.Requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	switch {
	case req.Archived:
		return nil, ErrRequestArchived
	case req.Closed:
		return nil, ErrRequestClosed
	case !req.Approved:
		return nil, ErrRequestNotApproved
	}

	exists, err := s.Offers.ExistsByRequestProvider(ctx, requestID, providerID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateOffer
	}

	cost := s.Pricing(req)

	if provider.CreditBalance < cost {
		return nil, ErrInsufficientBalance
	}

	offer := &models.Offer{
		ID:                  uuid.New(),
		RequestID:           requestID,
		ProviderID:          providerID,
		Price:               price,
		Message:             message,
		CostPaid:            cost,
		Status:              models.OfferStatusPending,
		RefundEligibleUntil: time.Now().Add(s.RefundWindow),
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	newBalance, err := s.Providers.DebitCredits(ctx, tx, providerID, cost)
	if err != nil {
		// No row matched the balance condition: a concurrent debit won
		// the race since the pre-check.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	if err := s.Offers.CreateTx(ctx, tx, offer); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateOffer
		}
		return nil, err
	}

	if err := s.Ledger.CreateTx(ctx, tx, &models.LedgerEntry{
		ID:           uuid.New(),
		ProviderID:   providerID,
		EntryType:    models.LedgerEntryOfferPlacement,
		Amount:       -cost,
		BalanceAfter: newBalance,
		ReferenceID:  &offer.ID,
		Reason:       "offer placement",
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Best-effort: a failed notification never rolls back the offer.
	if s.Notifier != nil {
		if err := s.Notifier.OfferPlaced(ctx, offer, req); err != nil {
			s.Logger.Error("offer notification enqueue failed", "offer_id", offer.ID, "error", err)
		}
	}

	return &PlacementResult{
		OfferID:          offer.ID,
		CostPaid:         cost,
		RemainingBalance: newBalance,
	}, nil
}
