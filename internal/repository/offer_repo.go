package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offerhub/backend/internal/models"
)

type OfferRepo struct {
	pool *pgxpool.Pool
}

func NewOfferRepo(pool *pgxpool.Pool) *OfferRepo {
	return &OfferRepo{pool: pool}
}

const offerColumns = `id, request_id, provider_id, price, message, cost_paid, status, refunded, refund_eligible_until, created_at`

// ExistsByRequestProvider is the cheap pre-check before the atomic section.
// The unique index on (request_id, provider_id) is the source of truth.
func (r *OfferRepo) ExistsByRequestProvider(ctx context.Context, requestID, providerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM offers WHERE request_id = $1 AND provider_id = $2)
	`, requestID, providerID).Scan(&exists)
	return exists, err
}

// CreateTx inserts the offer inside the placement transaction.
func (r *OfferRepo) CreateTx(ctx context.Context, tx pgx.Tx, o *models.Offer) error {
	return tx.QueryRow(ctx, `
		INSERT INTO offers (id, request_id, provider_id, price, message, cost_paid, status, refunded, refund_eligible_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, o.ID, o.RequestID, o.ProviderID, o.Price, o.Message, o.CostPaid, o.Status, o.Refunded, o.RefundEligibleUntil).Scan(&o.CreatedAt)
}

func (r *OfferRepo) ListByProviderID(ctx context.Context, providerID uuid.UUID) ([]*models.Offer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+offerColumns+` FROM offers WHERE provider_id = $1 ORDER BY created_at DESC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Offer
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.RequestID, &o.ProviderID, &o.Price, &o.Message, &o.CostPaid, &o.Status, &o.Refunded, &o.RefundEligibleUntil, &o.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &o)
	}
	return list, rows.Err()
}
