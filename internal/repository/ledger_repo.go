package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offerhub/backend/internal/models"
)

type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// CreateTx appends a ledger entry inside the given transaction.
func (r *LedgerRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, provider_id, entry_type, amount, balance_after, reference_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, e.ID, e.ProviderID, e.EntryType, e.Amount, e.BalanceAfter, e.ReferenceID, e.Reason).Scan(&e.CreatedAt)
}

// QueueInsert queues a ledger append onto a bulk batch.
func (r *LedgerRepo) QueueInsert(b *pgx.Batch, e *models.LedgerEntry) {
	b.Queue(`
		INSERT INTO ledger_entries (id, provider_id, entry_type, amount, balance_after, reference_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.ProviderID, e.EntryType, e.Amount, e.BalanceAfter, e.ReferenceID, e.Reason)
}

func (r *LedgerRepo) ListByProviderID(ctx context.Context, providerID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, entry_type, amount, balance_after, reference_id, reason, created_at
		FROM ledger_entries WHERE provider_id = $1 ORDER BY created_at DESC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.ProviderID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.ReferenceID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
