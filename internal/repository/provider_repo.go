package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offerhub/backend/internal/models"
)

type ProviderRepo struct {
	pool *pgxpool.Pool
}

func NewProviderRepo(pool *pgxpool.Pool) *ProviderRepo {
	return &ProviderRepo{pool: pool}
}

const providerColumns = `id, email, display_name, password_hash, credit_balance, verification_state, is_operator, created_at, updated_at`

func scanProvider(row pgx.Row) (*models.Provider, error) {
	var p models.Provider
	err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.PasswordHash, &p.CreditBalance, &p.VerificationState, &p.IsOperator, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTx inserts a new provider inside the given transaction (registration
// pairs it with the welcome_grant ledger entry).
func (r *ProviderRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Provider) error {
	return tx.QueryRow(ctx, `
		INSERT INTO providers (id, email, display_name, password_hash, credit_balance, verification_state, is_operator)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, p.ID, p.Email, p.DisplayName, p.PasswordHash, p.CreditBalance, p.VerificationState, p.IsOperator).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *ProviderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	return scanProvider(r.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id))
}

func (r *ProviderRepo) GetByEmail(ctx context.Context, email string) (*models.Provider, error) {
	return scanProvider(r.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE email = $1`, email))
}

// DebitCredits atomically deducts amount if credit_balance >= amount. The
// condition doubles as the transactional balance re-read: when it does not
// hold, no row is updated and pgx.ErrNoRows comes back. Call within a tx.
func (r *ProviderRepo) DebitCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE providers SET credit_balance = credit_balance - $1, updated_at = now()
		WHERE id = $2 AND credit_balance >= $1
		RETURNING credit_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// QueueSetVerified queues a verification-state update onto a bulk batch.
func (r *ProviderRepo) QueueSetVerified(b *pgx.Batch, id uuid.UUID) {
	b.Queue(`UPDATE providers SET verification_state = $2, updated_at = now() WHERE id = $1`, id, models.VerificationVerified)
}

// QueueSetBalance queues an absolute balance write onto a bulk batch. The
// new balance is computed from a read outside the batch; see the bulk
// executor for the accepted race.
func (r *ProviderRepo) QueueSetBalance(b *pgx.Batch, id uuid.UUID, balance int) {
	b.Queue(`UPDATE providers SET credit_balance = $2, updated_at = now() WHERE id = $1`, id, balance)
}
