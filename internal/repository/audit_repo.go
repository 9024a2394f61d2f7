package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offerhub/backend/internal/models"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, e *models.AuditLogEntry) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO audit_log (id, actor_id, action, target_count, params)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, e.ID, e.ActorID, e.Action, e.TargetCount, e.Params).Scan(&e.CreatedAt)
}
