package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offerhub/backend/internal/models"
)

type RequestRepo struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

const requestColumns = `id, contact_email, category, region, urgency, submitter_addr, approved, closed, archived, created_at`

func scanRequest(row pgx.Row) (*models.Request, error) {
	var q models.Request
	err := row.Scan(&q.ID, &q.ContactEmail, &q.Category, &q.Region, &q.Urgency, &q.SubmitterAddr, &q.Approved, &q.Closed, &q.Archived, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
}

// ListSince returns requests created at or after since, newest first.
func (r *RequestRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]*models.Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Request
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// QueueApprove queues an approval-flag update onto a bulk batch.
func (r *RequestRepo) QueueApprove(b *pgx.Batch, id uuid.UUID) {
	b.Queue(`UPDATE requests SET approved = TRUE WHERE id = $1`, id)
}
