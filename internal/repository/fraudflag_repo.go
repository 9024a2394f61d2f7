package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offerhub/backend/internal/models"
)

type FraudFlagRepo struct {
	pool *pgxpool.Pool
}

func NewFraudFlagRepo(pool *pgxpool.Pool) *FraudFlagRepo {
	return &FraudFlagRepo{pool: pool}
}

func (r *FraudFlagRepo) Create(ctx context.Context, f *models.FraudFlag) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO fraud_flags (id, flagged_uid, linked_uids, shared_device_id, shared_network_addr, reasons, severity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, f.ID, f.FlaggedUID, f.LinkedUIDs, f.SharedDeviceID, f.SharedNetworkAddr, f.Reasons, f.Severity, f.Status).Scan(&f.CreatedAt)
}

// ExistsReferencing reports whether flaggedUID already has a flag whose
// linked set contains referencedUID. Guards reciprocal-flag duplication.
func (r *FraudFlagRepo) ExistsReferencing(ctx context.Context, flaggedUID, referencedUID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fraud_flags WHERE flagged_uid = $1 AND $2 = ANY(linked_uids)
		)
	`, flaggedUID, referencedUID).Scan(&exists)
	return exists, err
}

func (r *FraudFlagRepo) ListPending(ctx context.Context, limit int) ([]*models.FraudFlag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, flagged_uid, linked_uids, shared_device_id, shared_network_addr, reasons, severity, status, created_at
		FROM fraud_flags WHERE status = $1 ORDER BY created_at DESC LIMIT $2
	`, models.FraudStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.FraudFlag
	for rows.Next() {
		var f models.FraudFlag
		if err := rows.Scan(&f.ID, &f.FlaggedUID, &f.LinkedUIDs, &f.SharedDeviceID, &f.SharedNetworkAddr, &f.Reasons, &f.Severity, &f.Status, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &f)
	}
	return list, rows.Err()
}
