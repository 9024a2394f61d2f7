package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IdentityRepo struct {
	pool *pgxpool.Pool
}

func NewIdentityRepo(pool *pgxpool.Pool) *IdentityRepo {
	return &IdentityRepo{pool: pool}
}

// Upsert records one auth event for uid: latest device id, network address
// added to the observed set, event counter bumped, last_seen refreshed.
func (r *IdentityRepo) Upsert(ctx context.Context, uid uuid.UUID, role, email, deviceID, networkAddr string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO identity_records (uid, role, email, device_id, network_addrs, event_count, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, ARRAY[$5], 1, now(), now())
		ON CONFLICT (uid) DO UPDATE SET
			role = EXCLUDED.role,
			email = EXCLUDED.email,
			device_id = EXCLUDED.device_id,
			network_addrs = (
				SELECT ARRAY(SELECT DISTINCT a FROM unnest(identity_records.network_addrs || EXCLUDED.network_addrs) AS a)
			),
			event_count = identity_records.event_count + 1,
			last_seen = now()
	`, uid, role, email, deviceID, networkAddr)
	return err
}

// FindByDeviceID returns uids (other than excludeUID) whose latest device
// fingerprint matches, capped at limit.
func (r *IdentityRepo) FindByDeviceID(ctx context.Context, deviceID string, excludeUID uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT uid FROM identity_records WHERE device_id = $1 AND uid <> $2 LIMIT $3
	`, deviceID, excludeUID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var uids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		uids = append(uids, id)
	}
	return uids, rows.Err()
}

// FindByNetworkAddr returns uids (other than excludeUID) that have observed
// the given network address, capped at limit.
func (r *IdentityRepo) FindByNetworkAddr(ctx context.Context, addr string, excludeUID uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT uid FROM identity_records WHERE $1 = ANY(network_addrs) AND uid <> $2 LIMIT $3
	`, addr, excludeUID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var uids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		uids = append(uids, id)
	}
	return uids, rows.Err()
}
