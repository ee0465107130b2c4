package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
)

// PostgresUserRepository implements repositories.UserRepository over the
// Storage Adapter.
type PostgresUserRepository struct {
	adapter *storage.Adapter
}

func NewPostgresUserRepository(adapter *storage.Adapter) *PostgresUserRepository {
	return &PostgresUserRepository{adapter: adapter}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	var u entities.User
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &u, `SELECT id, handle, display_name, region_code, trust_score,
			consent_version, is_active, created_at FROM users WHERE id = $1`, id)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *entities.User) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users
			(id, handle, display_name, region_code, trust_score, consent_version, is_active, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,now())`,
			u.ID, u.Handle, u.DisplayName, u.RegionCode, u.TrustScore, u.ConsentVersion, u.IsActive)
		return err
	})
}

func (r *PostgresUserRepository) Update(ctx context.Context, u *entities.User) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE users SET display_name=$2, region_code=$3,
			trust_score=$4, consent_version=$5, is_active=$6 WHERE id=$1`,
			u.ID, u.DisplayName, u.RegionCode, u.TrustScore, u.ConsentVersion, u.IsActive)
		return err
	})
}

// PostgresFriendshipRepository implements repositories.FriendshipRepository.
type PostgresFriendshipRepository struct {
	adapter *storage.Adapter
}

func NewPostgresFriendshipRepository(adapter *storage.Adapter) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{adapter: adapter}
}

func (r *PostgresFriendshipRepository) Get(ctx context.Context, a, b uuid.UUID) (*entities.Friendship, error) {
	lo, hi := entities.CanonicalPair(a, b)
	var f entities.Friendship
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &f, `SELECT user_id_a, user_id_b, status, initiated_by, accepted_at
			FROM friendships WHERE user_id_a=$1 AND user_id_b=$2`, lo, hi)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PostgresFriendshipRepository) Upsert(ctx context.Context, f *entities.Friendship) error {
	lo, hi := entities.CanonicalPair(f.UserIDA, f.UserIDB)
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO friendships
			(user_id_a, user_id_b, status, initiated_by, accepted_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (user_id_a, user_id_b) DO UPDATE SET status=EXCLUDED.status, accepted_at=EXCLUDED.accepted_at`,
			lo, hi, f.Status, f.InitiatedBy, f.AcceptedAt)
		return err
	})
}
