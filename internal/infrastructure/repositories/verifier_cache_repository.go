package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
)

// PostgresVerifierCacheRepository implements repositories.VerifierCacheRepository,
// the 24h ledger-verification cache for burn proofs and material ESG scores.
type PostgresVerifierCacheRepository struct {
	adapter *storage.Adapter
}

func NewPostgresVerifierCacheRepository(adapter *storage.Adapter) *PostgresVerifierCacheRepository {
	return &PostgresVerifierCacheRepository{adapter: adapter}
}

func (r *PostgresVerifierCacheRepository) GetBurnProof(ctx context.Context, proofHash string) (*entities.BurnProofCacheEntry, error) {
	var e entities.BurnProofCacheEntry
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &e, `SELECT proof_hash, parent_asset, valid, verified_at, expires_at
			FROM burn_proof_cache WHERE proof_hash=$1 AND expires_at > now()`, proofHash)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *PostgresVerifierCacheRepository) PutBurnProof(ctx context.Context, entry *entities.BurnProofCacheEntry) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO burn_proof_cache
			(proof_hash, parent_asset, valid, verified_at, expires_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (proof_hash) DO UPDATE SET
				parent_asset=EXCLUDED.parent_asset, valid=EXCLUDED.valid,
				verified_at=EXCLUDED.verified_at, expires_at=EXCLUDED.expires_at`,
			entry.ProofHash, entry.ParentAsset, entry.Valid, entry.VerifiedAt, entry.ExpiresAt)
		return err
	})
}

// DeleteExpired prunes rows past expires_at from both caches in one
// round trip, called by the cache janitor cron job.
func (r *PostgresVerifierCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM burn_proof_cache WHERE expires_at <= $1`, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		total += n

		res, err = tx.ExecContext(ctx, `DELETE FROM material_esg_cache WHERE expires_at <= $1`, now)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	return total, err
}

func (r *PostgresVerifierCacheRepository) GetMaterialESG(ctx context.Context, materialBatch string) (*entities.MaterialESGCacheEntry, error) {
	var e entities.MaterialESGCacheEntry
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &e, `SELECT material_batch, score, verified_at, expires_at
			FROM material_esg_cache WHERE material_batch=$1 AND expires_at > now()`, materialBatch)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *PostgresVerifierCacheRepository) PutMaterialESG(ctx context.Context, entry *entities.MaterialESGCacheEntry) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO material_esg_cache
			(material_batch, score, verified_at, expires_at)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (material_batch) DO UPDATE SET
				score=EXCLUDED.score, verified_at=EXCLUDED.verified_at, expires_at=EXCLUDED.expires_at`,
			entry.MaterialBatch, entry.Score, entry.VerifiedAt, entry.ExpiresAt)
		return err
	})
}
