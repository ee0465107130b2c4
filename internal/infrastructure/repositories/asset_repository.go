package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
)

// PostgresAssetRepository implements repositories.AssetRepository.
type PostgresAssetRepository struct {
	adapter *storage.Adapter
}

func NewPostgresAssetRepository(adapter *storage.Adapter) *PostgresAssetRepository {
	return &PostgresAssetRepository{adapter: adapter}
}

func (r *PostgresAssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Asset, error) {
	var a entities.Asset
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &a, `SELECT id, asset_type, display_name, creator_user_id,
			current_owner_id, authenticity_hash, lifecycle_state, reprint_generation,
			parent_asset_id, dissolve_auth_key_hash, ar_sync_latency_ms, last_biometric_sync,
			created_at, updated_at FROM assets WHERE id=$1`, id)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAssetRepository) GetByTag(ctx context.Context, authenticityHash string) (*entities.Asset, error) {
	var a entities.Asset
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &a, `SELECT id, asset_type, display_name, creator_user_id,
			current_owner_id, authenticity_hash, lifecycle_state, reprint_generation,
			parent_asset_id, dissolve_auth_key_hash, ar_sync_latency_ms, last_biometric_sync,
			created_at, updated_at FROM assets WHERE authenticity_hash=$1`, authenticityHash)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAssetRepository) Create(ctx context.Context, a *entities.Asset) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO assets
			(id, asset_type, display_name, creator_user_id, current_owner_id, authenticity_hash,
			 lifecycle_state, reprint_generation, parent_asset_id, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())`,
			a.ID, a.AssetType, a.DisplayName, a.CreatorUserID, a.CurrentOwnerID, a.AuthenticityHash,
			a.LifecycleState, a.ReprintGeneration, a.ParentAssetID)
		return err
	})
}

func (r *PostgresAssetRepository) UpdateLifecycleState(ctx context.Context, id uuid.UUID, state entities.LifecycleState, reprintGeneration int) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE assets SET lifecycle_state=$2, reprint_generation=$3, updated_at=now()
			WHERE id=$1`, id, state, reprintGeneration)
		return err
	})
}

func (r *PostgresAssetRepository) SetDissolveAuthKeyHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE assets SET dissolve_auth_key_hash=$2, updated_at=now() WHERE id=$1`, id, hash)
		return err
	})
}

func (r *PostgresAssetRepository) SetCurrentOwner(ctx context.Context, id, ownerID uuid.UUID) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE assets SET current_owner_id=$2, updated_at=now() WHERE id=$1`, id, ownerID)
		return err
	})
}

func (r *PostgresAssetRepository) CreateCreatedEdge(ctx context.Context, c *entities.Created) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO created_edges (creator_id, asset_id, created_at)
			VALUES ($1,$2,now())`, c.CreatorID, c.AssetID)
		return err
	})
}

// PostgresOwnsRepository implements repositories.OwnsRepository.
type PostgresOwnsRepository struct {
	adapter *storage.Adapter
}

func NewPostgresOwnsRepository(adapter *storage.Adapter) *PostgresOwnsRepository {
	return &PostgresOwnsRepository{adapter: adapter}
}

func (r *PostgresOwnsRepository) GetCurrent(ctx context.Context, assetID uuid.UUID) (*entities.Owns, error) {
	var o entities.Owns
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &o, `SELECT owner_id, asset_id, acquired_at, ended_at, transfer_method, is_current
			FROM owns WHERE asset_id=$1 AND is_current=true`, assetID)
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresOwnsRepository) CloseCurrent(ctx context.Context, assetID uuid.UUID, endedAt time.Time) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE owns SET is_current=false, ended_at=$2
			WHERE asset_id=$1 AND is_current=true`, assetID, endedAt)
		return err
	})
}

func (r *PostgresOwnsRepository) Create(ctx context.Context, o *entities.Owns) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO owns
			(owner_id, asset_id, acquired_at, transfer_method, is_current)
			VALUES ($1,$2,now(),$3,$4)`,
			o.OwnerID, o.AssetID, o.TransferMethod, o.IsCurrent)
		return err
	})
}

// PostgresProvenanceRepository implements repositories.ProvenanceRepository.
type PostgresProvenanceRepository struct {
	adapter *storage.Adapter
}

func NewPostgresProvenanceRepository(adapter *storage.Adapter) *PostgresProvenanceRepository {
	return &PostgresProvenanceRepository{adapter: adapter}
}

func (r *PostgresProvenanceRepository) MaxSequenceNum(ctx context.Context, assetID uuid.UUID) (int, error) {
	var max int
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &max, `SELECT COALESCE(MAX(sequence_num), 0) FROM provenance_chain WHERE asset_id=$1`, assetID)
	})
	return max, err
}

func (r *PostgresProvenanceRepository) Append(ctx context.Context, e *entities.ProvenanceEntry) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO provenance_chain
			(asset_id, sequence_num, from_user_id, to_user_id, transfer_type, price, currency,
			 blockchain_tx_hash, midnight_proof_hash, transfer_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())`,
			e.AssetID, e.SequenceNum, e.FromUserID, e.ToUserID, e.TransferType, e.Price, e.Currency,
			e.BlockchainTxHash, e.MidnightProofHash)
		return err
	})
}

func (r *PostgresProvenanceRepository) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*entities.ProvenanceEntry, error) {
	var entries []*entities.ProvenanceEntry
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &entries, `SELECT asset_id, sequence_num, from_user_id, to_user_id,
			transfer_type, price, currency, blockchain_tx_hash, midnight_proof_hash, transfer_at
			FROM provenance_chain WHERE asset_id=$1 ORDER BY sequence_num ASC`, assetID)
	})
	return entries, err
}
