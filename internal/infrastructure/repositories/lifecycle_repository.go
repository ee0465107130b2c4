package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
)

// PostgresLifecycleRepository implements repositories.LifecycleRepository.
type PostgresLifecycleRepository struct {
	adapter *storage.Adapter
}

func NewPostgresLifecycleRepository(adapter *storage.Adapter) *PostgresLifecycleRepository {
	return &PostgresLifecycleRepository{adapter: adapter}
}

func (r *PostgresLifecycleRepository) Append(ctx context.Context, e *entities.LifecycleEvent) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO lifecycle_events
			(id, asset_id, from_state, to_state, triggered_by, trigger_type, dissolve_auth_verified,
			 burn_proof_hash, parent_material_batch, esg_delta, carbon_saved_kg, water_saved_liters, occurred_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())`,
			e.ID, e.AssetID, e.FromState, e.ToState, e.TriggeredBy, e.TriggerType, e.DissolveAuthVerified,
			e.BurnProofHash, e.ParentMaterialBatch, e.ESGDelta, e.CarbonSavedKg, e.WaterSavedLiters)
		return err
	})
}

func (r *PostgresLifecycleRepository) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*entities.LifecycleEvent, error) {
	var events []*entities.LifecycleEvent
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &events, `SELECT id, asset_id, from_state, to_state, triggered_by,
			trigger_type, dissolve_auth_verified, burn_proof_hash, parent_material_batch, esg_delta,
			carbon_saved_kg, water_saved_liters, occurred_at
			FROM lifecycle_events WHERE asset_id=$1 ORDER BY occurred_at ASC`, assetID)
	})
	return events, err
}
