package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
)

// PostgresMutationLogRepository implements repositories.MutationLogRepository,
// the idempotency ledger: at most one row per mutation_id ever exists.
type PostgresMutationLogRepository struct {
	adapter *storage.Adapter
}

func NewPostgresMutationLogRepository(adapter *storage.Adapter) *PostgresMutationLogRepository {
	return &PostgresMutationLogRepository{adapter: adapter}
}

func (r *PostgresMutationLogRepository) Get(ctx context.Context, mutationID string) (*entities.MutationLog, error) {
	var m entities.MutationLog
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &m, `SELECT mutation_id, operation_name, params_hash, actor_id,
			result_status, commit_timestamp FROM mutation_log WHERE mutation_id=$1`, mutationID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Insert relies on the PRIMARY KEY(mutation_id) constraint to turn a
// concurrent duplicate insert into a unique_violation the caller maps via
// mapStorageError into a conflict.
func (r *PostgresMutationLogRepository) Insert(ctx context.Context, row *entities.MutationLog) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO mutation_log
			(mutation_id, operation_name, params_hash, actor_id, result_status, commit_timestamp)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			row.MutationID, row.OperationName, row.ParamsHash, row.ActorID, row.ResultStatus, row.CommitTimestamp)
		return err
	})
}

// DeleteOlderThan sweeps rows older than horizon in bounded batches so the
// TTL sweeper never holds a long-running delete against a hot table.
func (r *PostgresMutationLogRepository) DeleteOlderThan(ctx context.Context, horizon time.Time, batchSize int) (int64, error) {
	var affected int64
	err := r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM mutation_log WHERE mutation_id IN (
			SELECT mutation_id FROM mutation_log WHERE commit_timestamp < $1 LIMIT $2)`, horizon, batchSize)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
