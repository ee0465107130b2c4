// Package idempotency implements the Idempotency Layer (§4.3): callers
// deduplicate a mutation by a deterministic fingerprint over its operation
// name and parameters, executed inside a single read-write transaction so
// the dedup check and the mutation itself either both land or neither does.
package idempotency

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

// mutationIDHexLen truncates the 64-hex-char SHA-256 digest to 32 hex
// characters (16 bytes) per spec.md's `trunc32`.
const mutationIDHexLen = 32

// MutationFunc applies the caller's side effects inside the same
// transaction that records the MutationLog row. It must be safe to run
// more than once if the transaction is retried by the storage adapter.
type MutationFunc func(ctx context.Context, tx *sqlx.Tx) error

// Service is the Idempotency Layer.
type Service struct {
	adapter *storage.Adapter
}

func NewService(adapter *storage.Adapter) *Service {
	return &Service{adapter: adapter}
}

// ComputeMutationID implements mutation_id = trunc32(SHA-256(op_name ‖
// sorted_kv(params))). Params are rendered as "key=value" pairs sorted by
// key so the fingerprint is independent of call-site ordering.
func ComputeMutationID(opName string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(opName)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:mutationIDHexLen]
}

// Execute runs mutations exactly once per mutation_id. A second caller with
// the same (op_name, params) observes {duplicate: true,
// original_commit_timestamp} instead of re-running mutations.
func (s *Service) Execute(ctx context.Context, opName string, params map[string]string, actorID *uuid.UUID, mutations MutationFunc) (*entities.ExecuteOutcome, error) {
	mutationID := ComputeMutationID(opName, params)

	outcome, err := s.tryExecute(ctx, mutationID, opName, actorID, mutations)
	if err == nil {
		return outcome, nil
	}

	// A concurrent caller may have won the race to insert the same
	// mutation_id; the loser sees a conflict from the unique constraint,
	// not a genuine failure, so it reports duplicate instead of erroring.
	if typed, ok := spineerrors.As(err); ok && typed.Kind == spineerrors.KindConflict {
		existing, getErr := s.get(ctx, mutationID)
		if getErr == nil && existing != nil {
			return &entities.ExecuteOutcome{Duplicate: true, OriginalCommitTimestamp: existing.CommitTimestamp}, nil
		}
	}
	return nil, err
}

func (s *Service) tryExecute(ctx context.Context, mutationID, opName string, actorID *uuid.UUID, mutations MutationFunc) (*entities.ExecuteOutcome, error) {
	var outcome entities.ExecuteOutcome
	err := s.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		var existing entities.MutationLog
		err := tx.Get(&existing, `SELECT mutation_id, operation_name, params_hash, actor_id, result_status, commit_timestamp
			FROM mutation_log WHERE mutation_id=$1 FOR UPDATE`, mutationID)
		if err == nil {
			outcome = entities.ExecuteOutcome{Duplicate: true, OriginalCommitTimestamp: existing.CommitTimestamp}
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}

		if err := mutations(ctx, tx); err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `INSERT INTO mutation_log
			(mutation_id, operation_name, params_hash, actor_id, result_status, commit_timestamp)
			VALUES ($1,$2,$3,$4,'executed',$5)`,
			mutationID, opName, mutationID, actorID, now)
		if err != nil {
			return err
		}
		outcome = entities.ExecuteOutcome{Duplicate: false, RowsAffected: 1}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (s *Service) get(ctx context.Context, mutationID string) (*entities.MutationLog, error) {
	var m entities.MutationLog
	err := s.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &m, `SELECT mutation_id, operation_name, params_hash, actor_id, result_status, commit_timestamp
			FROM mutation_log WHERE mutation_id=$1`, mutationID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// SweepExpired deletes mutation_log rows older than horizon in bounded
// batches, called by the TTL sweeper cron job.
func (s *Service) SweepExpired(ctx context.Context, horizon time.Time, batchSize int) (int64, error) {
	var total int64
	for {
		n, err := s.deleteBatch(ctx, horizon, batchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}

func (s *Service) deleteBatch(ctx context.Context, horizon time.Time, batchSize int) (int64, error) {
	var affected int64
	err := s.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
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
