package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

// auditRow is the sqlx scan target; DecisionDetail is stored as JSONB and
// needs an explicit []byte<->map bridge sqlx can't do automatically.
type auditRow struct {
	ID               uuid.UUID  `db:"id"`
	SubjectID        string     `db:"subject_id"`
	DecisionSummary  string     `db:"decision_summary"`
	DecisionDetail   []byte     `db:"decision_detail"`
	RiskFlagged      bool       `db:"risk_flagged"`
	EscalatedToHuman bool       `db:"escalated_to_human"`
	HumanApproverID  *uuid.UUID `db:"human_approver_id"`
	PrevHash         string     `db:"prev_hash"`
	EntryHash        string     `db:"entry_hash"`
	CreatedAt        interface{} `db:"created_at"`
}

// PostgresAuditRepository implements repositories.AuditRepository.
type PostgresAuditRepository struct {
	adapter *storage.Adapter
}

func NewPostgresAuditRepository(adapter *storage.Adapter) *PostgresAuditRepository {
	return &PostgresAuditRepository{adapter: adapter}
}

func (r *PostgresAuditRepository) LastEntry(ctx context.Context, subjectID string) (*entities.AuditEntry, error) {
	var e entities.AuditEntry
	var detail []byte
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		row := db.QueryRowxContext(ctx, `SELECT id, subject_id, decision_summary, decision_detail,
			risk_flagged, escalated_to_human, human_approver_id, prev_hash, entry_hash, created_at
			FROM audit_log WHERE subject_id=$1 ORDER BY created_at DESC LIMIT 1`, subjectID)
		return row.Scan(&e.ID, &e.SubjectID, &e.DecisionSummary, &detail, &e.RiskFlagged,
			&e.EscalatedToHuman, &e.HumanApproverID, &e.PrevHash, &e.EntryHash, &e.CreatedAt)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	_ = json.Unmarshal(detail, &e.DecisionDetail)
	return &e, nil
}

func (r *PostgresAuditRepository) Append(ctx context.Context, entry *entities.AuditEntry) error {
	detail, err := json.Marshal(entry.DecisionDetail)
	if err != nil {
		return spineerrors.Wrap(spineerrors.NewInternal("marshal decision detail"), err)
	}
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO audit_log
			(id, subject_id, decision_summary, decision_detail, risk_flagged, escalated_to_human,
			 human_approver_id, prev_hash, entry_hash, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			entry.ID, entry.SubjectID, entry.DecisionSummary, detail, entry.RiskFlagged,
			entry.EscalatedToHuman, entry.HumanApproverID, entry.PrevHash, entry.EntryHash, entry.CreatedAt)
		return err
	})
}

func (r *PostgresAuditRepository) ListBySubject(ctx context.Context, subjectID string) ([]*entities.AuditEntry, error) {
	var rows []auditRow
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows, `SELECT id, subject_id, decision_summary, decision_detail,
			risk_flagged, escalated_to_human, human_approver_id, prev_hash, entry_hash, created_at
			FROM audit_log WHERE subject_id=$1 ORDER BY created_at ASC`, subjectID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		e := &entities.AuditEntry{
			ID: row.ID, SubjectID: row.SubjectID, DecisionSummary: row.DecisionSummary,
			RiskFlagged: row.RiskFlagged, EscalatedToHuman: row.EscalatedToHuman,
			HumanApproverID: row.HumanApproverID, PrevHash: row.PrevHash, EntryHash: row.EntryHash,
		}
		_ = json.Unmarshal(row.DecisionDetail, &e.DecisionDetail)
		out = append(out, e)
	}
	return out, nil
}

func (r *PostgresAuditRepository) ListByPeriod(ctx context.Context, start, end time.Time) ([]*entities.AuditEntry, error) {
	var rows []auditRow
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows, `SELECT id, subject_id, decision_summary, decision_detail,
			risk_flagged, escalated_to_human, human_approver_id, prev_hash, entry_hash, created_at
			FROM audit_log WHERE created_at >= $1 AND created_at < $2 ORDER BY subject_id ASC, created_at ASC`, start, end)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		e := &entities.AuditEntry{
			ID: row.ID, SubjectID: row.SubjectID, DecisionSummary: row.DecisionSummary,
			RiskFlagged: row.RiskFlagged, EscalatedToHuman: row.EscalatedToHuman,
			HumanApproverID: row.HumanApproverID, PrevHash: row.PrevHash, EntryHash: row.EntryHash,
		}
		_ = json.Unmarshal(row.DecisionDetail, &e.DecisionDetail)
		out = append(out, e)
	}
	return out, nil
}

func (r *PostgresAuditRepository) GetAnchor(ctx context.Context, subjectID string) (*entities.ChainAnchor, error) {
	var a entities.ChainAnchor
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &a, `SELECT subject_id, cardano_tx_hash, midnight_tx_hash,
			crosschain_root_hash, partial_anchor, anchored_at FROM chain_anchors WHERE subject_id=$1`, subjectID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAuditRepository) UpsertAnchor(ctx context.Context, anchor *entities.ChainAnchor) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO chain_anchors
			(subject_id, cardano_tx_hash, midnight_tx_hash, crosschain_root_hash, partial_anchor, anchored_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (subject_id) DO UPDATE SET
				cardano_tx_hash=EXCLUDED.cardano_tx_hash,
				midnight_tx_hash=EXCLUDED.midnight_tx_hash,
				crosschain_root_hash=EXCLUDED.crosschain_root_hash,
				partial_anchor=EXCLUDED.partial_anchor,
				anchored_at=EXCLUDED.anchored_at`,
			anchor.SubjectID, anchor.CardanoTxHash, anchor.MidnightTxHash, anchor.CrosschainRootHash,
			anchor.PartialAnchor, anchor.AnchoredAt)
		return err
	})
}

func (r *PostgresAuditRepository) ListEscalations(ctx context.Context) ([]*entities.AuditEntry, error) {
	var rows []auditRow
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows, `SELECT id, subject_id, decision_summary, decision_detail,
			risk_flagged, escalated_to_human, human_approver_id, prev_hash, entry_hash, created_at
			FROM audit_log WHERE escalated_to_human=true AND human_approver_id IS NULL
			ORDER BY created_at ASC`)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		e := &entities.AuditEntry{
			ID: row.ID, SubjectID: row.SubjectID, DecisionSummary: row.DecisionSummary,
			RiskFlagged: row.RiskFlagged, EscalatedToHuman: row.EscalatedToHuman,
			HumanApproverID: row.HumanApproverID, PrevHash: row.PrevHash, EntryHash: row.EntryHash,
		}
		_ = json.Unmarshal(row.DecisionDetail, &e.DecisionDetail)
		out = append(out, e)
	}
	return out, nil
}

func (r *PostgresAuditRepository) GetPendingEscalation(ctx context.Context, subjectID string) (*entities.AuditEntry, error) {
	var row auditRow
	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &row, `SELECT id, subject_id, decision_summary, decision_detail,
			risk_flagged, escalated_to_human, human_approver_id, prev_hash, entry_hash, created_at
			FROM audit_log WHERE subject_id=$1 AND escalated_to_human=true AND human_approver_id IS NULL
			ORDER BY created_at DESC LIMIT 1`, subjectID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	e := &entities.AuditEntry{
		ID: row.ID, SubjectID: row.SubjectID, DecisionSummary: row.DecisionSummary,
		RiskFlagged: row.RiskFlagged, EscalatedToHuman: row.EscalatedToHuman,
		HumanApproverID: row.HumanApproverID, PrevHash: row.PrevHash, EntryHash: row.EntryHash,
	}
	_ = json.Unmarshal(row.DecisionDetail, &e.DecisionDetail)
	return e, nil
}

func (r *PostgresAuditRepository) UpdateDecision(ctx context.Context, entry *entities.AuditEntry) error {
	detail, err := json.Marshal(entry.DecisionDetail)
	if err != nil {
		return spineerrors.Wrap(spineerrors.NewInternal("marshal decision detail"), err)
	}
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE audit_log SET decision_summary=$2, decision_detail=$3,
			escalated_to_human=$4, human_approver_id=$5 WHERE id=$1`,
			entry.ID, entry.DecisionSummary, detail, entry.EscalatedToHuman, entry.HumanApproverID)
		return err
	})
}
