package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one hash-chained, append-only row in a subject's (scan or
// asset) audit log. EntryHash = H(PrevHash ‖ DecisionSummary ‖
// canonical_json(DecisionDetail) ‖ CreatedAt); the first entry for a
// subject has PrevHash = "".
type AuditEntry struct {
	ID                 uuid.UUID              `json:"entry_id" db:"id"`
	SubjectID          string                 `json:"subject_id" db:"subject_id"`
	DecisionSummary    string                 `json:"decision_summary" db:"decision_summary"`
	DecisionDetail     map[string]interface{} `json:"decision_detail" db:"decision_detail"`
	RiskFlagged        bool                   `json:"risk_flagged" db:"risk_flagged"`
	EscalatedToHuman   bool                   `json:"escalated_to_human" db:"escalated_to_human"`
	HumanApproverID    *uuid.UUID             `json:"human_approver_id,omitempty" db:"human_approver_id"`
	PrevHash           string                 `json:"prev_hash" db:"prev_hash"`
	EntryHash          string                 `json:"entry_hash" db:"entry_hash"`
	CreatedAt          time.Time              `json:"created_at" db:"created_at"`
}

// CanonicalDetailJSON renders DecisionDetail with sorted keys so the hash
// input is deterministic regardless of map iteration order.
func (e *AuditEntry) CanonicalDetailJSON() (string, error) {
	return canonicalJSON(e.DecisionDetail)
}

// canonicalJSON marshals v through a sorted-key encoding. encoding/json
// already sorts map[string]interface{} keys on marshal, so this is a thin
// named wrapper documenting the invariant entry hashing depends on.
func canonicalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ComputeEntryHash computes entry_hash = SHA-256(prevHash ‖ summary ‖
// canonicalDetail ‖ timestamp-RFC3339Nano), matching §4.8.
func ComputeEntryHash(prevHash, summary, canonicalDetail string, at time.Time) string {
	input := prevHash + summary + canonicalDetail + at.UTC().Format(time.RFC3339Nano)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ChainVerifyResult is the result of Audit Chain.verify(subject_id).
type ChainVerifyResult struct {
	Valid          bool `json:"valid"`
	FirstBrokenSeq *int `json:"first_broken_seq,omitempty"`
}

// AuditExplain is the fixed whitelist returned by explain(subject_id).
// Nothing beyond these fields may ever be returned, even if present in
// DecisionDetail.
type AuditExplain struct {
	SubjectID          string     `json:"subject_id"`
	OccurredAt         time.Time  `json:"occurred_at"`
	RegionCode         string     `json:"region_code"`
	PolicyVersion      string     `json:"policy_version"`
	ResolvedScope      string     `json:"resolved_scope"`
	ShownFacetsCount   int        `json:"shown_facets_count"`
	CardanoTxHash      string     `json:"cardano_tx_hash,omitempty"`
	MidnightTxHash     string     `json:"midnight_tx_hash,omitempty"`
	CrosschainRootHash string     `json:"crosschain_root_hash,omitempty"`
}

// WORMStatus is the tri-state outcome of a period-scoped WORM (write-once
// read-many) integrity verification: verified, tampered (an entry_hash no
// longer matches its recomputed value), or chain_broken (the prev_hash
// linkage itself is discontinuous, independent of any single hash match).
type WORMStatus string

const (
	WORMVerified    WORMStatus = "verified"
	WORMTampered    WORMStatus = "tampered"
	WORMChainBroken WORMStatus = "chain_broken"
)

// WORMVerificationResult is the result of a period-scoped audit chain
// verification spanning every subject with activity in [PeriodStart,
// PeriodEnd], rather than verify(subject_id)'s single-subject check.
type WORMVerificationResult struct {
	PeriodStart      time.Time  `json:"period_start"`
	PeriodEnd        time.Time  `json:"period_end"`
	TotalEntries     int64      `json:"total_entries"`
	VerifiedAt       time.Time  `json:"verified_at"`
	Status           WORMStatus `json:"status"`
	TamperedSubjects []string   `json:"tampered_subjects,omitempty"`
	BrokenSubjects   []string   `json:"broken_subjects,omitempty"`
}

// ComplianceReport is the period-scoped audit summary: per-action event
// counts, security-event/risk/escalation totals, and the WORM integrity
// status for the same period.
type ComplianceReport struct {
	ID                   uuid.UUID        `json:"report_id"`
	ReportType           string           `json:"report_type"`
	PeriodStart          time.Time        `json:"period_start"`
	PeriodEnd            time.Time        `json:"period_end"`
	GeneratedAt          time.Time        `json:"generated_at"`
	TotalEntries         int64            `json:"total_entries"`
	UniqueSubjects       int64            `json:"unique_subjects"`
	ActionBreakdown      map[string]int64 `json:"action_breakdown"`
	SecurityEvents       int64            `json:"security_events"`
	RiskFlaggedCount     int64            `json:"risk_flagged_count"`
	EscalatedCount       int64            `json:"escalated_count"`
	IntegrityCheckStatus WORMStatus       `json:"integrity_check_status"`
	HashChainValid       bool             `json:"hash_chain_valid"`
}

// ChainAnchor records the dual-ledger anchor for one subject.
type ChainAnchor struct {
	SubjectID          string     `json:"subject_id" db:"subject_id"`
	CardanoTxHash      *string    `json:"cardano_tx_hash,omitempty" db:"cardano_tx_hash"`
	MidnightTxHash     *string    `json:"midnight_tx_hash,omitempty" db:"midnight_tx_hash"`
	CrosschainRootHash *string    `json:"crosschain_root_hash,omitempty" db:"crosschain_root_hash"`
	PartialAnchor      bool       `json:"partial_anchor" db:"partial_anchor"`
	AnchoredAt         *time.Time `json:"anchored_at,omitempty" db:"anchored_at"`
}

// MutationLog is the idempotency ledger row: at most one row per
// mutation_id ever exists.
type MutationLog struct {
	MutationID        string     `json:"mutation_id" db:"mutation_id"`
	OperationName     string     `json:"operation_name" db:"operation_name"`
	ParamsHash        string     `json:"params_hash" db:"params_hash"`
	ActorID           *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	ResultStatus      string     `json:"result_status" db:"result_status"`
	CommitTimestamp   time.Time  `json:"commit_timestamp" db:"commit_timestamp"`
}

// ExecuteOutcome is what Idempotency Layer.execute returns.
type ExecuteOutcome struct {
	Duplicate             bool      `json:"duplicate"`
	RowsAffected          int64     `json:"rows_affected,omitempty"`
	OriginalCommitTimestamp time.Time `json:"original_commit_timestamp,omitempty"`
}
