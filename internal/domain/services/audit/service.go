// Package audit implements the Audit Chain (§4.8): the hash-chained,
// append-only per-subject log plus the fixed-whitelist explain projection.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	"github.com/integrity-spine/spine/pkg/metrics"
)

// Service is the Audit Chain.
type Service struct {
	repo repositories.AuditRepository
}

func NewService(repo repositories.AuditRepository) *Service {
	return &Service{repo: repo}
}

// Append implements append(subject_id, summary, detail, risk_flagged,
// escalated, approver?): reads the last entry_hash for the subject and
// chains the new row to it.
func (s *Service) Append(ctx context.Context, subjectID, summary string, detail map[string]interface{}, riskFlagged, escalated bool, approver *uuid.UUID) (*entities.AuditEntry, error) {
	prevHash := ""
	last, err := s.repo.LastEntry(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		prevHash = last.EntryHash
	}

	entry := &entities.AuditEntry{
		ID:               uuid.New(),
		SubjectID:        subjectID,
		DecisionSummary:  summary,
		DecisionDetail:   detail,
		RiskFlagged:      riskFlagged,
		EscalatedToHuman: escalated,
		HumanApproverID:  approver,
		PrevHash:         prevHash,
		CreatedAt:        time.Now().UTC(),
	}
	canonical, err := entry.CanonicalDetailJSON()
	if err != nil {
		return nil, err
	}
	entry.EntryHash = entities.ComputeEntryHash(prevHash, summary, canonical, entry.CreatedAt)

	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// AnchorChain implements POST /audit/anchorChain: records an
// externally-supplied dual-ledger anchor for subjectID, used by anchor
// callers that transact directly against the ledgers outside the
// Orchestrator's own anchor-and-publish pipeline.
func (s *Service) AnchorChain(ctx context.Context, subjectID, cardanoTxHash, midnightTxHash, crosschainRootHash string) error {
	return s.repo.UpsertAnchor(ctx, &entities.ChainAnchor{
		SubjectID:          subjectID,
		CardanoTxHash:      strPtrIfSet(cardanoTxHash),
		MidnightTxHash:     strPtrIfSet(midnightTxHash),
		CrosschainRootHash: strPtrIfSet(crosschainRootHash),
	})
}

func strPtrIfSet(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Verify implements verify(subject_id): recomputes the chain in
// commit-timestamp order and reports the first broken link, if any.
func (s *Service) Verify(ctx context.Context, subjectID string) (*entities.ChainVerifyResult, error) {
	entries, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	prevHash := ""
	for i, e := range entries {
		canonical, err := e.CanonicalDetailJSON()
		if err != nil {
			return nil, err
		}
		want := entities.ComputeEntryHash(prevHash, e.DecisionSummary, canonical, e.CreatedAt)
		if e.PrevHash != prevHash || e.EntryHash != want {
			seq := i
			metrics.RecordAuditChainVerification(false)
			return &entities.ChainVerifyResult{Valid: false, FirstBrokenSeq: &seq}, nil
		}
		prevHash = e.EntryHash
	}
	metrics.RecordAuditChainVerification(true)
	return &entities.ChainVerifyResult{Valid: true}, nil
}

// VerifyPeriod re-runs Verify's chain recomputation across every subject
// with activity in [start, end), rather than a single subject_id. A
// subject's first entry having a non-empty prev_hash, or any entry's
// prev_hash/entry_hash mismatching its recomputed value, marks that
// subject broken or tampered respectively.
func (s *Service) VerifyPeriod(ctx context.Context, start, end time.Time) (*entities.WORMVerificationResult, error) {
	entries, err := s.repo.ListByPeriod(ctx, start, end)
	if err != nil {
		return nil, err
	}

	bySubject := groupBySubject(entries)
	result := &entities.WORMVerificationResult{
		PeriodStart:  start,
		PeriodEnd:    end,
		TotalEntries: int64(len(entries)),
		VerifiedAt:   time.Now().UTC(),
		Status:       entities.WORMVerified,
	}

	for subjectID, subjectEntries := range bySubject {
		prevHash := ""
		for _, e := range subjectEntries {
			canonical, err := e.CanonicalDetailJSON()
			if err != nil {
				return nil, err
			}
			want := entities.ComputeEntryHash(prevHash, e.DecisionSummary, canonical, e.CreatedAt)
			if e.PrevHash != prevHash {
				result.BrokenSubjects = append(result.BrokenSubjects, subjectID)
				break
			}
			if e.EntryHash != want {
				result.TamperedSubjects = append(result.TamperedSubjects, subjectID)
				break
			}
			prevHash = e.EntryHash
		}
	}

	switch {
	case len(result.TamperedSubjects) > 0:
		result.Status = entities.WORMTampered
	case len(result.BrokenSubjects) > 0:
		result.Status = entities.WORMChainBroken
	default:
		result.Status = entities.WORMVerified
	}
	metrics.RecordAuditChainVerification(result.Status == entities.WORMVerified)
	return result, nil
}

// GenerateComplianceReport implements the period-scoped compliance summary:
// per-action event counts bucketed on the decision_summary prefix before
// its first "/", security/risk/escalation totals, and the WORM integrity
// status for the same period.
func (s *Service) GenerateComplianceReport(ctx context.Context, reportType string, periodStart, periodEnd time.Time) (*entities.ComplianceReport, error) {
	entries, err := s.repo.ListByPeriod(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	uniqueSubjects := make(map[string]bool)
	actionBreakdown := make(map[string]int64)
	var securityEvents, riskFlagged, escalated int64

	for _, e := range entries {
		uniqueSubjects[e.SubjectID] = true
		actionBreakdown[actionBucket(e.DecisionSummary)]++
		if e.RiskFlagged {
			riskFlagged++
		}
		if e.EscalatedToHuman {
			escalated++
		}
		if isSecurityEvent(e.DecisionSummary) {
			securityEvents++
		}
	}

	integrity, err := s.VerifyPeriod(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	return &entities.ComplianceReport{
		ID:                   uuid.New(),
		ReportType:           reportType,
		PeriodStart:          periodStart,
		PeriodEnd:            periodEnd,
		GeneratedAt:          time.Now().UTC(),
		TotalEntries:         int64(len(entries)),
		UniqueSubjects:       int64(len(uniqueSubjects)),
		ActionBreakdown:      actionBreakdown,
		SecurityEvents:       securityEvents,
		RiskFlaggedCount:     riskFlagged,
		EscalatedCount:       escalated,
		IntegrityCheckStatus: integrity.Status,
		HashChainValid:       integrity.Status == entities.WORMVerified,
	}, nil
}

// ExportChain implements the audit-export surface: the full ordered chain
// for a subject, rendered as indented JSON.
func (s *Service) ExportChain(ctx context.Context, subjectID string) ([]byte, error) {
	entries, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(entries, "", "  ")
}

func groupBySubject(entries []*entities.AuditEntry) map[string][]*entities.AuditEntry {
	out := make(map[string][]*entities.AuditEntry)
	for _, e := range entries {
		out[e.SubjectID] = append(out[e.SubjectID], e)
	}
	return out
}

// actionBucket extracts the action family from a decision_summary, which
// is a free-form "family/detail" string (e.g. "view_face/{facet}/allow",
// "lifecycle_transition/{state}") rather than a fixed enum.
func actionBucket(summary string) string {
	if i := strings.Index(summary, "/"); i >= 0 {
		return summary[:i]
	}
	return summary
}

// isSecurityEvent flags decision summaries that represent a
// security-relevant outcome: escalations to human review, governance
// decisions, and access denials.
func isSecurityEvent(summary string) bool {
	return strings.HasSuffix(summary, "/escalate") ||
		strings.HasSuffix(summary, "/human_decision") ||
		strings.HasSuffix(summary, "/deny")
}

// Explain implements explain(subject_id): returns ONLY the fixed
// whitelist, drawn from the most recent entry's decision_detail. Nothing
// beyond the whitelist is ever surfaced, even if present in the stored
// detail map.
func (s *Service) Explain(ctx context.Context, subjectID string) (*entities.AuditExplain, error) {
	last, err := s.repo.LastEntry(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, nil
	}
	d := last.DecisionDetail
	return &entities.AuditExplain{
		SubjectID:          subjectID,
		OccurredAt:         last.CreatedAt,
		RegionCode:         stringField(d, "region_code"),
		PolicyVersion:      stringField(d, "policy_version"),
		ResolvedScope:      stringField(d, "resolved_scope"),
		ShownFacetsCount:   intField(d, "shown_facets_count"),
		CardanoTxHash:      stringField(d, "cardano_tx_hash"),
		MidnightTxHash:     stringField(d, "midnight_tx_hash"),
		CrosschainRootHash: stringField(d, "crosschain_root_hash"),
	}, nil
}

func stringField(d map[string]interface{}, key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

func intField(d map[string]interface{}, key string) int {
	switch v := d[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// ListEscalations implements /escalations: rows with escalated=true and
// approver IS NULL, ordered created_at ascending (the repository owns the
// ordering).
func (s *Service) ListEscalations(ctx context.Context) ([]*entities.AuditEntry, error) {
	return s.repo.ListEscalations(ctx)
}

// Decide implements /escalations/{subject}/decision: mutates the pending
// entry's decision_summary to end in "/human_decision", sets the
// approver and governance note, and clears escalated_to_human. Returns
// the updated entry; the caller (Escalation Queue service) is responsible
// for replaying an approved decision back into the orchestrator.
func (s *Service) Decide(ctx context.Context, subjectID string, approved bool, reviewer uuid.UUID, note string) (*entities.AuditEntry, error) {
	entry, err := s.repo.GetPendingEscalation(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	entry.HumanApproverID = &reviewer
	entry.EscalatedToHuman = false
	entry.DecisionSummary = entry.DecisionSummary + "/human_decision"
	if entry.DecisionDetail == nil {
		entry.DecisionDetail = map[string]interface{}{}
	}
	entry.DecisionDetail["governance_note"] = note
	entry.DecisionDetail["governance_approved"] = approved

	if err := s.repo.UpdateDecision(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
