// Package governance exposes the Audit Chain's HTTP surface: raw append,
// cross-chain anchor recording, the fixed-whitelist explain projection,
// chain export, period-scoped compliance reporting, and the Escalation
// Queue's list/decide endpoints.
package governance

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/integrity-spine/spine/internal/api/handlers/common"
	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/services/audit"
	"github.com/integrity-spine/spine/internal/domain/services/escalation"
	"github.com/integrity-spine/spine/pkg/logger"
	"github.com/integrity-spine/spine/pkg/security"
	"github.com/integrity-spine/spine/pkg/validation"
)

type Handlers struct {
	audit       *audit.Service
	escalation  *escalation.Service
	rateLimiter *security.RateLimiter
	replayGuard *security.ReplayGuard
	validator   *validator.Validate
	logger      *logger.Logger
}

func NewHandlers(auditSvc *audit.Service, escalationSvc *escalation.Service, rateLimiter *security.RateLimiter, replayGuard *security.ReplayGuard, log *logger.Logger) *Handlers {
	return &Handlers{
		audit: auditSvc, escalation: escalationSvc, rateLimiter: rateLimiter,
		replayGuard: replayGuard, validator: validation.New(), logger: log,
	}
}

// LogRequest is the body of POST /audit/log.
type LogRequest struct {
	ScanID           string                 `json:"scan_id" validate:"required"`
	DecisionSummary  string                 `json:"decision_summary" validate:"required,safe_string"`
	DecisionDetail   map[string]interface{} `json:"decision_detail"`
	RiskFlagged      bool                   `json:"risk_flagged"`
	EscalatedToHuman bool                   `json:"escalated_to_human"`
}

// Log handles POST /audit/log.
func (h *Handlers) Log(c *gin.Context) {
	ctx := c.Request.Context()

	var req LogRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid audit log request", map[string]interface{}{"error": err.Error()})
		return
	}

	if _, err := h.audit.Append(ctx, req.ScanID, req.DecisionSummary, req.DecisionDetail, req.RiskFlagged, req.EscalatedToHuman, nil); err != nil {
		h.logger.Warn("audit log failed", "error", err, "scan_id", req.ScanID)
		common.HandleServiceError(c, err, "audit")
		return
	}
	common.RespondSuccess(c, gin.H{"status": "logged"})
}

// AnchorChainRequest is the body of POST /audit/anchorChain.
type AnchorChainRequest struct {
	ScanID             string `json:"scan_id" validate:"required"`
	CardanoTxHash      string `json:"cardano_tx_hash" validate:"omitempty,hash_hex"`
	MidnightTxHash     string `json:"midnight_tx_hash" validate:"omitempty,hash_hex"`
	CrosschainRootHash string `json:"crosschain_root_hash" validate:"omitempty,hash_hex"`
}

// AnchorChain handles POST /audit/anchorChain.
func (h *Handlers) AnchorChain(c *gin.Context) {
	ctx := c.Request.Context()

	var req AnchorChainRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid anchor chain request", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := h.audit.AnchorChain(ctx, req.ScanID, req.CardanoTxHash, req.MidnightTxHash, req.CrosschainRootHash); err != nil {
		h.logger.Warn("anchor chain failed", "error", err, "scan_id", req.ScanID)
		common.HandleServiceError(c, err, "audit")
		return
	}
	common.RespondSuccess(c, gin.H{"status": "ok"})
}

// Explain handles GET /audit/{scan_id}/explain.
func (h *Handlers) Explain(c *gin.Context) {
	ctx := c.Request.Context()

	subjectID := c.Param("scan_id")
	if subjectID == "" {
		common.RespondBadRequest(c, "missing scan_id", nil)
		return
	}

	explain, err := h.audit.Explain(ctx, subjectID)
	if err != nil {
		h.logger.Warn("audit explain failed", "error", err, "scan_id", subjectID)
		common.HandleServiceError(c, err, "audit")
		return
	}
	if explain == nil {
		common.RespondNotFound(c, "no audit entry for subject")
		return
	}
	common.RespondSuccess(c, explain)
}

// Export handles GET /audit/{scan_id}/export: the full hash-chained log
// for one subject, rendered as indented JSON.
func (h *Handlers) Export(c *gin.Context) {
	ctx := c.Request.Context()

	subjectID := c.Param("scan_id")
	if subjectID == "" {
		common.RespondBadRequest(c, "missing scan_id", nil)
		return
	}

	chain, err := h.audit.ExportChain(ctx, subjectID)
	if err != nil {
		h.logger.Warn("audit export failed", "error", err, "scan_id", subjectID)
		common.HandleServiceError(c, err, "audit")
		return
	}
	c.Data(http.StatusOK, "application/json", chain)
}

// ComplianceReportRequest is the query string of GET /audit/compliance-report.
type ComplianceReportRequest struct {
	ReportType  string    `form:"report_type" validate:"required,safe_string"`
	PeriodStart time.Time `form:"period_start" validate:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	PeriodEnd   time.Time `form:"period_end" validate:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ComplianceReport handles GET /audit/compliance-report: a period-scoped
// summary of action-type breakdown, security-event counts, and overall
// hash-chain integrity for that period.
func (h *Handlers) ComplianceReport(c *gin.Context) {
	ctx := c.Request.Context()

	var req ComplianceReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.RespondBadRequest(c, "invalid compliance report request", nil)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid compliance report request", map[string]interface{}{"error": err.Error()})
		return
	}

	report, err := h.audit.GenerateComplianceReport(ctx, req.ReportType, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.logger.Warn("compliance report generation failed", "error", err, "report_type", req.ReportType)
		common.HandleServiceError(c, err, "audit")
		return
	}
	common.RespondSuccess(c, report)
}

// EscalateRequest is the body of POST /audit/escalate.
type EscalateRequest struct {
	ScanID                string `json:"scan_id" validate:"required"`
	RegionCode            string `json:"region_code" validate:"required"`
	Reason                string `json:"reason" validate:"required,safe_string"`
	RequiresHumanApproval bool   `json:"requires_human_approval"`
}

// Escalate handles POST /audit/escalate.
func (h *Handlers) Escalate(c *gin.Context) {
	ctx := c.Request.Context()

	var req EscalateRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid escalate request", map[string]interface{}{"error": err.Error()})
		return
	}

	if _, err := h.escalation.Enqueue(ctx, req.ScanID, req.Reason, req.RegionCode, map[string]interface{}{"scan_id": req.ScanID}); err != nil {
		h.logger.Warn("audit escalate failed", "error", err, "scan_id", req.ScanID)
		common.HandleServiceError(c, err, "escalation")
		return
	}
	common.RespondSuccess(c, gin.H{"status": "queued"})
}

// ListEscalations handles GET /governance/escalations, projecting each
// pending AuditEntry's decision_detail into the fixed external shape.
func (h *Handlers) ListEscalations(c *gin.Context) {
	ctx := c.Request.Context()

	entries, err := h.escalation.List(ctx)
	if err != nil {
		h.logger.Warn("list escalations failed", "error", err)
		common.HandleServiceError(c, err, "escalation")
		return
	}

	items := make([]entities.EscalationItem, 0, len(entries))
	for _, e := range entries {
		regionCode, _ := e.DecisionDetail["region_code"].(string)
		reason, _ := e.DecisionDetail["reason"].(string)
		items = append(items, entities.EscalationItem{
			SubjectID:  e.SubjectID,
			RegionCode: regionCode,
			Reason:     reason,
			CreatedAt:  e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	common.RespondSuccess(c, items)
}

// Decide handles POST /governance/escalations/{scan_id}/decision.
// Rate-limited per reviewer and replay-guarded per subject so a retried
// or double-submitted decision never replays the underlying request
// twice into the Orchestrator.
func (h *Handlers) Decide(c *gin.Context) {
	ctx := c.Request.Context()

	subjectID := c.Param("scan_id")
	if subjectID == "" {
		common.RespondBadRequest(c, "missing scan_id", nil)
		return
	}

	var req entities.GovernanceDecision
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid governance decision", map[string]interface{}{"error": err.Error()})
		return
	}

	if !h.rateLimiter.Allow(ctx, "governance_decision:"+req.ReviewerID, 30, time.Minute) {
		common.RespondError(c, 429, "rate_limited", "too many governance decisions from this reviewer", nil)
		return
	}

	claimed, err := h.replayGuard.Claim(ctx, "governance_decision", subjectID)
	if err != nil {
		h.logger.Warn("governance decision replay guard error", "error", err, "scan_id", subjectID)
	}
	if !claimed {
		common.RespondSuccess(c, gin.H{"status": "resolved"})
		return
	}

	reviewer, err := common.ParseUUID(req.ReviewerID)
	if err != nil {
		common.RespondBadRequest(c, "invalid reviewer_user_id", nil)
		return
	}

	if _, err := h.escalation.Decide(ctx, subjectID, req.Approved, reviewer, req.Note); err != nil {
		h.logger.Warn("governance decide failed", "error", err, "scan_id", subjectID)
		common.HandleServiceError(c, err, "escalation")
		return
	}
	common.RespondSuccess(c, gin.H{"status": "resolved"})
}
