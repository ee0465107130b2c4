// Package orchestrator exposes the Integrity Orchestrator's HTTP surface:
// scan-intent resolution and the internal transfer-execution entrypoint.
package orchestrator

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/integrity-spine/spine/internal/api/handlers/common"
	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	cubesvc "github.com/integrity-spine/spine/internal/domain/services/cube"
	"github.com/integrity-spine/spine/internal/domain/services/escalation"
	orchsvc "github.com/integrity-spine/spine/internal/domain/services/orchestrator"
	"github.com/integrity-spine/spine/internal/domain/services/policy"
	"github.com/integrity-spine/spine/pkg/logger"
	"github.com/integrity-spine/spine/pkg/validation"
)

// Handlers serves /intent/resolve and /execute/transfer_ownership.
type Handlers struct {
	assets       repositories.AssetRepository
	policy       *policy.Engine
	orchestrator *orchsvc.Service
	escalation   *escalation.Service
	cube         *cubesvc.Service
	validator    *validator.Validate
	logger       *logger.Logger
}

func NewHandlers(
	assets repositories.AssetRepository,
	policyEngine *policy.Engine,
	orchestratorSvc *orchsvc.Service,
	escalationSvc *escalation.Service,
	cubeSvc *cubesvc.Service,
	log *logger.Logger,
) *Handlers {
	return &Handlers{
		assets: assets, policy: policyEngine, orchestrator: orchestratorSvc,
		escalation: escalationSvc, cube: cubeSvc, validator: validation.New(), logger: log,
	}
}

// ResolveIntentRequest is the body of POST /intent/resolve.
type ResolveIntentRequest struct {
	ScanID        string `json:"scan_id" validate:"required"`
	ScannerUserID string `json:"scanner_user_id" validate:"required,uuid"`
	GarmentTag    string `json:"garment_tag" validate:"required"`
	RegionCode    string `json:"region_code" validate:"required"`
}

// ResolveIntent handles POST /intent/resolve: resolves a scanned tag to
// its asset, evaluates the view-intent policy decision, and on allow
// drives the Orchestrator's anchor-and-publish pipeline.
func (h *Handlers) ResolveIntent(c *gin.Context) {
	ctx := c.Request.Context()

	var req ResolveIntentRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid intent request", map[string]interface{}{"error": err.Error()})
		return
	}

	scanner, err := common.ParseUUID(req.ScannerUserID)
	if err != nil {
		common.RespondBadRequest(c, "invalid scanner_user_id", nil)
		return
	}

	asset, err := h.assets.GetByTag(ctx, req.GarmentTag)
	if err != nil {
		h.logger.Warn("intent resolve: unknown garment tag", "error", err, "garment_tag", req.GarmentTag)
		common.HandleServiceError(c, err, "garment")
		return
	}

	const action = entities.ActionRequestPassportView
	decision, err := h.policy.Evaluate(ctx, scanner, asset.CurrentOwnerID, &asset.ID, nil, req.RegionCode, action, nil)
	if err != nil {
		h.logger.Warn("intent resolve: policy evaluation failed", "error", err, "scan_id", req.ScanID)
		common.HandleServiceError(c, err, "policy")
		return
	}

	escalated := decision.Decision == entities.DecisionEscalate
	switch decision.Decision {
	case entities.DecisionAllow:
		if _, err := h.orchestrator.ProcessAllowed(ctx, orchsvc.Input{
			ScanID: req.ScanID, Viewer: scanner, AssetID: asset.ID, OwnerID: asset.CurrentOwnerID,
			ResolvedScope: decision.ResolvedScope, PolicyVersion: decision.PolicyVersion,
			RegionCode: req.RegionCode, ActionType: action,
		}); err != nil {
			h.logger.Warn("intent resolve: process_allowed failed", "error", err, "scan_id", req.ScanID)
			common.HandleServiceError(c, err, "orchestrator")
			return
		}
	case entities.DecisionEscalate:
		if _, err := h.escalation.Enqueue(ctx, req.ScanID, "policy_escalate", req.RegionCode, map[string]interface{}{
			"scan_id": req.ScanID, "viewer": scanner.String(), "asset_id": asset.ID.String(),
			"owner_id": asset.CurrentOwnerID.String(), "resolved_scope": string(decision.ResolvedScope),
			"policy_version": decision.PolicyVersion, "region_code": req.RegionCode,
			"action_type": string(action),
		}); err != nil {
			h.logger.Warn("intent resolve: escalation enqueue failed", "error", err, "scan_id", req.ScanID)
			common.HandleServiceError(c, err, "escalation")
			return
		}
	}

	common.RespondSuccess(c, gin.H{
		"action":         string(action),
		"garment_id":     asset.ID,
		"policy_decision": string(decision.Decision),
		"resolved_scope": string(decision.ResolvedScope),
		"policy_version": decision.PolicyVersion,
		"escalated":      escalated,
	})
}

// ExecuteTransferRequest is the body of POST /execute/transfer_ownership.
type ExecuteTransferRequest struct {
	CubeID   string  `json:"cube_id" validate:"required,uuid"`
	FromUser string  `json:"from_owner" validate:"required,uuid"`
	ToUser   string  `json:"to_owner" validate:"required,uuid"`
	Method   string  `json:"method" validate:"required"`
	Price    *string `json:"price,omitempty"`
}

// ExecuteTransfer handles POST /execute/transfer_ownership: the
// Orchestrator's own re-entry point for a transfer already authorized
// upstream by the Facet Service or a governance approval replay.
func (h *Handlers) ExecuteTransfer(c *gin.Context) {
	ctx := c.Request.Context()

	var req ExecuteTransferRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid transfer execution request", map[string]interface{}{"error": err.Error()})
		return
	}

	cubeID, err := common.ParseUUID(req.CubeID)
	if err != nil {
		common.RespondBadRequest(c, "invalid cube_id", nil)
		return
	}
	from, err := common.ParseUUID(req.FromUser)
	if err != nil {
		common.RespondBadRequest(c, "invalid from_owner", nil)
		return
	}
	to, err := common.ParseUUID(req.ToUser)
	if err != nil {
		common.RespondBadRequest(c, "invalid to_owner", nil)
		return
	}

	result, err := h.cube.TransferOwnership(ctx, cubeID, from, to, entities.TransferMethod(req.Method), req.Price, "USD", "")
	if err != nil {
		h.logger.Warn("execute transfer failed", "error", err, "cube_id", req.CubeID)
		common.HandleServiceError(c, err, "cube")
		return
	}

	common.RespondSuccess(c, gin.H{
		"transfer_id":        result["transfer_id"],
		"blockchain_tx_hash": result["blockchain_tx_hash"],
		"new_owner":          result["new_owner"],
		"ownership_face":     string(entities.FacetOwnership),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}
