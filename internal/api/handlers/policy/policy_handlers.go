// Package policy exposes the Policy Engine's HTTP surface: the two
// read-only decision checks consumed by the Orchestrator and the Facet
// Service's callers.
package policy

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/integrity-spine/spine/internal/api/handlers/common"
	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	policysvc "github.com/integrity-spine/spine/internal/domain/services/policy"
	"github.com/integrity-spine/spine/pkg/logger"
	"github.com/integrity-spine/spine/pkg/validation"
)

type Handlers struct {
	assets    repositories.AssetRepository
	engine    *policysvc.Engine
	validator *validator.Validate
	logger    *logger.Logger
}

func NewHandlers(assets repositories.AssetRepository, engine *policysvc.Engine, log *logger.Logger) *Handlers {
	return &Handlers{assets: assets, engine: engine, validator: validation.New(), logger: log}
}

// CheckRequest is the body of POST /policy/check.
type CheckRequest struct {
	ScannerUserID string `json:"scanner_user_id" validate:"required,uuid"`
	GarmentID     string `json:"garment_id" validate:"required,uuid"`
	RegionCode    string `json:"region_code" validate:"required"`
	Action        string `json:"action" validate:"required"`
}

// CanViewFaceRequest is the body of POST /policy/canViewFace.
type CanViewFaceRequest struct {
	ViewerID string `json:"viewer_id" validate:"required,uuid"`
	OwnerID  string `json:"owner_id" validate:"required,uuid"`
	CubeID   string `json:"cube_id" validate:"required,uuid"`
	FaceName string `json:"face_name" validate:"required"`
}

// Check handles POST /policy/check.
func (h *Handlers) Check(c *gin.Context) {
	ctx := c.Request.Context()

	var req CheckRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid policy check request", map[string]interface{}{"error": err.Error()})
		return
	}

	scanner, err := common.ParseUUID(req.ScannerUserID)
	if err != nil {
		common.RespondBadRequest(c, "invalid scanner_user_id", nil)
		return
	}
	assetID, err := common.ParseUUID(req.GarmentID)
	if err != nil {
		common.RespondBadRequest(c, "invalid garment_id", nil)
		return
	}

	asset, err := h.assets.GetByID(ctx, assetID)
	if err != nil {
		h.logger.Warn("policy check: unknown garment id", "error", err, "garment_id", req.GarmentID)
		common.HandleServiceError(c, err, "garment")
		return
	}

	decision, err := h.engine.Evaluate(ctx, scanner, asset.CurrentOwnerID, &assetID, nil, req.RegionCode, entities.ActionType(req.Action), nil)
	if err != nil {
		h.logger.Warn("policy check failed", "error", err, "garment_id", req.GarmentID)
		common.HandleServiceError(c, err, "policy")
		return
	}
	common.RespondSuccess(c, gin.H{
		"decision":       decision.Decision,
		"resolved_scope": decision.ResolvedScope,
		"policy_version": decision.PolicyVersion,
	})
}

// CanViewFace handles POST /policy/canViewFace.
func (h *Handlers) CanViewFace(c *gin.Context) {
	ctx := c.Request.Context()

	var req CanViewFaceRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid canViewFace request", map[string]interface{}{"error": err.Error()})
		return
	}

	viewer, err := common.ParseUUID(req.ViewerID)
	if err != nil {
		common.RespondBadRequest(c, "invalid viewer_id", nil)
		return
	}
	owner, err := common.ParseUUID(req.OwnerID)
	if err != nil {
		common.RespondBadRequest(c, "invalid owner_id", nil)
		return
	}
	cubeID, err := common.ParseUUID(req.CubeID)
	if err != nil {
		common.RespondBadRequest(c, "invalid cube_id", nil)
		return
	}

	decision, err := h.engine.Evaluate(ctx, viewer, owner, &cubeID, &req.FaceName, "", entities.ActionRequestPassportView, nil)
	if err != nil {
		h.logger.Warn("canViewFace failed", "error", err, "cube_id", req.CubeID)
		common.HandleServiceError(c, err, "policy")
		return
	}
	common.RespondSuccess(c, gin.H{"decision": decision.Decision})
}
