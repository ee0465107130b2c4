// Package lifecycle exposes the Lifecycle State Machine's HTTP surface:
// the fixed-table transition endpoint, the dissolve-key authorization
// flow, and its TOTP step-up enrollment/challenge.
package lifecycle

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/integrity-spine/spine/internal/api/handlers/common"
	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	"github.com/integrity-spine/spine/internal/domain/services/audit"
	lifecyclesvc "github.com/integrity-spine/spine/internal/domain/services/lifecycle"
	"github.com/integrity-spine/spine/pkg/auth"
	"github.com/integrity-spine/spine/pkg/logger"
	"github.com/integrity-spine/spine/pkg/validation"
)

// Handlers serves the lifecycle transition and dissolve-authorization
// routes.
type Handlers struct {
	assets    repositories.AssetRepository
	lifecycle *lifecyclesvc.Service
	audit     *audit.Service
	stepUp    *auth.DissolveStepUp
	validator *validator.Validate
	logger    *logger.Logger

	mu      sync.Mutex
	secrets map[uuid.UUID]string // owner_id -> enrolled TOTP secret, session-scoped
}

func NewHandlers(assets repositories.AssetRepository, lifecycleSvc *lifecyclesvc.Service, auditSvc *audit.Service, stepUp *auth.DissolveStepUp, log *logger.Logger) *Handlers {
	return &Handlers{
		assets: assets, lifecycle: lifecycleSvc, audit: auditSvc, stepUp: stepUp,
		validator: validation.New(), logger: log, secrets: map[uuid.UUID]string{},
	}
}

// TransitionRequest is the body of POST /cubes/{cube_id}/lifecycle/transition.
type TransitionRequest struct {
	ToState             string  `json:"to_state" validate:"required"`
	TriggeredBy         string  `json:"triggered_by" validate:"required,uuid"`
	Notes               string  `json:"notes,omitempty" validate:"omitempty,safe_string"`
	DissolveAuthKey     *string `json:"dissolve_auth_key,omitempty" validate:"omitempty,hash_hex"`
	BurnProofHash       *string `json:"burn_proof_hash,omitempty" validate:"omitempty,hash_hex"`
	ParentMaterialBatch *string `json:"parent_material_batch,omitempty"`
}

// Transition handles POST /cubes/{cube_id}/lifecycle/transition. On
// success it backfills audit_hash by appending a matching audit entry,
// keeping the Lifecycle State Machine itself audit-agnostic.
func (h *Handlers) Transition(c *gin.Context) {
	ctx := c.Request.Context()

	cubeID, ok := common.ParsePathUUID(c, "cube_id")
	if !ok {
		return
	}

	var req TransitionRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid transition request", map[string]interface{}{"error": err.Error()})
		return
	}

	triggeredBy, err := common.ParseUUID(req.TriggeredBy)
	if err != nil {
		common.RespondBadRequest(c, "invalid triggered_by", nil)
		return
	}

	asset, err := h.assets.GetByID(ctx, cubeID)
	if err != nil {
		common.HandleServiceError(c, err, "cube")
		return
	}

	result, err := h.lifecycle.Transition(ctx, asset, lifecyclesvc.TransitionInput{
		AssetID: cubeID, ToState: entities.LifecycleState(req.ToState), TriggeredBy: triggeredBy,
		TriggerType: entities.TriggerUser, DissolveAuthKey: req.DissolveAuthKey,
		BurnProofHash: req.BurnProofHash, ParentMaterialBatch: req.ParentMaterialBatch,
	})
	if err != nil {
		h.logger.Warn("lifecycle transition failed", "error", err, "cube_id", cubeID.String())
		common.HandleServiceError(c, err, "cube")
		return
	}

	if result.Success {
		entry, err := h.audit.Append(ctx, cubeID.String(), "lifecycle_transition/"+req.ToState, map[string]interface{}{
			"previous_state": string(result.PreviousState), "new_state": string(result.NewState),
			"notes": req.Notes,
		}, false, false, nil)
		if err != nil {
			h.logger.Warn("lifecycle audit append failed", "error", err, "cube_id", cubeID.String())
		} else {
			result.AuditHash = entry.EntryHash
		}
	}

	common.RespondSuccess(c, result)
}

// AuthorizeDissolveRequest is the body of
// POST /cubes/{cube_id}/lifecycle/authorizeDissolve.
type AuthorizeDissolveRequest struct {
	TOTPCode string `json:"totp_code" validate:"required,len=6,numeric"`
}

// AuthorizeDissolve mints the one-time dissolve key, gated by a TOTP
// step-up challenge in addition to the owner-only check already enforced
// by lifecycle.Service.AuthorizeDissolve.
func (h *Handlers) AuthorizeDissolve(c *gin.Context) {
	ctx := c.Request.Context()

	cubeID, ok := common.ParsePathUUID(c, "cube_id")
	if !ok {
		return
	}
	owner, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "owner identity required")
		return
	}

	var req AuthorizeDissolveRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid dissolve authorization request", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.Lock()
	secret, enrolled := h.secrets[owner]
	h.mu.Unlock()
	if !enrolled || !h.stepUp.Verify(secret, req.TOTPCode) {
		common.RespondError(c, 401, "step_up_required", "TOTP verification failed", nil)
		return
	}

	asset, err := h.assets.GetByID(ctx, cubeID)
	if err != nil {
		common.HandleServiceError(c, err, "cube")
		return
	}

	key, err := h.lifecycle.AuthorizeDissolve(ctx, asset, owner)
	if err != nil {
		h.logger.Warn("authorize dissolve failed", "error", err, "cube_id", cubeID.String())
		common.HandleServiceError(c, err, "cube")
		return
	}
	common.RespondSuccess(c, gin.H{"dissolve_auth_key": key})
}

// EnrollDissolveStepUp handles POST /cubes/{cube_id}/lifecycle/dissolveStepUp/enroll,
// issuing a fresh TOTP secret for the caller to scan once.
func (h *Handlers) EnrollDissolveStepUp(c *gin.Context) {
	owner, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "owner identity required")
		return
	}

	secret, otpauthURL, err := h.stepUp.Enroll(owner)
	if err != nil {
		common.RespondInternalError(c, "failed to enroll TOTP step-up")
		return
	}

	h.mu.Lock()
	h.secrets[owner] = secret
	h.mu.Unlock()

	common.RespondSuccess(c, gin.H{"secret": secret, "otpauth_url": otpauthURL})
}
