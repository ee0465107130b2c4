// Package cube exposes the Cube Facet Service's HTTP surface: per-facet
// reads and the ownership-transfer flow.
package cube

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/integrity-spine/spine/internal/api/handlers/common"
	"github.com/integrity-spine/spine/internal/domain/entities"
	cubesvc "github.com/integrity-spine/spine/internal/domain/services/cube"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
	"github.com/integrity-spine/spine/pkg/logger"
	"github.com/integrity-spine/spine/pkg/validation"
)

// Handlers serves the Facet Service's routes.
type Handlers struct {
	cube      *cubesvc.Service
	validator *validator.Validate
	logger    *logger.Logger
}

func NewHandlers(cubeSvc *cubesvc.Service, log *logger.Logger) *Handlers {
	return &Handlers{cube: cubeSvc, validator: validation.New(), logger: log}
}

// TransferOwnershipRequest is the body of POST /cubes/{cube_id}/transferOwnership.
type TransferOwnershipRequest struct {
	From     string  `json:"from" validate:"required,uuid"`
	To       string  `json:"to" validate:"required,uuid"`
	Method   string  `json:"method" validate:"required"`
	Price    *string `json:"price,omitempty"`
	Currency string  `json:"currency,omitempty"`
}

func regionCode(c *gin.Context) string {
	if rc := c.Query("region_code"); rc != "" {
		return rc
	}
	return c.GetHeader("X-Region-Code")
}

// GetCube handles GET /cubes/{cube_id}.
func (h *Handlers) GetCube(c *gin.Context) {
	ctx := c.Request.Context()

	cubeID, ok := common.ParsePathUUID(c, "cube_id")
	if !ok {
		return
	}
	viewer, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "viewer identity required")
		return
	}

	view, err := h.cube.GetCube(ctx, cubeID, viewer, regionCode(c))
	if err != nil {
		h.logger.Warn("get_cube failed", "error", err, "cube_id", cubeID.String())
		common.HandleServiceError(c, err, "cube")
		return
	}
	common.RespondSuccess(c, view)
}

// GetFace handles GET /cubes/{cube_id}/faces/{facet}.
func (h *Handlers) GetFace(c *gin.Context) {
	ctx := c.Request.Context()

	cubeID, ok := common.ParsePathUUID(c, "cube_id")
	if !ok {
		return
	}
	facet := c.Param("facet")
	viewer, err := common.GetUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "viewer identity required")
		return
	}

	face, err := h.cube.GetFace(ctx, cubeID, viewer, facet, regionCode(c))
	if err != nil {
		if spineerrors.KindOf(err) == spineerrors.KindPermissionDenied {
			c.JSON(http.StatusForbidden, gin.H{"error": "access_denied"})
			return
		}
		h.logger.Warn("get_face failed", "error", err, "cube_id", cubeID.String(), "facet", facet)
		common.HandleServiceError(c, err, "face")
		return
	}
	common.RespondSuccess(c, face)
}

// TransferOwnership handles POST /cubes/{cube_id}/transferOwnership.
func (h *Handlers) TransferOwnership(c *gin.Context) {
	ctx := c.Request.Context()

	cubeID, ok := common.ParsePathUUID(c, "cube_id")
	if !ok {
		return
	}

	var req TransferOwnershipRequest
	if !common.BindAndValidate(c, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		common.SendValidationError(c, "invalid transfer request", map[string]interface{}{"error": err.Error()})
		return
	}

	from, err := common.ParseUUID(req.From)
	if err != nil {
		common.RespondBadRequest(c, "invalid from", nil)
		return
	}
	to, err := common.ParseUUID(req.To)
	if err != nil {
		common.RespondBadRequest(c, "invalid to", nil)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	result, err := h.cube.TransferOwnership(ctx, cubeID, from, to, entities.TransferMethod(req.Method), req.Price, currency, regionCode(c))
	if err != nil {
		h.logger.Warn("transfer_ownership failed", "error", err, "cube_id", cubeID.String())
		common.HandleServiceError(c, err, "cube")
		return
	}
	common.RespondSuccess(c, result)
}
