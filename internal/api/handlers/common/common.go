package common

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

// ErrorResponse is the wire shape returned for every non-2xx response.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// GetUserID extracts and validates the actor id from context (set by the
// mesh-auth middleware from the validated bearer token).
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, fmt.Errorf("user ID not found in context")
	}

	switch v := userIDVal.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("invalid user ID type in context")
	}
}

// GetUserIDFromContext is an alias for GetUserID for compatibility
func GetUserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	return GetUserID(c)
}

// GetRequestID extracts the request id threaded in by pkg/requestid.
func GetRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// RespondError sends a standardized error response.
func RespondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// RespondTypedError inspects err for a *errors.Error and responds with its
// HTTP status, kind, and detail; falls back to a 500 for untyped errors.
// This is the preferred error path for every handler in this service.
func RespondTypedError(c *gin.Context, err error) {
	if typed, ok := spineerrors.As(err); ok {
		code := typed.Code
		if code == "" {
			code = string(typed.Kind)
		}
		RespondError(c, typed.HTTPStatus(), code, typed.Message, typed.Detail)
		return
	}
	RespondInternalError(c, "An unexpected error occurred")
}

// RespondUnauthorized sends an unauthorized error
func RespondUnauthorized(c *gin.Context, message string) {
	RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

// RespondBadRequest sends a bad request error
func RespondBadRequest(c *gin.Context, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", message, det)
}

// SendValidationError sends a validation_error response.
func SendValidationError(c *gin.Context, message string, details map[string]interface{}) {
	RespondError(c, http.StatusBadRequest, string(spineerrors.KindValidation), message, details)
}

// RespondInternalError sends an internal server error
func RespondInternalError(c *gin.Context, message string) {
	RespondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

// RespondNotFound sends a not found error
func RespondNotFound(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// ParseDecimal parses a string to decimal.Decimal (ESG quantities, burn-proof thresholds).
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ParseTime parses a string to time.Time (RFC3339 format)
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}
	return time.Parse(time.RFC3339, s)
}

// ParseDecimalFloat converts float64 to decimal.Decimal
func ParseDecimalFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// RespondForbidden sends a forbidden error
func RespondForbidden(c *gin.Context, message string) {
	RespondError(c, http.StatusForbidden, "FORBIDDEN", message, nil)
}

// RespondConflict sends a conflict error
func RespondConflict(c *gin.Context, message string) {
	RespondError(c, http.StatusConflict, "CONFLICT", message, nil)
}

// RespondPrecondition sends a precondition_required error with a
// machine-readable code (e.g. "dissolve_auth_required").
func RespondPrecondition(c *gin.Context, code, message string) {
	RespondError(c, http.StatusPreconditionRequired, code, message, nil)
}

// RespondSuccess sends a success response with data
func RespondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondCreated sends a created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// RespondNoContent sends a no content response
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ParseUUID parses a string to uuid.UUID
func ParseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("empty UUID string")
	}
	return uuid.Parse(s)
}

// ParseIntParam parses a query parameter to int with default value
func ParseIntParam(c *gin.Context, param string, defaultVal int) int {
	if val := c.Query(param); val != "" {
		if parsed, err := ParseInt(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// ParseInt parses string to int
func ParseInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	return i, err
}

// ParseBoolParam parses a query parameter to bool with default value
func ParseBoolParam(c *gin.Context, param string, defaultVal bool) bool {
	if val := c.Query(param); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// UserContext holds the actor identity extracted from the request context:
// the viewer/caller whose consent and policy standing gates the request.
type UserContext struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// ExtractUserContext extracts user context from gin context, returns error if unauthorized
func ExtractUserContext(c *gin.Context) (*UserContext, error) {
	userID, err := GetUserID(c)
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}

	return &UserContext{
		UserID: userID,
		Email:  c.GetString("user_email"),
		Role:   c.GetString("user_role"),
	}, nil
}

// RequireUserContext extracts user context or sends unauthorized error
func RequireUserContext(c *gin.Context) *UserContext {
	ctx, err := ExtractUserContext(c)
	if err != nil {
		RespondUnauthorized(c, "User not authenticated")
		return nil
	}
	return ctx
}

// RequireAdminContext extracts user context and verifies admin role
func RequireAdminContext(c *gin.Context) *UserContext {
	ctx := RequireUserContext(c)
	if ctx == nil {
		return nil
	}

	if ctx.Role != "admin" && ctx.Role != "super_admin" {
		RespondForbidden(c, "Admin privileges required")
		return nil
	}

	return ctx
}

// RequireSuperAdminContext extracts user context and verifies super admin role
func RequireSuperAdminContext(c *gin.Context) *UserContext {
	ctx := RequireUserContext(c)
	if ctx == nil {
		return nil
	}

	if ctx.Role != "super_admin" {
		RespondForbidden(c, "Super admin privileges required")
		return nil
	}

	return ctx
}

// PaginationParams holds pagination parameters
type PaginationParams struct {
	Limit  int
	Offset int
}

// ExtractPagination extracts pagination parameters from query
func ExtractPagination(c *gin.Context, defaultLimit, maxLimit int) PaginationParams {
	limit := ParseIntParam(c, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	if limit < 1 {
		limit = defaultLimit
	}

	offset := ParseIntParam(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	// Also support cursor-based pagination
	if cursor := c.Query("cursor"); cursor != "" {
		if o, err := ParseInt(cursor); err == nil && o >= 0 {
			offset = o
		}
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// BindAndValidate binds JSON to a struct and validates it
// Returns true if successful, false if error was sent
func BindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		RespondBadRequest(c, "Invalid request format", map[string]interface{}{"error": err.Error()})
		return false
	}
	return true
}

// ParsePathUUID parses a UUID from path parameter
// Returns true if successful, false if error was sent
func ParsePathUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	str := c.Param(param)
	if str == "" {
		RespondBadRequest(c, fmt.Sprintf("Missing %s parameter", param), nil)
		return uuid.Nil, false
	}

	id, err := uuid.Parse(str)
	if err != nil {
		RespondBadRequest(c, fmt.Sprintf("Invalid %s format", param), map[string]interface{}{"value": str})
		return uuid.Nil, false
	}

	return id, true
}

// HandleServiceError handles a service-layer error and sends the
// appropriate HTTP response. It prefers the typed *errors.Error kind and
// only falls back to string sniffing for errors that never got typed.
// Returns true if an error was handled, false if err was nil.
func HandleServiceError(c *gin.Context, err error, resourceName string) bool {
	if err == nil {
		return false
	}

	if _, ok := spineerrors.As(err); ok {
		RespondTypedError(c, err)
		return true
	}

	errMsg := err.Error()

	switch {
	case errMsg == "not found" || errMsg == resourceName+" not found" || errMsg == "sql: no rows in result set":
		RespondNotFound(c, fmt.Sprintf("%s not found", resourceName))
	case containsCI(errMsg, "already exists"):
		RespondConflict(c, fmt.Sprintf("%s already exists", resourceName))
	case containsCI(errMsg, "unauthorized"):
		RespondUnauthorized(c, errMsg)
	case containsCI(errMsg, "forbidden") || containsCI(errMsg, "permission"):
		RespondForbidden(c, errMsg)
	case containsCI(errMsg, "invalid"):
		RespondBadRequest(c, errMsg, nil)
	default:
		RespondInternalError(c, "An unexpected error occurred")
	}

	return true
}

// containsCI checks if substr is in s (case-insensitive)
func containsCI(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
