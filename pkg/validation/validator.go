package validation

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/integrity-spine/spine/internal/api/handlers/common"
	"github.com/integrity-spine/spine/pkg/errors"
)

// Validator wraps the validator library with custom validation rules
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{validate: New()}
}

// New returns a *validator.Validate with every domain custom rule
// registered (safe_string, hash_hex, scan_id), for handler packages that
// want the bare validator rather than the Validator wrapper above.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("safe_string", validateSafeString)
	v.RegisterValidation("hash_hex", validateHashHex)
	v.RegisterValidation("scan_id", validateScanID)
	return v
}

// Validate validates a struct and returns error if validation fails
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return errors.NewValidationError(err.Error())
	}
	return nil
}

// ValidateJSON validates JSON request body
func (v *Validator) ValidateJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		common.RespondBadRequest(c, "Invalid JSON format", nil)
		return false
	}

	if err := v.Validate(obj); err != nil {
		common.SendValidationError(c, err.Error(), nil)
		return false
	}

	return true
}

// ValidateURI validates URI parameters
func (v *Validator) ValidateURI(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindUri(obj); err != nil {
		common.RespondBadRequest(c, "Invalid URI parameters", nil)
		return false
	}

	if err := v.Validate(obj); err != nil {
		common.SendValidationError(c, err.Error(), nil)
		return false
	}

	return true
}

// ValidateQuery validates query parameters
func (v *Validator) ValidateQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		common.RespondBadRequest(c, "Invalid query parameters", nil)
		return false
	}

	if err := v.Validate(obj); err != nil {
		common.SendValidationError(c, err.Error(), nil)
		return false
	}

	return true
}

// Custom validation functions

// validateSafeString prevents injection attacks in free-text fields
// (escalation notes, governance decision rationale).
func validateSafeString(fl validator.FieldLevel) bool {
	str := fl.Field().String()

	dangerousPatterns := []string{
		"<script", "</script>", "javascript:", "vbscript:",
		"onload=", "onerror=", "onclick=", "onmouseover=",
		"eval(", "alert(", "confirm(", "prompt(",
		"SELECT ", "INSERT ", "UPDATE ", "DELETE ", "DROP ",
		"UNION ", "EXEC ", "EXECUTE ", "CAST ", "CHAR ",
		"<", ">", "\"", "'", "&", "/*", "*/", "--",
	}

	lowerStr := strings.ToLower(str)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerStr, strings.ToLower(pattern)) {
			return false
		}
	}

	return true
}

// validateHashHex validates a lowercase hex-encoded SHA-256 digest, used
// for entry_hash/prev_hash and cross-chain root hash fields.
func validateHashHex(fl validator.FieldLevel) bool {
	hash := fl.Field().String()
	hexPattern := regexp.MustCompile(`^[a-f0-9]{64}$`)
	return hexPattern.MatchString(hash)
}

// validateScanID validates the scan_id format used to correlate an
// orchestrator run across audit, escalation, and governance endpoints.
func validateScanID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	scanIDPattern := regexp.MustCompile(`^[a-zA-Z0-9_-]{8,64}$`)
	return scanIDPattern.MatchString(id)
}

// ValidationMiddleware creates a validation middleware
func ValidationMiddleware() gin.HandlerFunc {
	v := NewValidator()

	return func(c *gin.Context) {
		// Store validator in context
		c.Set("validator", v)
		c.Next()
	}
}

// GetValidator retrieves validator from context
func GetValidator(c *gin.Context) *Validator {
	if v, exists := c.Get("validator"); exists {
		return v.(*Validator)
	}
	return NewValidator()
}

