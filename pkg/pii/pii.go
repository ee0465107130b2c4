// Package pii is the single boundary function family that redacts
// identifiers in logs and in externally returned rows. Internal
// representations retain full identifiers; nothing outside this package
// should hand-roll its own redaction (§9 Design Notes: PII redaction).
package pii

import (
	"crypto/sha256"
	"encoding/hex"
)

// fullRedact fields are dropped entirely from logs/responses at the
// boundary: email, phone, SSN, credit_card, address.
var fullRedactFields = map[string]bool{
	"email":       true,
	"phone":       true,
	"ssn":         true,
	"credit_card": true,
	"address":     true,
}

// partialRedactFields are hashed rather than dropped, preserving
// correlation across log lines: user_id and its aliases.
var partialRedactFields = map[string]bool{
	"user_id":          true,
	"viewer_id":        true,
	"owner_id":         true,
	"scanner_user_id":  true,
	"grantee_user_id":  true,
	"creator_user_id":  true,
	"current_owner_id": true,
	"approver_id":      true,
	"reviewer_user_id": true,
}

// RedactID returns a deterministic SHA-256 hash of an identifier, used so
// logs can still correlate occurrences of the same id without printing it.
func RedactID(id string) string {
	if id == "" {
		return ""
	}
	h := sha256.Sum256([]byte(id))
	return hex.EncodeToString(h[:])
}

// IsFullRedactField reports whether a named field must be dropped entirely.
func IsFullRedactField(field string) bool { return fullRedactFields[field] }

// IsPartialRedactField reports whether a named field must be hashed rather
// than shown in full.
func IsPartialRedactField(field string) bool { return partialRedactFields[field] }

// RedactRow applies the field-set rules to a flat map, returning a copy
// safe to log or to hand back across an external boundary. Unlisted
// fields pass through unchanged.
func RedactRow(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		switch {
		case IsFullRedactField(k):
			continue
		case IsPartialRedactField(k):
			if s, ok := v.(string); ok {
				out[k] = RedactID(s)
				continue
			}
			out[k] = v
		default:
			out[k] = v
		}
	}
	return out
}
