package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type safeStringFixture struct {
	Note string `validate:"safe_string"`
}

type hashHexFixture struct {
	Hash string `validate:"hash_hex"`
}

type scanIDFixture struct {
	ScanID string `validate:"scan_id"`
}

func TestValidate_SafeString_RejectsScriptTag(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&safeStringFixture{Note: "<script>alert(1)</script>"})
	require.Error(t, err)
}

func TestValidate_SafeString_RejectsSQLKeyword(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&safeStringFixture{Note: "SELECT * FROM users"})
	require.Error(t, err)
}

func TestValidate_SafeString_AcceptsOrdinaryText(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&safeStringFixture{Note: "approved after manual review"})
	assert.NoError(t, err)
}

func TestValidate_HashHex_RequiresExactly64LowercaseHexChars(t *testing.T) {
	v := NewValidator()

	valid := &hashHexFixture{Hash: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"}
	assert.NoError(t, v.Validate(valid))

	tooShort := &hashHexFixture{Hash: "deadbeef"}
	assert.Error(t, v.Validate(tooShort))

	upperCase := &hashHexFixture{Hash: "DEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEF"}
	assert.Error(t, v.Validate(upperCase))
}

func TestValidate_ScanID_AcceptsAlphanumericWithinLengthBounds(t *testing.T) {
	v := NewValidator()

	valid := &scanIDFixture{ScanID: "scan-2026-0001"}
	assert.NoError(t, v.Validate(valid))

	tooShort := &scanIDFixture{ScanID: "S1"}
	assert.Error(t, v.Validate(tooShort))

	badChars := &scanIDFixture{ScanID: "scan id!!"}
	assert.Error(t, v.Validate(badChars))
}
