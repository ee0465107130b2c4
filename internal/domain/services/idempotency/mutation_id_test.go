package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMutationID_IsStableAcrossParamOrdering(t *testing.T) {
	a := ComputeMutationID("process_allowed", map[string]string{"scan_id": "S1", "region_code": "us-east1"})
	b := ComputeMutationID("process_allowed", map[string]string{"region_code": "us-east1", "scan_id": "S1"})

	assert.Equal(t, a, b)
}

func TestComputeMutationID_DiffersByOpName(t *testing.T) {
	a := ComputeMutationID("process_allowed", map[string]string{"scan_id": "S1"})
	b := ComputeMutationID("process_denied", map[string]string{"scan_id": "S1"})

	assert.NotEqual(t, a, b)
}

func TestComputeMutationID_DiffersByParamValue(t *testing.T) {
	a := ComputeMutationID("process_allowed", map[string]string{"scan_id": "S1"})
	b := ComputeMutationID("process_allowed", map[string]string{"scan_id": "S2"})

	assert.NotEqual(t, a, b)
}

func TestComputeMutationID_IsTruncatedTo32HexChars(t *testing.T) {
	id := ComputeMutationID("process_allowed", map[string]string{"scan_id": "S1"})

	assert.Len(t, id, 32)
}

func TestComputeMutationID_EmptyParams_StillDeterministic(t *testing.T) {
	a := ComputeMutationID("noop", nil)
	b := ComputeMutationID("noop", map[string]string{})

	assert.Equal(t, a, b)
}
