package policy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrity-spine/spine/internal/domain/entities"
)

// TestScenario_AllowedScan mirrors the canonical "allowed scan" walkthrough:
// a scanner with no consent rows against the asset in us-east1 resolves to
// an allow/public decision with the literal policy_v1_us-east1 fingerprint.
// The orchestrator side of that walkthrough (mutation log, audit entry,
// dual-ledger anchor) needs a live storage.Adapter and is covered instead by
// the orchestrator package's pure-logic tests, per the scoping note in
// DESIGN.md.
func TestScenario_AllowedScan(t *testing.T) {
	engine := newEngine(&fakeConsentRepo{}, &fakeFriendRepo{friends: false}, nil)

	scanner := uuid.New()
	owner := uuid.New()
	assetID := uuid.New()

	decision, err := engine.Evaluate(context.Background(), scanner, owner, &assetID, nil, "us-east1", entities.ActionRequestPassportView, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionAllow, decision.Decision)
	assert.Equal(t, entities.VisibilityPublic, decision.ResolvedScope)
	assert.Equal(t, "policy_v1_us-east1", decision.PolicyVersion)
}
