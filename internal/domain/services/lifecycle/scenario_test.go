package lifecycle

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrity-spine/spine/internal/domain/entities"
)

// TestScenario_ReprintAfterDissolve chains the full "reprint after
// dissolve" walkthrough through one asset: mint a dissolve key, dissolve
// with it, reprint against a valid burn proof, then produce, checking the
// reprint generation counter increments exactly once across the whole
// sequence.
func TestScenario_ReprintAfterDissolve(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner, entities.LifecycleACTIVE)
	assets := newFakeAssetRepo(asset)
	events := &fakeLifecycleRepo{}
	svc := NewService(assets, events, newBurnProofService(true))
	ctx := context.Background()

	key, err := svc.AuthorizeDissolve(ctx, asset, owner)
	require.NoError(t, err)
	assert.Len(t, key, 64)

	dissolveResult, err := svc.Transition(ctx, asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecycleDISSOLVE, TriggeredBy: owner,
		TriggerType: entities.TriggerUser, DissolveAuthKey: &key,
	})
	require.NoError(t, err)
	assert.True(t, dissolveResult.Success)
	assert.Equal(t, entities.LifecycleDISSOLVE, asset.LifecycleState)
	require.Len(t, events.events, 1)
	assert.True(t, events.events[0].DissolveAuthVerified)

	burnProof := hex64('a')
	parentBatch := "MB-1"
	reprintResult, err := svc.Transition(ctx, asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecycleREPRINT, TriggeredBy: owner,
		TriggerType: entities.TriggerUser, BurnProofHash: &burnProof, ParentMaterialBatch: &parentBatch,
	})
	require.NoError(t, err)
	assert.True(t, reprintResult.Success)
	assert.Equal(t, 0.3, reprintResult.ESGDelta)
	assert.Equal(t, 8.0, reprintResult.CarbonSavedKg)
	assert.Equal(t, 200.0, reprintResult.WaterSavedLiters)
	assert.Equal(t, 0, asset.ReprintGeneration)

	producedResult, err := svc.Transition(ctx, asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecyclePRODUCED, TriggeredBy: owner, TriggerType: entities.TriggerUser,
	})
	require.NoError(t, err)
	assert.True(t, producedResult.Success)
	assert.Equal(t, 1, asset.ReprintGeneration)
	assert.Len(t, events.events, 3)
}
