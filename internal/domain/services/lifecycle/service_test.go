package lifecycle

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/services/verifiers"
	"github.com/integrity-spine/spine/pkg/logger"
)

// hex64 is a syntactically valid 64-char lowercase hex string for tests
// that need a burn-proof or dissolve-key value shaped like the real thing.
func hex64(fill rune) string {
	return strings.Repeat(string(fill), 64)
}

type fakeAssetRepo struct {
	assets map[uuid.UUID]*entities.Asset
}

func newFakeAssetRepo(a *entities.Asset) *fakeAssetRepo {
	return &fakeAssetRepo{assets: map[uuid.UUID]*entities.Asset{a.ID: a}}
}
func (f *fakeAssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Asset, error) {
	return f.assets[id], nil
}
func (f *fakeAssetRepo) GetByTag(ctx context.Context, authenticityHash string) (*entities.Asset, error) {
	return nil, nil
}
func (f *fakeAssetRepo) Create(ctx context.Context, a *entities.Asset) error { return nil }
func (f *fakeAssetRepo) UpdateLifecycleState(ctx context.Context, id uuid.UUID, state entities.LifecycleState, reprintGeneration int) error {
	a := f.assets[id]
	a.LifecycleState = state
	a.ReprintGeneration = reprintGeneration
	return nil
}
func (f *fakeAssetRepo) SetDissolveAuthKeyHash(ctx context.Context, id uuid.UUID, hash string) error {
	f.assets[id].DissolveAuthKeyHash = hash
	return nil
}
func (f *fakeAssetRepo) SetCurrentOwner(ctx context.Context, id, ownerID uuid.UUID) error {
	f.assets[id].CurrentOwnerID = ownerID
	return nil
}
func (f *fakeAssetRepo) CreateCreatedEdge(ctx context.Context, c *entities.Created) error { return nil }

type fakeLifecycleRepo struct {
	events []*entities.LifecycleEvent
}

func (f *fakeLifecycleRepo) Append(ctx context.Context, e *entities.LifecycleEvent) error {
	f.events = append(f.events, e)
	return nil
}
func (f *fakeLifecycleRepo) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*entities.LifecycleEvent, error) {
	return f.events, nil
}

type fakeVerifierCache struct{}

func (fakeVerifierCache) GetBurnProof(ctx context.Context, proofHash string) (*entities.BurnProofCacheEntry, error) {
	return nil, nil
}
func (fakeVerifierCache) PutBurnProof(ctx context.Context, entry *entities.BurnProofCacheEntry) error {
	return nil
}
func (fakeVerifierCache) GetMaterialESG(ctx context.Context, materialBatch string) (*entities.MaterialESGCacheEntry, error) {
	return nil, nil
}
func (fakeVerifierCache) PutMaterialESG(ctx context.Context, entry *entities.MaterialESGCacheEntry) error {
	return nil
}
func (fakeVerifierCache) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fakeLedgerClient struct {
	burnProofValid bool
	burnProofErr   error
}

func (f *fakeLedgerClient) VerifyBurnProof(ctx context.Context, proofHash string, parentAsset uuid.UUID) (bool, error) {
	return f.burnProofValid, f.burnProofErr
}
func (f *fakeLedgerClient) VerifyMaterialESG(ctx context.Context, materialBatch string) (float64, error) {
	return 1.0, nil
}

func newTestAsset(owner uuid.UUID, state entities.LifecycleState) *entities.Asset {
	return &entities.Asset{ID: uuid.New(), CurrentOwnerID: owner, LifecycleState: state}
}

func newBurnProofService(valid bool) *verifiers.Service {
	return verifiers.NewService(&fakeLedgerClient{burnProofValid: valid}, fakeVerifierCache{}, verifiers.Config{}, logger.New("error", "test"))
}

func TestAuthorizeDissolve_OwnerMints64HexKey(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner, entities.LifecycleACTIVE)
	assets := newFakeAssetRepo(asset)
	svc := NewService(assets, &fakeLifecycleRepo{}, newBurnProofService(true))

	key, err := svc.AuthorizeDissolve(context.Background(), asset, owner)

	require.NoError(t, err)
	assert.Len(t, key, 64)
	assert.NotEmpty(t, asset.DissolveAuthKeyHash)
}

func TestAuthorizeDissolve_NonOwnerDenied(t *testing.T) {
	owner, stranger := uuid.New(), uuid.New()
	asset := newTestAsset(owner, entities.LifecycleACTIVE)
	assets := newFakeAssetRepo(asset)
	svc := NewService(assets, &fakeLifecycleRepo{}, newBurnProofService(true))

	_, err := svc.AuthorizeDissolve(context.Background(), asset, stranger)

	require.Error(t, err)
}

func TestTransition_InvalidTransitionTable_ReturnsFailureNotError(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner, entities.LifecycleACTIVE)
	assets := newFakeAssetRepo(asset)
	svc := NewService(assets, &fakeLifecycleRepo{}, newBurnProofService(true))

	result, err := svc.Transition(context.Background(), asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecycleREPRINT, TriggeredBy: owner, TriggerType: entities.TriggerUser,
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "invalid_transition", result.Error)
}

func TestTransition_DissolveWithoutAuthKey_Fails(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner, entities.LifecycleACTIVE)
	assets := newFakeAssetRepo(asset)
	svc := NewService(assets, &fakeLifecycleRepo{}, newBurnProofService(true))

	_, err := svc.Transition(context.Background(), asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecycleDISSOLVE, TriggeredBy: owner, TriggerType: entities.TriggerUser,
	})

	require.Error(t, err)
}

func TestTransition_DissolveWithMatchingKey_Succeeds(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner, entities.LifecycleACTIVE)
	assets := newFakeAssetRepo(asset)
	events := &fakeLifecycleRepo{}
	svc := NewService(assets, events, newBurnProofService(true))

	key, err := svc.AuthorizeDissolve(context.Background(), asset, owner)
	require.NoError(t, err)

	result, err := svc.Transition(context.Background(), asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecycleDISSOLVE, TriggeredBy: owner,
		TriggerType: entities.TriggerUser, DissolveAuthKey: &key,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, entities.LifecycleDISSOLVE, result.NewState)
	require.Len(t, events.events, 1)
	assert.True(t, events.events[0].DissolveAuthVerified)
}

func TestTransition_DissolveWithWrongKey_Fails(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner, entities.LifecycleACTIVE)
	assets := newFakeAssetRepo(asset)
	svc := NewService(assets, &fakeLifecycleRepo{}, newBurnProofService(true))

	_, err := svc.AuthorizeDissolve(context.Background(), asset, owner)
	require.NoError(t, err)

	wrong := hex64('0')
	_, err = svc.Transition(context.Background(), asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecycleDISSOLVE, TriggeredBy: owner,
		TriggerType: entities.TriggerUser, DissolveAuthKey: &wrong,
	})

	require.Error(t, err)
}

func TestTransition_ReprintAfterDissolve_AppliesESGDelta(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner, entities.LifecycleDISSOLVE)
	assets := newFakeAssetRepo(asset)
	svc := NewService(assets, &fakeLifecycleRepo{}, newBurnProofService(true))

	burnProof := hex64('a')
	parentBatch := "MB-1"
	result, err := svc.Transition(context.Background(), asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecycleREPRINT, TriggeredBy: owner,
		TriggerType: entities.TriggerUser, BurnProofHash: &burnProof, ParentMaterialBatch: &parentBatch,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0.3, result.ESGDelta)
	assert.Equal(t, 8.0, result.CarbonSavedKg)
	assert.Equal(t, 200.0, result.WaterSavedLiters)
}

func TestTransition_ReprintWithInvalidBurnProof_Fails(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner, entities.LifecycleDISSOLVE)
	assets := newFakeAssetRepo(asset)
	svc := NewService(assets, &fakeLifecycleRepo{}, newBurnProofService(false))

	burnProof := hex64('a')
	parentBatch := "MB-1"
	_, err := svc.Transition(context.Background(), asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecycleREPRINT, TriggeredBy: owner,
		TriggerType: entities.TriggerUser, BurnProofHash: &burnProof, ParentMaterialBatch: &parentBatch,
	})

	require.Error(t, err)
}

func TestTransition_ProducedAfterReprint_IncrementsGeneration(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner, entities.LifecycleREPRINT)
	asset.ReprintGeneration = 0
	assets := newFakeAssetRepo(asset)
	svc := NewService(assets, &fakeLifecycleRepo{}, newBurnProofService(true))

	result, err := svc.Transition(context.Background(), asset, TransitionInput{
		AssetID: asset.ID, ToState: entities.LifecyclePRODUCED, TriggeredBy: owner, TriggerType: entities.TriggerUser,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, asset.ReprintGeneration)
}
