package policy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/services/consent"
	"github.com/integrity-spine/spine/internal/domain/services/region"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

// fakeConsentRepo and fakeFriendRepo back the Consent Graph with in-memory
// state instead of Postgres, matching the interfaces in
// internal/domain/repositories.
type fakeConsentRepo struct {
	policy *entities.ConsentPolicy
}

func (f *fakeConsentRepo) Resolve(ctx context.Context, viewer, owner uuid.UUID, assetID *uuid.UUID, facet *string) (*entities.ConsentPolicy, error) {
	return f.policy, nil
}
func (f *fakeConsentRepo) Create(ctx context.Context, p *entities.ConsentPolicy) error {
	f.policy = p
	return nil
}
func (f *fakeConsentRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string, at time.Time) error {
	if f.policy != nil {
		f.policy.IsRevoked = true
	}
	return nil
}

type fakeFriendRepo struct {
	friends bool
}

func (f *fakeFriendRepo) Get(ctx context.Context, a, b uuid.UUID) (*entities.Friendship, error) {
	if !f.friends {
		return nil, spineerrors.NewNotFound("no friendship")
	}
	return &entities.Friendship{UserIDA: a, UserIDB: b, Status: entities.FriendshipAccepted}, nil
}
func (f *fakeFriendRepo) Upsert(ctx context.Context, fr *entities.Friendship) error { return nil }

type fakeESGVerifier struct {
	result *entities.VerifierResult
	score  float64
	err    error
}

func (f *fakeESGVerifier) VerifyMaterial(ctx context.Context, materialBatch string) (*entities.VerifierResult, float64, error) {
	return f.result, f.score, f.err
}

func newEngine(consentRepo *fakeConsentRepo, friendRepo *fakeFriendRepo, esg ESGVerifier) *Engine {
	consentSvc := consent.NewService(consentRepo, friendRepo)
	regionStore := region.NewStore(region.DefaultDocuments())
	return NewEngine(consentSvc, regionStore, esg)
}

func TestEvaluate_AllowedScan_NoConsentRows(t *testing.T) {
	engine := newEngine(&fakeConsentRepo{}, &fakeFriendRepo{friends: false}, nil)

	viewer, owner := uuid.New(), uuid.New()
	assetID := uuid.New()
	decision, err := engine.Evaluate(context.Background(), viewer, owner, &assetID, nil, "us-east1", entities.ActionRequestPassportView, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionAllow, decision.Decision)
	assert.Equal(t, entities.VisibilityPublic, decision.ResolvedScope)
	assert.Equal(t, "policy_v1_us-east1", decision.PolicyVersion)
}

func TestEvaluate_EscalatedPrivateInEU(t *testing.T) {
	policy := &entities.ConsentPolicy{
		Scope: entities.ScopeGlobal, Visibility: entities.VisibilityPrivate, PolicyVersion: 1,
	}
	engine := newEngine(&fakeConsentRepo{policy: policy}, &fakeFriendRepo{friends: false}, nil)

	viewer, owner := uuid.New(), uuid.New()
	decision, err := engine.Evaluate(context.Background(), viewer, owner, nil, nil, "eu-west1", entities.ActionRequestPassportView, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionEscalate, decision.Decision)
	assert.Equal(t, entities.VisibilityPrivate, decision.ResolvedScope)
	assert.Equal(t, "policy_v1_eu-west1", decision.PolicyVersion)
}

func TestEvaluate_OwnerViewingOwnAsset_AlwaysAllowed(t *testing.T) {
	engine := newEngine(&fakeConsentRepo{}, &fakeFriendRepo{friends: false}, nil)

	owner := uuid.New()
	decision, err := engine.Evaluate(context.Background(), owner, owner, nil, nil, "eu-west1", entities.ActionRequestPassportView, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionAllow, decision.Decision)
}

func TestEvaluate_FriendsOnlyVisibility_DeniesNonFriend(t *testing.T) {
	policy := &entities.ConsentPolicy{Scope: entities.ScopeGlobal, Visibility: entities.VisibilityFriendsOnly, PolicyVersion: 2}
	engine := newEngine(&fakeConsentRepo{policy: policy}, &fakeFriendRepo{friends: false}, nil)

	viewer, owner := uuid.New(), uuid.New()
	decision, err := engine.Evaluate(context.Background(), viewer, owner, nil, nil, "us-east1", entities.ActionRequestPassportView, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionDeny, decision.Decision)
	assert.Equal(t, "not_friends", decision.Reason)
}

func TestEvaluate_TransactionalAction_EscalatesWithoutMaterialBatch(t *testing.T) {
	policy := &entities.ConsentPolicy{Scope: entities.ScopeGlobal, Visibility: entities.VisibilityPublic, PolicyVersion: 1}
	engine := newEngine(&fakeConsentRepo{policy: policy}, &fakeFriendRepo{friends: false}, &fakeESGVerifier{})

	viewer, owner := uuid.New(), uuid.New()
	decision, err := engine.Evaluate(context.Background(), viewer, owner, nil, nil, "us-east1", entities.ActionTransferOwnership, &TransactionalContext{})

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionEscalate, decision.Decision)
}

func TestEvaluate_TransactionalAction_AllowsWhenESGAboveThreshold(t *testing.T) {
	policy := &entities.ConsentPolicy{Scope: entities.ScopeGlobal, Visibility: entities.VisibilityPublic, PolicyVersion: 1}
	esg := &fakeESGVerifier{result: &entities.VerifierResult{Kind: entities.VerifierValid}, score: 0.95}
	engine := newEngine(&fakeConsentRepo{policy: policy}, &fakeFriendRepo{friends: false}, esg)

	viewer, owner := uuid.New(), uuid.New()
	decision, err := engine.Evaluate(context.Background(), viewer, owner, nil, nil, "us-east1", entities.ActionTransferOwnership, &TransactionalContext{MaterialBatch: "MB-1"})

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionAllow, decision.Decision)
}

func TestEvaluate_TransactionalAction_EscalatesWhenESGBelowThreshold(t *testing.T) {
	policy := &entities.ConsentPolicy{Scope: entities.ScopeGlobal, Visibility: entities.VisibilityPublic, PolicyVersion: 1}
	esg := &fakeESGVerifier{result: &entities.VerifierResult{Kind: entities.VerifierValid}, score: 0.01}
	engine := newEngine(&fakeConsentRepo{policy: policy}, &fakeFriendRepo{friends: false}, esg)

	viewer, owner := uuid.New(), uuid.New()
	decision, err := engine.Evaluate(context.Background(), viewer, owner, nil, nil, "us-east1", entities.ActionDissolve, &TransactionalContext{MaterialBatch: "MB-1"})

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionEscalate, decision.Decision)
}

func TestEvaluate_TransactionalAction_EscalatesWhenVerifierInvalid(t *testing.T) {
	policy := &entities.ConsentPolicy{Scope: entities.ScopeGlobal, Visibility: entities.VisibilityPublic, PolicyVersion: 1}
	esg := &fakeESGVerifier{result: &entities.VerifierResult{Kind: entities.VerifierInvalid}, score: 0.99}
	engine := newEngine(&fakeConsentRepo{policy: policy}, &fakeFriendRepo{friends: false}, esg)

	viewer, owner := uuid.New(), uuid.New()
	decision, err := engine.Evaluate(context.Background(), viewer, owner, nil, nil, "us-east1", entities.ActionReprint, &TransactionalContext{MaterialBatch: "MB-1"})

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionEscalate, decision.Decision)
}

func TestMostRestrictive_RegionOverrideWinsUnlessRegionAllows(t *testing.T) {
	assert.Equal(t, entities.DecisionDeny, mostRestrictive(entities.DecisionAllow, entities.DecisionDeny))
	assert.Equal(t, entities.DecisionDeny, mostRestrictive(entities.DecisionDeny, entities.DecisionAllow))
	assert.Equal(t, entities.DecisionEscalate, mostRestrictive(entities.DecisionAllow, entities.DecisionEscalate))
	assert.Equal(t, entities.DecisionEscalate, mostRestrictive(entities.DecisionDeny, entities.DecisionEscalate))
}
