package cube

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/services/audit"
	"github.com/integrity-spine/spine/internal/domain/services/consent"
	"github.com/integrity-spine/spine/internal/domain/services/policy"
	"github.com/integrity-spine/spine/internal/domain/services/provenance"
	"github.com/integrity-spine/spine/internal/domain/services/region"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

type fakeAssetRepo struct {
	byID map[uuid.UUID]*entities.Asset
}

func (f *fakeAssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Asset, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, assertNotFound
	}
	return a, nil
}
func (f *fakeAssetRepo) GetByTag(ctx context.Context, hash string) (*entities.Asset, error) {
	return nil, assertNotFound
}
func (f *fakeAssetRepo) Create(ctx context.Context, a *entities.Asset) error {
	f.byID[a.ID] = a
	return nil
}
func (f *fakeAssetRepo) UpdateLifecycleState(ctx context.Context, id uuid.UUID, state entities.LifecycleState, gen int) error {
	f.byID[id].LifecycleState = state
	f.byID[id].ReprintGeneration = gen
	return nil
}
func (f *fakeAssetRepo) SetDissolveAuthKeyHash(ctx context.Context, id uuid.UUID, hash string) error {
	f.byID[id].DissolveAuthKeyHash = hash
	return nil
}
func (f *fakeAssetRepo) SetCurrentOwner(ctx context.Context, id, ownerID uuid.UUID) error {
	f.byID[id].CurrentOwnerID = ownerID
	return nil
}
func (f *fakeAssetRepo) CreateCreatedEdge(ctx context.Context, c *entities.Created) error { return nil }

type fakeOwnsRepo struct {
	current map[uuid.UUID]*entities.Owns
}

func (f *fakeOwnsRepo) GetCurrent(ctx context.Context, assetID uuid.UUID) (*entities.Owns, error) {
	o, ok := f.current[assetID]
	if !ok {
		return nil, assertNotFound
	}
	return o, nil
}
func (f *fakeOwnsRepo) CloseCurrent(ctx context.Context, assetID uuid.UUID, endedAt time.Time) error {
	return nil
}
func (f *fakeOwnsRepo) Create(ctx context.Context, o *entities.Owns) error {
	f.current[o.AssetID] = o
	return nil
}

type fakeProvenanceRepo struct {
	maxSeq  map[uuid.UUID]int
	entries map[uuid.UUID][]*entities.ProvenanceEntry
}

func (f *fakeProvenanceRepo) MaxSequenceNum(ctx context.Context, assetID uuid.UUID) (int, error) {
	return f.maxSeq[assetID], nil
}
func (f *fakeProvenanceRepo) Append(ctx context.Context, entry *entities.ProvenanceEntry) error {
	entry.TransferAt = time.Unix(0, 0)
	f.entries[entry.AssetID] = append(f.entries[entry.AssetID], entry)
	f.maxSeq[entry.AssetID] = entry.SequenceNum
	return nil
}
func (f *fakeProvenanceRepo) ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*entities.ProvenanceEntry, error) {
	return f.entries[assetID], nil
}

type fakeConsentRepo struct {
	policy *entities.ConsentPolicy
}

func (f *fakeConsentRepo) Resolve(ctx context.Context, viewer, owner uuid.UUID, assetID *uuid.UUID, facet *string) (*entities.ConsentPolicy, error) {
	return f.policy, nil
}
func (f *fakeConsentRepo) Create(ctx context.Context, p *entities.ConsentPolicy) error { return nil }
func (f *fakeConsentRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string, at time.Time) error {
	return nil
}

type fakeFriendRepo struct{}

func (f *fakeFriendRepo) Get(ctx context.Context, a, b uuid.UUID) (*entities.Friendship, error) {
	return nil, spineerrors.NewNotFound("no friendship")
}
func (f *fakeFriendRepo) Upsert(ctx context.Context, fr *entities.Friendship) error { return nil }

type fakeEscalationEnqueuer struct {
	calls []string
}

func (f *fakeEscalationEnqueuer) Enqueue(ctx context.Context, subjectID, reason, regionCode string, replayParams map[string]interface{}) (string, error) {
	f.calls = append(f.calls, subjectID)
	return subjectID, nil
}

type fakeAuditRepo struct {
	entries []*entities.AuditEntry
}

func (f *fakeAuditRepo) LastEntry(ctx context.Context, subjectID string) (*entities.AuditEntry, error) {
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].SubjectID == subjectID {
			return f.entries[i], nil
		}
	}
	return nil, nil
}
func (f *fakeAuditRepo) Append(ctx context.Context, entry *entities.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}
func (f *fakeAuditRepo) ListBySubject(ctx context.Context, subjectID string) ([]*entities.AuditEntry, error) {
	return nil, nil
}
func (f *fakeAuditRepo) ListByPeriod(ctx context.Context, start, end time.Time) ([]*entities.AuditEntry, error) {
	return nil, nil
}
func (f *fakeAuditRepo) GetAnchor(ctx context.Context, subjectID string) (*entities.ChainAnchor, error) {
	return nil, nil
}
func (f *fakeAuditRepo) UpsertAnchor(ctx context.Context, anchor *entities.ChainAnchor) error {
	return nil
}
func (f *fakeAuditRepo) ListEscalations(ctx context.Context) ([]*entities.AuditEntry, error) {
	return nil, nil
}
func (f *fakeAuditRepo) GetPendingEscalation(ctx context.Context, subjectID string) (*entities.AuditEntry, error) {
	return nil, nil
}
func (f *fakeAuditRepo) UpdateDecision(ctx context.Context, entry *entities.AuditEntry) error {
	return nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var assertNotFound = notFoundErr{}

func newCubeService(asset *entities.Asset, escalate *fakeEscalationEnqueuer) *Service {
	return newCubeServiceWithPolicy(asset, escalate, nil)
}

func newCubeServiceWithPolicy(asset *entities.Asset, escalate *fakeEscalationEnqueuer, consentPolicy *entities.ConsentPolicy) *Service {
	assets := &fakeAssetRepo{byID: map[uuid.UUID]*entities.Asset{asset.ID: asset}}
	owns := &fakeOwnsRepo{current: map[uuid.UUID]*entities.Owns{asset.ID: {OwnerID: asset.CurrentOwnerID, AssetID: asset.ID, IsCurrent: true}}}
	prov := &fakeProvenanceRepo{maxSeq: map[uuid.UUID]int{asset.ID: 1}, entries: map[uuid.UUID][]*entities.ProvenanceEntry{}}

	consentSvc := consent.NewService(&fakeConsentRepo{policy: consentPolicy}, &fakeFriendRepo{})
	regionStore := region.NewStore(region.DefaultDocuments())
	engine := policy.NewEngine(consentSvc, regionStore, nil)
	provenanceSvc := provenance.NewService(assets, owns, prov)
	auditSvc := audit.NewService(&fakeAuditRepo{})

	var enq EscalationEnqueuer
	if escalate != nil {
		enq = escalate
	}
	return NewService(assets, owns, engine, provenanceSvc, nil, auditSvc, enq)
}

func newTestAsset(owner uuid.UUID) *entities.Asset {
	return &entities.Asset{
		ID: uuid.New(), CreatorUserID: owner, CurrentOwnerID: owner,
		LifecycleState: entities.LifecycleACTIVE, AuthenticityHash: "hash",
	}
}

func TestGetCube_OwnerSeesAllFacetsVisible(t *testing.T) {
	owner := uuid.New()
	asset := newTestAsset(owner)
	svc := newCubeService(asset, nil)

	view, err := svc.GetCube(context.Background(), asset.ID, owner, "us-east1")

	require.NoError(t, err)
	assert.Equal(t, owner, view.OwnerID)
	assert.Len(t, view.Faces, len(entities.AllFacets))
	for _, face := range view.Faces {
		assert.Equal(t, entities.FaceStatusVisible, face.Status)
	}
}

func TestGetFace_StrangerNotMatchingCustomGrant_IsDenied(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	grantee := uuid.New()
	asset := newTestAsset(owner)
	customPolicy := &entities.ConsentPolicy{Scope: entities.ScopeGlobal, Visibility: entities.VisibilityCustom, GranteeUserID: &grantee, PolicyVersion: 1}
	svc := newCubeServiceWithPolicy(asset, nil, customPolicy)

	_, err := svc.GetFace(context.Background(), asset.ID, stranger, "ownership", "us-east1")

	require.Error(t, err)
}

func TestGetFace_EscalatedPrivateInGDPRRegion_EnqueuesGovernance(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	asset := newTestAsset(owner)
	escalate := &fakeEscalationEnqueuer{}
	privatePolicy := &entities.ConsentPolicy{Scope: entities.ScopeGlobal, Visibility: entities.VisibilityPrivate, PolicyVersion: 1}
	svc := newCubeServiceWithPolicy(asset, escalate, privatePolicy)

	face, err := svc.GetFace(context.Background(), asset.ID, stranger, "ownership", "eu-west1")

	require.NoError(t, err)
	assert.Equal(t, entities.FaceStatusEscalatedPending, face.Status)
	assert.NotEmpty(t, escalate.calls)
}

func TestTransferOwnership_AllowedTransfer_RecordsProvenanceEntry(t *testing.T) {
	owner := uuid.New()
	newOwner := uuid.New()
	asset := newTestAsset(owner)
	svc := newCubeService(asset, nil)

	result, err := svc.TransferOwnership(context.Background(), asset.ID, owner, newOwner, entities.TransferMethodGift, nil, "USD", "us-east1")

	require.NoError(t, err)
	assert.Equal(t, "transfer_complete", result["status"])
	assert.Equal(t, newOwner, asset.CurrentOwnerID)
}

func TestTransferOwnership_NonOwnerInitiator_Denied(t *testing.T) {
	owner := uuid.New()
	notOwner := uuid.New()
	newOwner := uuid.New()
	asset := newTestAsset(owner)
	svc := newCubeService(asset, nil)

	_, err := svc.TransferOwnership(context.Background(), asset.ID, notOwner, newOwner, entities.TransferMethodGift, nil, "USD", "us-east1")

	require.Error(t, err)
}
