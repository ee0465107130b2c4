package region

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/integrity-spine/spine/internal/domain/entities"
)

func TestApply_USEast1_NoOverlay_AllowsPublic(t *testing.T) {
	store := NewStore(DefaultDocuments())

	decision, doc := store.Apply("us-east1", entities.VisibilityPublic)

	assert.Equal(t, entities.DecisionAllow, decision)
	assert.Equal(t, entities.RegionEffectNone, doc.Effect)
}

func TestApply_USEast1_NoOverlay_EscalatesPrivate(t *testing.T) {
	store := NewStore(DefaultDocuments())

	decision, _ := store.Apply("us-east1", entities.VisibilityPrivate)

	assert.Equal(t, entities.DecisionEscalate, decision)
}

func TestApply_EUWest1_GDPRCCPA_EscalatesPrivate(t *testing.T) {
	store := NewStore(DefaultDocuments())

	decision, doc := store.Apply("eu-west1", entities.VisibilityPrivate)

	assert.Equal(t, entities.DecisionEscalate, decision)
	assert.Equal(t, entities.RegionEffectGDPRCCPA, doc.Effect)
}

func TestApply_EUWest1_GDPRCCPA_AllowsPublic(t *testing.T) {
	store := NewStore(DefaultDocuments())

	decision, _ := store.Apply("eu-west1", entities.VisibilityPublic)

	assert.Equal(t, entities.DecisionAllow, decision)
}

func TestApply_UnknownRegion_FallsThroughToDefault(t *testing.T) {
	store := NewStore(DefaultDocuments())

	decision, doc := store.Apply("unknown-region", entities.VisibilityPublic)

	assert.Equal(t, entities.DecisionAllow, decision)
	assert.Equal(t, "unknown-region", doc.RegionCode)
}

func TestApply_EmbargoEffect_AlwaysDenies(t *testing.T) {
	store := NewStore([]entities.RegionDocument{{RegionCode: "sanctioned", Effect: entities.RegionEffectEmbargo}})

	decision, _ := store.Apply("sanctioned", entities.VisibilityPublic)

	assert.Equal(t, entities.DecisionDeny, decision)
}

func TestApply_ReviewEffect_AlwaysEscalates(t *testing.T) {
	store := NewStore([]entities.RegionDocument{{RegionCode: "watch", Effect: entities.RegionEffectReview}})

	decision, _ := store.Apply("watch", entities.VisibilityPublic)

	assert.Equal(t, entities.DecisionEscalate, decision)
}

func TestNewStore_ComputesStableDigestWhenUnset(t *testing.T) {
	store := NewStore([]entities.RegionDocument{{RegionCode: "us-east1", Effect: entities.RegionEffectNone}})

	_, doc := store.Apply("us-east1", entities.VisibilityPublic)

	assert.NotEmpty(t, doc.Digest)
	assert.Len(t, doc.Digest, 16)
}

func TestNewStore_PreservesExplicitDigest(t *testing.T) {
	store := NewStore([]entities.RegionDocument{{RegionCode: "us-east1", Effect: entities.RegionEffectNone, Digest: "custom-digest"}})

	_, doc := store.Apply("us-east1", entities.VisibilityPublic)

	assert.Equal(t, "custom-digest", doc.Digest)
}
