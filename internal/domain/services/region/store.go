// Package region implements Region Rules (§4.6): static, loaded-once
// region policy overlays applied to a consent-derived scope decision.
package region

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/integrity-spine/spine/internal/domain/entities"
)

// Store holds the region documents loaded once at startup; it is never
// mutated afterwards, matching §9's "no later mutation" design note.
type Store struct {
	docs map[string]entities.RegionDocument
}

// NewStore indexes docs by region code, computing each one's stable
// digest if not already set.
func NewStore(docs []entities.RegionDocument) *Store {
	m := make(map[string]entities.RegionDocument, len(docs))
	for _, d := range docs {
		if d.Digest == "" {
			d.Digest = digest(d.RegionCode, d.Effect)
		}
		m[d.RegionCode] = d
	}
	return &Store{docs: m}
}

func digest(regionCode string, effect entities.RegionRuleEffect) string {
	sum := sha256.Sum256([]byte(regionCode + "|" + string(effect)))
	return hex.EncodeToString(sum[:])[:16]
}

// DefaultDocuments returns the built-in overlay set: eu-west1 carries the
// GDPR/CCPA private-scope escalation overlay (exercised by the "escalated
// private in EU" scenario), us-east1 has no overlay.
func DefaultDocuments() []entities.RegionDocument {
	return []entities.RegionDocument{
		{RegionCode: "us-east1", Effect: entities.RegionEffectNone},
		{RegionCode: "eu-west1", Effect: entities.RegionEffectGDPRCCPA},
	}
}

// Apply implements region.apply(region, scope) → allow | deny | escalate.
// Unknown regions fall through to the base default, which escalates
// private-scope access.
func (s *Store) Apply(regionCode string, scope entities.Visibility) (entities.PolicyDecisionKind, entities.RegionDocument) {
	doc, known := s.docs[regionCode]
	if !known {
		doc = entities.RegionDocument{RegionCode: regionCode, Effect: entities.RegionEffectNone, Digest: digest(regionCode, entities.RegionEffectNone)}
	}

	switch doc.Effect {
	case entities.RegionEffectEmbargo:
		return entities.DecisionDeny, doc
	case entities.RegionEffectReview:
		return entities.DecisionEscalate, doc
	case entities.RegionEffectGDPRCCPA:
		if scope == entities.VisibilityPrivate {
			return entities.DecisionEscalate, doc
		}
		return entities.DecisionAllow, doc
	default:
		if scope == entities.VisibilityPrivate {
			return entities.DecisionEscalate, doc
		}
		return entities.DecisionAllow, doc
	}
}
