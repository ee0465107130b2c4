// Package policy implements the Policy Engine (§4.6): composes the
// Consent Graph and Region Rules into one of {allow, deny, escalate} plus
// a resolved visibility scope and policy version fingerprint.
package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/services/consent"
	"github.com/integrity-spine/spine/internal/domain/services/region"
	"github.com/integrity-spine/spine/pkg/metrics"
)

// ESGVerifier is consulted for transactional actions; any result other
// than a valid score above threshold becomes escalate, never allow.
type ESGVerifier interface {
	VerifyMaterial(ctx context.Context, materialBatch string) (*entities.VerifierResult, float64, error)
}

// TransactionalContext carries the extra material needed to gate a
// transactional action (transfer, dissolve, reprint) through the ESG
// verifier. Nil skips the extra gate, used for non-transactional actions.
type TransactionalContext struct {
	MaterialBatch string
	UserMinESG    *float64
}

// Engine is the Policy Engine.
type Engine struct {
	consent *consent.Service
	region  *region.Store
	esg     ESGVerifier
}

func NewEngine(consentSvc *consent.Service, regionStore *region.Store, esg ESGVerifier) *Engine {
	return &Engine{consent: consentSvc, region: regionStore, esg: esg}
}

// Evaluate implements §4.6's composed decision.
func (e *Engine) Evaluate(ctx context.Context, viewer, owner uuid.UUID, assetID *uuid.UUID, facet *string, regionCode string, action entities.ActionType, txCtx *TransactionalContext) (*entities.PolicyDecision, error) {
	consentDecision, err := e.consent.Check(ctx, viewer, owner, assetID, facet)
	if err != nil {
		return nil, err
	}

	base := entities.DecisionDeny
	if consentDecision.Allowed {
		base = entities.DecisionAllow
	}

	// Owner bypass short-circuits the region overlay too: ScopeOwner means
	// policy resolution was skipped entirely, so there is nothing left for
	// region rules to restrict.
	var final entities.PolicyDecisionKind
	var regionDoc entities.RegionDocument
	if consentDecision.Scope == entities.ScopeOwner {
		final = base
		_, regionDoc = e.region.Apply(regionCode, consentDecision.Visibility)
	} else {
		var regionDecision entities.PolicyDecisionKind
		regionDecision, regionDoc = e.region.Apply(regionCode, consentDecision.Visibility)
		final = mostRestrictive(base, regionDecision)
	}

	if action.IsTransactional() && final == entities.DecisionAllow && txCtx != nil {
		final, err = e.applyTransactionalGate(ctx, action, txCtx)
		if err != nil {
			return nil, err
		}
	}

	reason := consentDecision.Reason
	if final == entities.DecisionDeny && reason == "" {
		reason = "region_embargo"
	}

	metrics.RecordPolicyDecision(string(final))

	return &entities.PolicyDecision{
		Decision:      final,
		ResolvedScope: consentDecision.Visibility,
		PolicyVersion: policyVersionString(consentDecision.PolicyVersion, regionCode, regionDoc.Digest),
		Reason:        reason,
	}, nil
}

func (e *Engine) applyTransactionalGate(ctx context.Context, action entities.ActionType, txCtx *TransactionalContext) (entities.PolicyDecisionKind, error) {
	if txCtx.MaterialBatch == "" {
		return entities.DecisionEscalate, nil
	}
	result, score, err := e.esg.VerifyMaterial(ctx, txCtx.MaterialBatch)
	if err != nil {
		return entities.DecisionEscalate, nil
	}
	if result.Kind != entities.VerifierValid {
		return entities.DecisionEscalate, nil
	}
	threshold := thresholdFor(action)
	if txCtx.UserMinESG != nil && *txCtx.UserMinESG > threshold {
		threshold = *txCtx.UserMinESG
	}
	if score < threshold {
		return entities.DecisionEscalate, nil
	}
	return entities.DecisionAllow, nil
}

func thresholdFor(action entities.ActionType) float64 {
	switch action {
	case entities.ActionDissolve:
		return entities.ESGThresholdDissolve
	case entities.ActionReprint:
		return entities.ESGThresholdReprint
	default:
		return entities.ESGThreshold[entities.TransferTypeTrade]
	}
}

// mostRestrictive combines the consent-derived base decision with the
// region overlay. A region decision of allow means no overlay applies, so
// the base decision stands; any other region decision (embargo's deny,
// review's escalate, or the GDPR/CCPA and unknown-region private-scope
// escalation) overrides the base outright, including a base deny — the
// region rule can only ever make access stricter or route it to a human,
// never more permissive than what it explicitly allows.
func mostRestrictive(base, region entities.PolicyDecisionKind) entities.PolicyDecisionKind {
	if region != entities.DecisionAllow {
		return region
	}
	return base
}

// policyVersionString renders "policy_v{n}_{region}" from the consent
// policy_version (0 is rendered as 1) and the region code, matching the
// canonical-scan end-to-end scenario's expected literal form. The region
// document digest passed as the third argument is ignored.
func policyVersionString(consentPolicyVersion int, regionCode, _ string) string {
	v := consentPolicyVersion
	if v == 0 {
		v = 1
	}
	return fmt.Sprintf("policy_v%d_%s", v, regionCode)
}
