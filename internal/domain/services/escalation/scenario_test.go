package escalation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/services/audit"
	"github.com/integrity-spine/spine/internal/domain/services/consent"
	"github.com/integrity-spine/spine/internal/domain/services/policy"
	"github.com/integrity-spine/spine/internal/domain/services/region"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

type scenarioConsentRepo struct {
	policy *entities.ConsentPolicy
}

func (f *scenarioConsentRepo) Resolve(ctx context.Context, viewer, owner uuid.UUID, assetID *uuid.UUID, facet *string) (*entities.ConsentPolicy, error) {
	return f.policy, nil
}
func (f *scenarioConsentRepo) Create(ctx context.Context, p *entities.ConsentPolicy) error { return nil }
func (f *scenarioConsentRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string, at time.Time) error {
	return nil
}

type scenarioFriendRepo struct{}

func (f *scenarioFriendRepo) Get(ctx context.Context, a, b uuid.UUID) (*entities.Friendship, error) {
	return nil, spineerrors.NewNotFound("no friendship")
}
func (f *scenarioFriendRepo) Upsert(ctx context.Context, fr *entities.Friendship) error { return nil }

// TestScenario_EscalatedPrivateInEU mirrors the canonical "escalated
// private in EU" walkthrough: owner U2 has a private-scope global
// consent, stranger viewer U3 checks the policy in eu-west1 and gets
// escalate/private, the escalation is queued exactly once, and an
// approved governance decision flips escalated_to_human to false and
// appends the /human_decision suffix to the summary.
func TestScenario_EscalatedPrivateInEU(t *testing.T) {
	owner := uuid.New()
	viewer := uuid.New()

	privatePolicy := &entities.ConsentPolicy{
		Scope: entities.ScopeGlobal, Visibility: entities.VisibilityPrivate, PolicyVersion: 1,
	}
	consentSvc := consent.NewService(&scenarioConsentRepo{policy: privatePolicy}, &scenarioFriendRepo{})
	regionStore := region.NewStore(region.DefaultDocuments())
	engine := policy.NewEngine(consentSvc, regionStore, nil)

	decision, err := engine.Evaluate(context.Background(), viewer, owner, nil, nil, "eu-west1", entities.ActionRequestPassportView, nil)
	require.NoError(t, err)
	assert.Equal(t, entities.DecisionEscalate, decision.Decision)
	assert.Equal(t, entities.VisibilityPrivate, decision.ResolvedScope)
	assert.Equal(t, "policy_v1_eu-west1", decision.PolicyVersion)

	auditRepo := newFakeAuditRepo()
	escalationSvc := NewService(audit.NewService(auditRepo), &fakeReplayer{})

	subjectID, err := escalationSvc.Enqueue(context.Background(), "S2", "policy_escalate", "eu-west1", map[string]interface{}{
		"scan_id": "S2", "viewer": viewer.String(), "owner_id": owner.String(),
		"resolved_scope": string(decision.ResolvedScope), "policy_version": decision.PolicyVersion,
	})
	require.NoError(t, err)
	assert.Equal(t, "S2", subjectID)

	pending, err := escalationSvc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].RiskFlagged)
	assert.True(t, pending[0].EscalatedToHuman)
	assert.Nil(t, pending[0].HumanApproverID)

	reviewer := uuid.New()
	decided, err := escalationSvc.Decide(context.Background(), "S2", true, reviewer, "approved")

	require.NoError(t, err)
	require.NotNil(t, decided)
	assert.False(t, decided.EscalatedToHuman)
	assert.Equal(t, reviewer, *decided.HumanApproverID)
	assert.True(t, strings.HasSuffix(decided.DecisionSummary, "/human_decision"))

	stillPending, err := escalationSvc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stillPending)
}
