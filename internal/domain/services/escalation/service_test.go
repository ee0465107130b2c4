package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/services/audit"
	"github.com/integrity-spine/spine/internal/domain/services/orchestrator"
)

type fakeAuditRepo struct {
	bySubject map[string][]*entities.AuditEntry
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{bySubject: map[string][]*entities.AuditEntry{}}
}
func (f *fakeAuditRepo) LastEntry(ctx context.Context, subjectID string) (*entities.AuditEntry, error) {
	rows := f.bySubject[subjectID]
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[len(rows)-1], nil
}
func (f *fakeAuditRepo) Append(ctx context.Context, entry *entities.AuditEntry) error {
	f.bySubject[entry.SubjectID] = append(f.bySubject[entry.SubjectID], entry)
	return nil
}
func (f *fakeAuditRepo) ListBySubject(ctx context.Context, subjectID string) ([]*entities.AuditEntry, error) {
	return f.bySubject[subjectID], nil
}
func (f *fakeAuditRepo) ListByPeriod(ctx context.Context, start, end time.Time) ([]*entities.AuditEntry, error) {
	var out []*entities.AuditEntry
	for _, rows := range f.bySubject {
		for _, r := range rows {
			if !r.CreatedAt.Before(start) && r.CreatedAt.Before(end) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}
func (f *fakeAuditRepo) GetAnchor(ctx context.Context, subjectID string) (*entities.ChainAnchor, error) {
	return nil, nil
}
func (f *fakeAuditRepo) UpsertAnchor(ctx context.Context, anchor *entities.ChainAnchor) error { return nil }
func (f *fakeAuditRepo) ListEscalations(ctx context.Context) ([]*entities.AuditEntry, error) {
	var out []*entities.AuditEntry
	for _, rows := range f.bySubject {
		for _, r := range rows {
			if r.EscalatedToHuman && r.HumanApproverID == nil {
				out = append(out, r)
			}
		}
	}
	return out, nil
}
func (f *fakeAuditRepo) GetPendingEscalation(ctx context.Context, subjectID string) (*entities.AuditEntry, error) {
	for _, r := range f.bySubject[subjectID] {
		if r.EscalatedToHuman && r.HumanApproverID == nil {
			return r, nil
		}
	}
	return nil, nil
}
func (f *fakeAuditRepo) UpdateDecision(ctx context.Context, entry *entities.AuditEntry) error {
	for i, r := range f.bySubject[entry.SubjectID] {
		if r.ID == entry.ID {
			f.bySubject[entry.SubjectID][i] = entry
		}
	}
	return nil
}

type fakeReplayer struct {
	calls []orchestrator.Input
	err   error
}

func (f *fakeReplayer) ProcessAllowed(ctx context.Context, in orchestrator.Input) (*orchestrator.Result, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Result{}, nil
}

func TestEnqueue_AppendsEscalatedEntryWithReplayParams(t *testing.T) {
	repo := newFakeAuditRepo()
	svc := NewService(audit.NewService(repo), &fakeReplayer{})

	subjectID, err := svc.Enqueue(context.Background(), "S1", "policy_escalate", "eu-west1", map[string]interface{}{"scan_id": "S1"})

	require.NoError(t, err)
	assert.Equal(t, "S1", subjectID)
	entries, _ := svc.List(context.Background())
	require.Len(t, entries, 1)
	assert.True(t, entries[0].EscalatedToHuman)
	assert.Equal(t, "policy_escalate/escalate", entries[0].DecisionSummary)
}

func TestList_OnlyReturnsPendingApproverlessEntries(t *testing.T) {
	repo := newFakeAuditRepo()
	svc := NewService(audit.NewService(repo), &fakeReplayer{})

	_, err := svc.Enqueue(context.Background(), "S1", "policy_escalate", "eu-west1", nil)
	require.NoError(t, err)

	entries, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDecide_ApprovedReplaysOrchestratorWithOriginalParams(t *testing.T) {
	repo := newFakeAuditRepo()
	replayer := &fakeReplayer{}
	svc := NewService(audit.NewService(repo), replayer)

	viewer, assetID, owner := uuid.New(), uuid.New(), uuid.New()
	replayParams := map[string]interface{}{
		"scan_id": "S1", "viewer": viewer.String(), "asset_id": assetID.String(),
		"owner_id": owner.String(), "resolved_scope": "private", "policy_version": "policy_v1_eu-west1",
		"region_code": "eu-west1", "action_type": "request_passport_view",
	}
	_, err := svc.Enqueue(context.Background(), "S1", "policy_escalate", "eu-west1", replayParams)
	require.NoError(t, err)

	reviewer := uuid.New()
	entry, err := svc.Decide(context.Background(), "S1", true, reviewer, "approved")

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.EscalatedToHuman)
	require.Len(t, replayer.calls, 1)
	assert.Equal(t, "S1", replayer.calls[0].ScanID)
	assert.Equal(t, viewer, replayer.calls[0].Viewer)
	assert.Equal(t, entities.Visibility("private"), replayer.calls[0].ResolvedScope)
}

func TestDecide_DeniedDoesNotReplay(t *testing.T) {
	repo := newFakeAuditRepo()
	replayer := &fakeReplayer{}
	svc := NewService(audit.NewService(repo), replayer)

	_, err := svc.Enqueue(context.Background(), "S1", "policy_escalate", "eu-west1", map[string]interface{}{"scan_id": "S1"})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), "S1", false, uuid.New(), "denied")

	require.NoError(t, err)
	assert.Empty(t, replayer.calls)
}

func TestDecide_UnknownSubject_ReturnsNilWithoutError(t *testing.T) {
	repo := newFakeAuditRepo()
	svc := NewService(audit.NewService(repo), &fakeReplayer{})

	entry, err := svc.Decide(context.Background(), "unknown", true, uuid.New(), "n/a")

	require.NoError(t, err)
	assert.Nil(t, entry)
}
