// Package escalation implements the Escalation Queue & Governance (§4.9):
// lists pending human-review items and replays approved decisions back
// into the orchestrator with their original parameters.
package escalation

import (
	"context"

	"github.com/google/uuid"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/services/audit"
	"github.com/integrity-spine/spine/internal/domain/services/orchestrator"
)

// Replayer is the orchestrator surface re-entered on governance approval.
// The replay input is reconstructed from decision_detail["replay_params"],
// set when the escalation was first appended.
type Replayer interface {
	ProcessAllowed(ctx context.Context, in orchestrator.Input) (*orchestrator.Result, error)
}

// Notifier delivers the human-reviewer alert for a newly queued
// escalation. Enqueue treats a nil Notifier, or a notification error, as
// non-fatal: the escalation is queued either way.
type Notifier interface {
	NotifyEscalation(ctx context.Context, subjectID, reason, regionCode string) error
}

// Service is the Escalation Queue & Governance component.
type Service struct {
	audit    *audit.Service
	replayer Replayer
	notifier Notifier
}

func NewService(auditSvc *audit.Service, replayer Replayer) *Service {
	return &Service{audit: auditSvc, replayer: replayer}
}

// SetNotifier attaches the human-approver notification channel. Wired
// separately from the constructor so existing callers (and tests) that
// have no notification channel configured are unaffected.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// List implements GET /escalations.
func (s *Service) List(ctx context.Context) ([]*entities.AuditEntry, error) {
	return s.audit.ListEscalations(ctx)
}

// Enqueue implements cube.EscalationEnqueuer: it appends the escalated
// audit entry itself, folding replayParams into decision_detail under
// "replay_params" so Decide can reconstruct the original request on
// approval. The subject_id doubles as the escalation's own identifier,
// since one subject has at most one pending escalation at a time.
func (s *Service) Enqueue(ctx context.Context, subjectID, reason, regionCode string, replayParams map[string]interface{}) (string, error) {
	detail := map[string]interface{}{"reason": reason, "region_code": regionCode, "replay_params": replayParams}
	if _, err := s.audit.Append(ctx, subjectID, reason+"/escalate", detail, true, true, nil); err != nil {
		return "", err
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyEscalation(ctx, subjectID, reason, regionCode)
	}
	return subjectID, nil
}

// Decide implements /escalations/{subject}/decision. On approved=true, it
// replays the original request into the orchestrator once the governance
// decision has been durably recorded; on approved=false, no further
// action is taken.
func (s *Service) Decide(ctx context.Context, subjectID string, approved bool, reviewer uuid.UUID, note string) (*entities.AuditEntry, error) {
	entry, err := s.audit.Decide(ctx, subjectID, approved, reviewer, note)
	if err != nil {
		return nil, err
	}
	if entry == nil || !approved {
		return entry, nil
	}

	replayParams, _ := entry.DecisionDetail["replay_params"].(map[string]interface{})
	if replayParams != nil && s.replayer != nil {
		in, ok := parseReplayInput(replayParams)
		if ok {
			if _, err := s.replayer.ProcessAllowed(ctx, in); err != nil {
				return entry, err
			}
		}
	}
	return entry, nil
}

func parseReplayInput(params map[string]interface{}) (orchestrator.Input, bool) {
	var in orchestrator.Input
	scanID, ok := params["scan_id"].(string)
	if !ok {
		return in, false
	}
	in.ScanID = scanID
	if v, ok := params["viewer"].(string); ok {
		in.Viewer, _ = uuid.Parse(v)
	}
	if v, ok := params["asset_id"].(string); ok {
		in.AssetID, _ = uuid.Parse(v)
	}
	if v, ok := params["owner_id"].(string); ok {
		in.OwnerID, _ = uuid.Parse(v)
	}
	if v, ok := params["resolved_scope"].(string); ok {
		in.ResolvedScope = entities.Visibility(v)
	}
	if v, ok := params["policy_version"].(string); ok {
		in.PolicyVersion = v
	}
	if v, ok := params["region_code"].(string); ok {
		in.RegionCode = v
	}
	if v, ok := params["action_type"].(string); ok {
		in.ActionType = entities.ActionType(v)
	}
	return in, true
}
