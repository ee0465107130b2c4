// Package cube implements the Cube Facet Service (§4.12): the public
// entrypoint that composes the Policy Engine, Provenance Ledger,
// Integrity Orchestrator, and Escalation Queue into per-facet views and
// the ownership transfer flow.
package cube

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	"github.com/integrity-spine/spine/internal/domain/services/audit"
	"github.com/integrity-spine/spine/internal/domain/services/orchestrator"
	"github.com/integrity-spine/spine/internal/domain/services/policy"
	"github.com/integrity-spine/spine/internal/domain/services/provenance"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

// Service is the Cube Facet Service.
type Service struct {
	assets       repositories.AssetRepository
	owns         repositories.OwnsRepository
	policy       *policy.Engine
	provenance   *provenance.Service
	orchestrator *orchestrator.Service
	audit        *audit.Service
	escalate     EscalationEnqueuer
}

// EscalationEnqueuer stores the original request so a governance approval
// can replay it; it is the escalation.Service's Enqueue in practice, which
// appends through the audit.Service so decision_detail carries
// "replay_params".
type EscalationEnqueuer interface {
	Enqueue(ctx context.Context, subjectID, reason, regionCode string, replayParams map[string]interface{}) (escalationID string, err error)
}

func NewService(
	assets repositories.AssetRepository,
	owns repositories.OwnsRepository,
	policyEngine *policy.Engine,
	provenanceSvc *provenance.Service,
	orchestratorSvc *orchestrator.Service,
	auditSvc *audit.Service,
	escalate EscalationEnqueuer,
) *Service {
	return &Service{
		assets: assets, owns: owns, policy: policyEngine, provenance: provenanceSvc,
		orchestrator: orchestratorSvc, audit: auditSvc, escalate: escalate,
	}
}

// GetCube implements get_cube(cube_id, viewer, request_id): evaluates
// every facet independently and composes the externally visible view.
func (s *Service) GetCube(ctx context.Context, cubeID, viewer uuid.UUID, regionCode string) (*entities.CubeView, error) {
	asset, err := s.assets.GetByID(ctx, cubeID)
	if err != nil {
		return nil, err
	}

	view := &entities.CubeView{CubeID: cubeID, OwnerID: asset.CurrentOwnerID, Faces: map[entities.FacetName]*entities.FaceView{}}
	for _, facet := range entities.AllFacets {
		face := facet
		faceView, err := s.evaluateFace(ctx, asset, viewer, string(facet), regionCode)
		if err != nil {
			return nil, err
		}
		if faceView != nil {
			view.Faces[face] = faceView
		}
	}
	return view, nil
}

// GetFace implements get_face(cube_id, facet, viewer).
func (s *Service) GetFace(ctx context.Context, cubeID, viewer uuid.UUID, facet, regionCode string) (*entities.FaceView, error) {
	asset, err := s.assets.GetByID(ctx, cubeID)
	if err != nil {
		return nil, err
	}
	faceView, err := s.evaluateFace(ctx, asset, viewer, facet, regionCode)
	if err != nil {
		return nil, err
	}
	if faceView == nil {
		return nil, spineerrors.NewPermissionDenied("access_denied")
	}
	return faceView, nil
}

func (s *Service) evaluateFace(ctx context.Context, asset *entities.Asset, viewer uuid.UUID, facet, regionCode string) (*entities.FaceView, error) {
	decision, err := s.policy.Evaluate(ctx, viewer, asset.CurrentOwnerID, &asset.ID, &facet, regionCode, entities.ActionRequestPassportView, nil)
	if err != nil {
		return nil, err
	}

	subject := asset.ID.String()
	switch decision.Decision {
	case entities.DecisionAllow:
		data := assembleFacetData(asset, entities.FacetName(facet))
		if _, err := s.audit.Append(ctx, subject, fmt.Sprintf("view_face/%s/allow", facet), map[string]interface{}{
			"region_code": regionCode, "policy_version": decision.PolicyVersion,
			"resolved_scope": string(decision.ResolvedScope), "shown_facets_count": 1,
		}, false, false, nil); err != nil {
			return nil, err
		}
		return &entities.FaceView{Status: entities.FaceStatusVisible, Visibility: decision.ResolvedScope, Data: data}, nil

	case entities.DecisionEscalate:
		escalationID := subject
		if s.escalate != nil {
			id, err := s.escalate.Enqueue(ctx, subject, "policy_escalate", regionCode, map[string]interface{}{
				"scan_id": subject, "viewer": viewer.String(), "asset_id": asset.ID.String(),
				"owner_id": asset.CurrentOwnerID.String(), "resolved_scope": string(decision.ResolvedScope),
				"policy_version": decision.PolicyVersion, "region_code": regionCode,
				"action_type": string(entities.ActionRequestPassportView),
			})
			if err != nil {
				return nil, err
			}
			escalationID = id
		}
		return &entities.FaceView{Status: entities.FaceStatusEscalatedPending, EscalationID: escalationID, Message: "pending human review"}, nil

	default: // deny
		if _, err := s.audit.Append(ctx, subject, fmt.Sprintf("view_face/%s/deny", facet), map[string]interface{}{
			"region_code": regionCode, "policy_version": decision.PolicyVersion,
			"resolved_scope": string(decision.ResolvedScope), "shown_facets_count": 0,
		}, false, false, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

// assembleFacetData derives each facet's payload from data already owned
// by the asset aggregate; there is no separate facet content store.
func assembleFacetData(asset *entities.Asset, facet entities.FacetName) map[string]interface{} {
	switch facet {
	case entities.FacetOwnership:
		return map[string]interface{}{"current_owner_id": asset.CurrentOwnerID, "creator_user_id": asset.CreatorUserID}
	case entities.FacetAuthenticity:
		return map[string]interface{}{"authenticity_hash": asset.AuthenticityHash, "lifecycle_state": asset.LifecycleState}
	case entities.FacetMaterials:
		return map[string]interface{}{"reprint_generation": asset.ReprintGeneration, "parent_asset_id": asset.ParentAssetID}
	default:
		return map[string]interface{}{}
	}
}

// TransferOwnership implements transfer_ownership(cube_id, {from, to,
// method, price}): on allow, delegates to the Provenance Ledger and the
// Orchestrator; on escalate, enqueues governance and returns
// transfer_pending_approval. The transfer is not deduplicated by the
// Idempotency Layer (see executeTransfer): repeating a request runs the
// transfer again.
func (s *Service) TransferOwnership(ctx context.Context, cubeID, from, to uuid.UUID, method entities.TransferMethod, price *string, currency, regionCode string) (map[string]interface{}, error) {
	asset, err := s.assets.GetByID(ctx, cubeID)
	if err != nil {
		return nil, err
	}

	decision, err := s.policy.Evaluate(ctx, from, asset.CurrentOwnerID, &asset.ID, nil, regionCode, entities.ActionTransferOwnership, nil)
	if err != nil {
		return nil, err
	}

	switch decision.Decision {
	case entities.DecisionAllow:
		return s.executeTransfer(ctx, asset, from, to, method, currency)
	case entities.DecisionEscalate:
		subject := asset.ID.String()
		escalationID := subject
		if s.escalate != nil {
			id, err := s.escalate.Enqueue(ctx, subject, "transfer_escalate", regionCode, map[string]interface{}{
				"scan_id": subject, "viewer": from.String(), "asset_id": asset.ID.String(),
				"owner_id": to.String(), "resolved_scope": string(decision.ResolvedScope),
				"policy_version": decision.PolicyVersion, "region_code": regionCode,
				"action_type": string(entities.ActionTransferOwnership),
			})
			if err != nil {
				return nil, err
			}
			escalationID = id
		}
		return map[string]interface{}{"status": "transfer_pending_approval", "escalation_id": escalationID}, nil
	default:
		return nil, spineerrors.NewPermissionDenied("transfer denied")
	}
}

// executeTransfer delegates straight to the Provenance Ledger.
// RecordTransfer spans four separate repository writes rather than one
// shared transaction, so it cannot be wrapped by the Idempotency Layer's
// single-RWTx Execute; concurrent attempts instead serialize on the
// MAX(sequence_num) read inside RecordTransfer per §5's ordering
// guarantee, and a losing caller sees a conflict it can safely retry.
//
// Once the transfer entry is durable, the Orchestrator anchors it on both
// ledgers under a scan_id scoped to this transfer, so a chain-of-custody
// proof exists for the new owner the same way it does for a canonical
// scan.
func (s *Service) executeTransfer(ctx context.Context, asset *entities.Asset, from, to uuid.UUID, method entities.TransferMethod, currency string) (map[string]interface{}, error) {
	entry, err := s.provenance.RecordTransfer(ctx, asset.ID, from, to, entities.TransferType(method), nil, currency, nil, nil, method)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"status": "transfer_complete", "transfer_id": fmt.Sprintf("%s:%d", asset.ID, entry.SequenceNum),
		"blockchain_tx_hash": entry.BlockchainTxHash, "new_owner": to,
	}

	if s.orchestrator != nil {
		scanID := fmt.Sprintf("%s:transfer:%d", asset.ID, entry.SequenceNum)
		anchor, err := s.orchestrator.ProcessAllowed(ctx, orchestrator.Input{
			ScanID: scanID, Viewer: from, AssetID: asset.ID, OwnerID: to,
			ResolvedScope: entities.VisibilityPrivate, ActionType: entities.ActionTransferOwnership,
		})
		if err != nil {
			return nil, err
		}
		result["crosschain_root_hash"] = anchor.CrosschainRootHash
		result["partial_anchor"] = anchor.PartialAnchor
	}

	return result, nil
}
