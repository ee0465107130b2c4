// Package lifecycle implements the Lifecycle State Machine (§4.10): the
// fixed PRODUCED/ACTIVE/REPAIR/DISSOLVE/REPRINT transition table, its
// authorization gates, and the LifecycleEvent audit trail.
package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	"github.com/integrity-spine/spine/internal/domain/services/verifiers"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

// Service is the Lifecycle State Machine.
type Service struct {
	assets     repositories.AssetRepository
	events     repositories.LifecycleRepository
	burnProofs *verifiers.Service
}

func NewService(assets repositories.AssetRepository, events repositories.LifecycleRepository, burnProofs *verifiers.Service) *Service {
	return &Service{assets: assets, events: events, burnProofs: burnProofs}
}

// TransitionInput mirrors the lifecycle/transition external payload.
type TransitionInput struct {
	AssetID             uuid.UUID
	ToState             entities.LifecycleState
	TriggeredBy         uuid.UUID
	TriggerType         entities.TriggerType
	DissolveAuthKey     *string
	BurnProofHash       *string
	ParentMaterialBatch *string
}

// AuthorizeDissolve mints a one-time 64-hex dissolve key for an owner,
// storing only its bcrypt hash. The raw key is never persisted.
func (s *Service) AuthorizeDissolve(ctx context.Context, asset *entities.Asset, ownerID uuid.UUID) (string, error) {
	if asset.CurrentOwnerID != ownerID {
		return "", spineerrors.NewPermissionDenied("only the current owner may authorize dissolve")
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", spineerrors.NewInternal("failed to generate dissolve auth key")
	}
	key := hex.EncodeToString(raw)
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", spineerrors.NewInternal("failed to hash dissolve auth key")
	}
	if err := s.assets.SetDissolveAuthKeyHash(ctx, asset.ID, string(hashed)); err != nil {
		return "", err
	}
	return key, nil
}

// Transition implements transition(asset, to_state, triggered_by, ...)
// per §4.10: validates against the fixed table, runs the gate for the
// target state, then appends a LifecycleEvent with the static ESG delta.
func (s *Service) Transition(ctx context.Context, asset *entities.Asset, in TransitionInput) (*entities.TransitionResult, error) {
	from := asset.LifecycleState
	if !entities.IsValidTransition(from, in.ToState) {
		return &entities.TransitionResult{Success: false, Error: "invalid_transition"}, nil
	}

	dissolveVerified := false
	var burnProofHash *string
	var parentBatch *string
	newReprintGen := asset.ReprintGeneration

	switch in.ToState {
	case entities.LifecycleDISSOLVE:
		if in.DissolveAuthKey == nil {
			return nil, spineerrors.NewPrecondition("dissolve_auth_required", "dissolve_auth_key is required")
		}
		if asset.DissolveAuthKeyHash == "" {
			return nil, spineerrors.NewPrecondition("dissolve_auth_required", "no dissolve authorization on record")
		}
		if bcrypt.CompareHashAndPassword([]byte(asset.DissolveAuthKeyHash), []byte(*in.DissolveAuthKey)) != nil {
			return nil, spineerrors.NewPrecondition("dissolve_auth_required", "dissolve auth key does not match")
		}
		dissolveVerified = true

	case entities.LifecycleREPRINT:
		if in.BurnProofHash == nil || in.ParentMaterialBatch == nil {
			return nil, spineerrors.NewPrecondition("burn_proof_required", "burn_proof_hash and parent_material_batch are required")
		}
		result, err := s.burnProofs.VerifyBurnProof(ctx, *in.BurnProofHash, asset.ID)
		if err != nil {
			return nil, err
		}
		if result.Kind != entities.VerifierValid {
			return nil, spineerrors.NewPrecondition("burn_proof_invalid", "burn proof did not verify")
		}
		burnProofHash = in.BurnProofHash
		parentBatch = in.ParentMaterialBatch

	case entities.LifecyclePRODUCED:
		if from == entities.LifecycleREPRINT {
			newReprintGen = asset.ReprintGeneration + 1
		}
	}

	if err := s.assets.UpdateLifecycleState(ctx, asset.ID, in.ToState, newReprintGen); err != nil {
		return nil, err
	}

	delta := entities.ESGDeltaTable[string(from)+"->"+string(in.ToState)]
	fromCopy := from
	event := &entities.LifecycleEvent{
		ID:                   uuid.New(),
		AssetID:              asset.ID,
		FromState:            &fromCopy,
		ToState:              in.ToState,
		TriggeredBy:          in.TriggeredBy,
		TriggerType:          in.TriggerType,
		DissolveAuthVerified: dissolveVerified,
		BurnProofHash:        burnProofHash,
		ParentMaterialBatch:  parentBatch,
		ESGDelta:             delta.Delta,
		CarbonSavedKg:        delta.CarbonSavedKg,
		WaterSavedLiters:     delta.WaterSavedLiters,
	}
	if err := s.events.Append(ctx, event); err != nil {
		return nil, err
	}

	return &entities.TransitionResult{
		Success:          true,
		PreviousState:    from,
		NewState:         in.ToState,
		ESGDelta:         delta.Delta,
		CarbonSavedKg:    delta.CarbonSavedKg,
		WaterSavedLiters: delta.WaterSavedLiters,
	}, nil
}
