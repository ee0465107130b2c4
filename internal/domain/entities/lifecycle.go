package entities

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType identifies who/what initiated a lifecycle transition.
type TriggerType string

const (
	TriggerUser   TriggerType = "user"
	TriggerAgent  TriggerType = "agent"
	TriggerSystem TriggerType = "system"
)

// ESGDelta is the static per-transition ESG impact looked up by (from, to).
type ESGDelta struct {
	Delta            float64
	CarbonSavedKg    float64
	WaterSavedLiters float64
}

// ESGDeltaTable is the static table keyed by "from->to" used to stamp
// LifecycleEvent rows on every successful transition.
var ESGDeltaTable = map[string]ESGDelta{
	"PRODUCED->ACTIVE": {Delta: 0.0, CarbonSavedKg: 0.0, WaterSavedLiters: 0.0},
	"ACTIVE->REPAIR":   {Delta: 0.1, CarbonSavedKg: 1.5, WaterSavedLiters: 20.0},
	"REPAIR->ACTIVE":   {Delta: 0.1, CarbonSavedKg: 1.0, WaterSavedLiters: 10.0},
	"ACTIVE->DISSOLVE": {Delta: 0.0, CarbonSavedKg: 0.0, WaterSavedLiters: 0.0},
	"REPAIR->DISSOLVE": {Delta: 0.0, CarbonSavedKg: 0.0, WaterSavedLiters: 0.0},
	"DISSOLVE->REPRINT": {Delta: 0.3, CarbonSavedKg: 8.0, WaterSavedLiters: 200.0},
	"REPRINT->PRODUCED": {Delta: 0.0, CarbonSavedKg: 0.0, WaterSavedLiters: 0.0},
}

// LifecycleEvent is an immutable record of one successful state transition.
type LifecycleEvent struct {
	ID                   uuid.UUID       `json:"event_id" db:"id"`
	AssetID              uuid.UUID       `json:"asset_id" db:"asset_id"`
	FromState            *LifecycleState `json:"from_state,omitempty" db:"from_state"`
	ToState              LifecycleState  `json:"to_state" db:"to_state"`
	TriggeredBy          uuid.UUID       `json:"triggered_by" db:"triggered_by"`
	TriggerType          TriggerType     `json:"trigger_type" db:"trigger_type"`
	DissolveAuthVerified bool            `json:"dissolve_auth_verified" db:"dissolve_auth_verified"`
	BurnProofHash        *string         `json:"burn_proof_hash,omitempty" db:"burn_proof_hash"`
	ParentMaterialBatch  *string         `json:"parent_material_batch,omitempty" db:"parent_material_batch"`
	ESGDelta             float64         `json:"esg_delta" db:"esg_delta"`
	CarbonSavedKg        float64         `json:"carbon_saved_kg" db:"carbon_saved_kg"`
	WaterSavedLiters     float64         `json:"water_saved_liters" db:"water_saved_liters"`
	OccurredAt           time.Time       `json:"occurred_at" db:"occurred_at"`
}

// TransitionResult is returned by the Lifecycle State Machine.
type TransitionResult struct {
	Success          bool           `json:"success"`
	Error            string         `json:"error,omitempty"`
	PreviousState    LifecycleState `json:"previous_state,omitempty"`
	NewState         LifecycleState `json:"new_state,omitempty"`
	ESGDelta         float64        `json:"esg_delta,omitempty"`
	CarbonSavedKg    float64        `json:"carbon_saved_kg,omitempty"`
	WaterSavedLiters float64        `json:"water_saved_liters,omitempty"`
	AuditHash        string         `json:"audit_hash,omitempty"`
}

// VerifierResultKind discriminates the tagged VerifierResult variant from
// §9: Valid, Invalid, or Unavailable. No caller may default-accept
// Unavailable in production mode.
type VerifierResultKind string

const (
	VerifierValid       VerifierResultKind = "valid"
	VerifierInvalid     VerifierResultKind = "invalid"
	VerifierUnavailable VerifierResultKind = "unavailable"
)

// VerifierResult is the tagged result of a burn-proof or ESG verification.
// Exactly one of Details/Reason is populated depending on Kind.
type VerifierResult struct {
	Kind    VerifierResultKind    `json:"kind"`
	Details map[string]interface{} `json:"details,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Stub    bool                   `json:"stub,omitempty"`
}

// BurnProofCacheEntry is a ledger-verified burn proof cached for 24h.
type BurnProofCacheEntry struct {
	ProofHash   string    `json:"proof_hash" db:"proof_hash"`
	ParentAsset uuid.UUID `json:"parent_asset" db:"parent_asset"`
	Valid       bool      `json:"valid" db:"valid"`
	VerifiedAt  time.Time `json:"verified_at" db:"verified_at"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
}

// MaterialESGCacheEntry is a ledger-verified ESG score cached for 24h.
type MaterialESGCacheEntry struct {
	MaterialBatch string    `json:"material_batch" db:"material_batch"`
	Score         float64   `json:"score" db:"score"`
	VerifiedAt    time.Time `json:"verified_at" db:"verified_at"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
}

// ESGThreshold is the per-transfer-type minimum ESG score required,
// combined with a per-agent user-configured minimum by taking the max.
var ESGThreshold = map[TransferType]float64{
	TransferTypeGift:  0.5, // rental/loan-equivalent gift threshold
	TransferTypeTrade: 0.6, // resale
}

const (
	ESGThresholdDissolve = 0.4
	ESGThresholdReprint  = 0.7
)
