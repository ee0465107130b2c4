package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LifecycleState is one of the five states a digital product passport can
// occupy. Valid transitions are enforced by the lifecycle state machine,
// not by this type.
type LifecycleState string

const (
	LifecyclePRODUCED LifecycleState = "PRODUCED"
	LifecycleACTIVE   LifecycleState = "ACTIVE"
	LifecycleREPAIR   LifecycleState = "REPAIR"
	LifecycleDISSOLVE LifecycleState = "DISSOLVE"
	LifecycleREPRINT  LifecycleState = "REPRINT"
)

// ValidTransitions is the fixed transition table from §4.10. A transition
// not present here is always invalid, regardless of gate checks.
var ValidTransitions = map[LifecycleState][]LifecycleState{
	LifecyclePRODUCED: {LifecycleACTIVE},
	LifecycleACTIVE:   {LifecycleREPAIR, LifecycleDISSOLVE},
	LifecycleREPAIR:   {LifecycleACTIVE, LifecycleDISSOLVE},
	LifecycleDISSOLVE: {LifecycleREPRINT},
	LifecycleREPRINT:  {LifecyclePRODUCED},
}

// IsValidTransition reports whether to is a permitted next state from.
func IsValidTransition(from, to LifecycleState) bool {
	for _, candidate := range ValidTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Asset is the digital product passport ("cube") for a physical or virtual
// item. current_owner_id must always equal the to_user_id of the
// highest-sequence ProvenanceChain row for this asset.
type Asset struct {
	ID                 uuid.UUID      `json:"asset_id" db:"id"`
	AssetType          string         `json:"asset_type" db:"asset_type"`
	DisplayName        string         `json:"display_name" db:"display_name"`
	CreatorUserID      uuid.UUID      `json:"creator_user_id" db:"creator_user_id"`
	CurrentOwnerID     uuid.UUID      `json:"current_owner_id" db:"current_owner_id"`
	AuthenticityHash   string         `json:"authenticity_hash" db:"authenticity_hash"`
	LifecycleState     LifecycleState `json:"lifecycle_state" db:"lifecycle_state"`
	ReprintGeneration  int            `json:"reprint_generation" db:"reprint_generation"`
	ParentAssetID      *uuid.UUID     `json:"parent_asset_id,omitempty" db:"parent_asset_id"`
	DissolveAuthKeyHash string        `json:"-" db:"dissolve_auth_key_hash"`
	ARSyncLatencyMS     *int          `json:"ar_sync_latency_ms,omitempty" db:"ar_sync_latency_ms"`
	LastBiometricSync   *time.Time    `json:"last_biometric_sync,omitempty" db:"last_biometric_sync"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
}

// Created is the exclusive creator->asset edge; a creator owns exactly
// one Created row per asset it minted.
type Created struct {
	CreatorID uuid.UUID `json:"creator_id" db:"creator_id"`
	AssetID   uuid.UUID `json:"asset_id" db:"asset_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TransferMethod describes how ownership moved hands for an Owns row.
type TransferMethod string

const (
	TransferMethodMint        TransferMethod = "mint"
	TransferMethodPurchase    TransferMethod = "purchase"
	TransferMethodGift        TransferMethod = "gift"
	TransferMethodTrade       TransferMethod = "trade"
	TransferMethodInheritance TransferMethod = "inheritance"
	TransferMethodReturn      TransferMethod = "return"
)

// Owns is an ownership row; at most one row per asset has IsCurrent=true.
type Owns struct {
	OwnerID        uuid.UUID      `json:"owner_id" db:"owner_id"`
	AssetID        uuid.UUID      `json:"asset_id" db:"asset_id"`
	AcquiredAt     time.Time      `json:"acquired_at" db:"acquired_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty" db:"ended_at"`
	TransferMethod TransferMethod `json:"transfer_method" db:"transfer_method"`
	IsCurrent      bool           `json:"is_current" db:"is_current"`
}

// TransferType is the kind of ownership transition recorded in the
// provenance chain. The caller must always supply this; the engine never
// infers it from context.
type TransferType string

const (
	TransferTypeMint        TransferType = "mint"
	TransferTypePurchase    TransferType = "purchase"
	TransferTypeGift        TransferType = "gift"
	TransferTypeTrade       TransferType = "trade"
	TransferTypeInheritance TransferType = "inheritance"
	TransferTypeReturn      TransferType = "return"
)

// ProvenanceEntry is one gap-free, 1-indexed row in an asset's ownership
// chain. entry[i].from_user_id must equal entry[i-1].to_user_id for i>1;
// entry[1] is always a mint with FromUserID nil.
type ProvenanceEntry struct {
	AssetID           uuid.UUID    `json:"asset_id" db:"asset_id"`
	SequenceNum       int          `json:"sequence_num" db:"sequence_num"`
	FromUserID        *uuid.UUID   `json:"from_user_id,omitempty" db:"from_user_id"`
	ToUserID          uuid.UUID    `json:"to_user_id" db:"to_user_id"`
	TransferType      TransferType `json:"transfer_type" db:"transfer_type"`
	Price             decimal.NullDecimal `json:"price,omitempty" db:"price"`
	Currency          string       `json:"currency" db:"currency"`
	BlockchainTxHash  *string      `json:"blockchain_tx_hash,omitempty" db:"blockchain_tx_hash"`
	MidnightProofHash *string      `json:"midnight_proof_hash,omitempty" db:"midnight_proof_hash"`
	TransferAt        time.Time    `json:"transfer_at" db:"transfer_at"`
}

// ChainVerification is the result of verify_chain(asset_id).
type ChainVerification struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}
