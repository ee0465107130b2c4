package entities

import (
	"time"

	"github.com/google/uuid"
)

// FacetName enumerates the seven named projections of a cube's data (Open
// Question resolved in favor of seven facets including molecular_data,
// per SPEC_FULL.md design notes).
type FacetName string

const (
	FacetOwnership     FacetName = "ownership"
	FacetAuthenticity  FacetName = "authenticity"
	FacetCareHistory   FacetName = "care_history"
	FacetMaterials     FacetName = "materials"
	FacetSustainability FacetName = "sustainability"
	FacetStyling       FacetName = "styling"
	FacetMolecularData FacetName = "molecular_data"
)

// AllFacets is the fixed, ordered facet set every cube exposes.
var AllFacets = []FacetName{
	FacetOwnership,
	FacetAuthenticity,
	FacetCareHistory,
	FacetMaterials,
	FacetSustainability,
	FacetStyling,
	FacetMolecularData,
}

// AgenticState is the processing state of a cube or one of its faces in
// the real-time state cache.
type AgenticState string

const (
	AgenticIdle       AgenticState = "idle"
	AgenticProcessing AgenticState = "processing"
	AgenticModified   AgenticState = "modified"
	AgenticSyncing    AgenticState = "syncing"
	AgenticError      AgenticState = "error"
)

// FaceStatus is the status of a facet as returned by the Cube Facet
// Service, not to be confused with AgenticState (internal cache state).
type FaceStatus string

const (
	FaceStatusVisible            FaceStatus = "visible"
	FaceStatusEscalatedPending   FaceStatus = "escalated_pending_human"
)

// FaceDocument is one facet's entry inside a cube's wardrobe document.
type FaceDocument struct {
	Visibility    Visibility             `json:"visibility"`
	Data          map[string]interface{} `json:"data,omitempty"`
	PendingSync   bool                   `json:"pending_sync"`
	AgenticState  AgenticState           `json:"agentic_state"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// BiometricSync captures the AR client's current face focus for the
// cube, used to drive render priority hints.
type BiometricSync struct {
	ActiveFacet    FacetName `json:"active_facet,omitempty"`
	ARPriority     int       `json:"ar_priority"`
	RenderHints    []string  `json:"render_hints,omitempty"`
	GazeDurationMS int64     `json:"gaze_duration_ms"`
	LastGazeAt     *time.Time `json:"last_gaze_at,omitempty"`
}

// CubeDocument is the wardrobe/cube document stored at
// wardrobes/{owner_id}/cubes/{cube_id} in the state cache.
type CubeDocument struct {
	CubeID        uuid.UUID               `json:"cube_id"`
	OwnerID       uuid.UUID               `json:"owner_id"`
	AgenticState  AgenticState            `json:"agentic_state"`
	Faces         map[FacetName]*FaceDocument `json:"faces"`
	BiometricSync BiometricSync           `json:"biometric_sync"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// CubeChange is delivered to state-cache change subscribers on
// document add/modify/remove.
type CubeChange struct {
	CubeID   uuid.UUID     `json:"cube_id"`
	Kind     string        `json:"kind"` // added|modified|removed
	Previous *CubeDocument `json:"previous,omitempty"`
	Current  *CubeDocument `json:"current,omitempty"`
}

// FaceView is the externally visible representation of one facet, as
// returned by GET /cubes/{cube_id} and GET /cubes/{cube_id}/faces/{facet}.
type FaceView struct {
	Status       FaceStatus             `json:"status"`
	Visibility   Visibility             `json:"visibility,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	EscalationID string                 `json:"escalation_id,omitempty"`
	Message      string                 `json:"message,omitempty"`
}

// CubeView is the composed GET /cubes/{cube_id} response: denied facets
// are simply omitted from Faces.
type CubeView struct {
	CubeID  uuid.UUID             `json:"cube_id"`
	OwnerID uuid.UUID             `json:"owner_id"`
	Faces   map[FacetName]*FaceView `json:"faces"`
}
