package entities

import (
	"time"

	"github.com/google/uuid"
)

// User is a participant of the Integrity Spine: either an asset owner, a
// viewer/scanner, or both across different assets.
type User struct {
	ID             uuid.UUID `json:"user_id" db:"id"`
	Handle         string    `json:"handle" db:"handle"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	RegionCode     string    `json:"region_code" db:"region_code"`
	TrustScore     float64   `json:"trust_score" db:"trust_score"`
	ConsentVersion int       `json:"consent_version" db:"consent_version"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// FriendshipStatus is the state of a FriendsWith edge.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship is a bidirectional edge stored once under canonical
// (user_id_a < user_id_b) ordering.
type Friendship struct {
	UserIDA     uuid.UUID        `json:"user_id_a" db:"user_id_a"`
	UserIDB     uuid.UUID        `json:"user_id_b" db:"user_id_b"`
	Status      FriendshipStatus `json:"status" db:"status"`
	InitiatedBy uuid.UUID        `json:"initiated_by" db:"initiated_by"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty" db:"accepted_at"`
}

// CanonicalPair returns (a, b) ordered so that a < b lexicographically,
// the storage invariant for Friendship rows.
func CanonicalPair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if x.String() <= y.String() {
		return x, y
	}
	return y, x
}
