package entities

import (
	"time"

	"github.com/google/uuid"
)

// ConsentScope is the granularity a ConsentPolicy applies at, from most to
// least specific in resolution order: grantee_specific, facet_specific,
// asset_specific, global.
type ConsentScope string

const (
	ScopeGlobal          ConsentScope = "global"
	ScopeAssetSpecific   ConsentScope = "asset_specific"
	ScopeFacetSpecific   ConsentScope = "facet_specific"
	ScopeGranteeSpecific ConsentScope = "grantee_specific"
	// ScopeOwner is never persisted; it is returned only when the viewer
	// is the asset's owner, bypassing policy resolution entirely.
	ScopeOwner ConsentScope = "owner"
	// ScopeDefault is never persisted; it marks the friendship-based
	// fallback decision when no policy row matched at all.
	ScopeDefault ConsentScope = "default"
)

// Visibility is the resolved access level for a consent decision.
type Visibility string

const (
	VisibilityPublic      Visibility = "public"
	VisibilityFriendsOnly Visibility = "friends_only"
	VisibilityPrivate     Visibility = "private"
	VisibilityCustom      Visibility = "custom"
)

// ConsentPolicy is a single grant or restriction an owner has placed on
// viewing their assets. Revocation is monotonic: once IsRevoked is true it
// never reverts to false.
type ConsentPolicy struct {
	ID             uuid.UUID    `json:"consent_id" db:"id"`
	UserID         uuid.UUID    `json:"user_id" db:"user_id"`
	Scope          ConsentScope `json:"scope" db:"scope"`
	Visibility     Visibility   `json:"visibility" db:"visibility"`
	AssetID        *uuid.UUID   `json:"asset_id,omitempty" db:"asset_id"`
	FacetType      *string      `json:"facet_type,omitempty" db:"facet_type"`
	GranteeUserID  *uuid.UUID   `json:"grantee_user_id,omitempty" db:"grantee_user_id"`
	PolicyVersion  int          `json:"policy_version" db:"policy_version"`
	IsRevoked      bool         `json:"is_revoked" db:"is_revoked"`
	RevokedAt      *time.Time   `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokeReason   *string      `json:"revoke_reason,omitempty" db:"revoke_reason"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// IsLive reports whether the policy is currently enforceable: not revoked
// and, if it has an expiry, not yet expired as of at.
func (c *ConsentPolicy) IsLive(at time.Time) bool {
	if c.IsRevoked {
		return false
	}
	if c.ExpiresAt != nil && at.After(*c.ExpiresAt) {
		return false
	}
	return true
}

// ConsentDecision is the result of Consent Graph.check(...).
type ConsentDecision struct {
	Allowed       bool         `json:"allowed"`
	Visibility    Visibility   `json:"visibility"`
	Scope         ConsentScope `json:"scope"`
	PolicyVersion int          `json:"policy_version"`
	Reason        string       `json:"reason"`
}

// FriendshipCheck is the result of check_friendship(a, b).
type FriendshipCheck struct {
	AreFriends bool             `json:"are_friends"`
	Status     FriendshipStatus `json:"status"`
	Since      *time.Time       `json:"since,omitempty"`
}
