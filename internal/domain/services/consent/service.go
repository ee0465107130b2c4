// Package consent implements the Consent Graph (§4.4): friend edges plus
// layered consent policies resolved most-specific-first.
package consent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

// Service is the Consent Graph.
type Service struct {
	consentRepo repositories.ConsentRepository
	friendRepo  repositories.FriendshipRepository
}

func NewService(consentRepo repositories.ConsentRepository, friendRepo repositories.FriendshipRepository) *Service {
	return &Service{consentRepo: consentRepo, friendRepo: friendRepo}
}

// CheckFriendship canonicalizes (a,b) ordering and reports whether the
// pair is an accepted friendship.
func (s *Service) CheckFriendship(ctx context.Context, a, b uuid.UUID) (*entities.FriendshipCheck, error) {
	f, err := s.friendRepo.Get(ctx, a, b)
	if err != nil {
		if typed, ok := spineerrors.As(err); ok && typed.Kind == spineerrors.KindNotFound {
			return &entities.FriendshipCheck{AreFriends: false}, nil
		}
		return nil, err
	}
	return &entities.FriendshipCheck{
		AreFriends: f.Status == entities.FriendshipAccepted,
		Status:     f.Status,
		Since:      f.AcceptedAt,
	}, nil
}

// Check implements check(viewer, owner, asset?, facet?), resolving the
// most-specific live policy and deriving `allowed` from its visibility.
func (s *Service) Check(ctx context.Context, viewer, owner uuid.UUID, assetID *uuid.UUID, facet *string) (*entities.ConsentDecision, error) {
	if viewer == owner {
		return &entities.ConsentDecision{
			Allowed:    true,
			Visibility: entities.VisibilityPrivate,
			Scope:      entities.ScopeOwner,
			Reason:     "owner",
		}, nil
	}

	policy, err := s.consentRepo.Resolve(ctx, viewer, owner, assetID, facet)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return s.defaultDecision(ctx, viewer, owner)
	}

	decision := &entities.ConsentDecision{
		Visibility:    policy.Visibility,
		Scope:         policy.Scope,
		PolicyVersion: policy.PolicyVersion,
	}
	switch policy.Visibility {
	case entities.VisibilityPublic:
		decision.Allowed = true
	case entities.VisibilityPrivate:
		decision.Allowed = false
		decision.Reason = "private"
	case entities.VisibilityFriendsOnly:
		fc, err := s.CheckFriendship(ctx, viewer, owner)
		if err != nil {
			return nil, err
		}
		decision.Allowed = fc.AreFriends
		if !decision.Allowed {
			decision.Reason = "not_friends"
		}
	case entities.VisibilityCustom:
		decision.Allowed = policy.GranteeUserID != nil && *policy.GranteeUserID == viewer
		if !decision.Allowed {
			decision.Reason = "not_grantee"
		}
	}
	return decision, nil
}

// defaultDecision is step 6 of §4.4: no policy matched at any scope, so
// the default is friendship-derived and always allowed.
func (s *Service) defaultDecision(ctx context.Context, viewer, owner uuid.UUID) (*entities.ConsentDecision, error) {
	fc, err := s.CheckFriendship(ctx, viewer, owner)
	if err != nil {
		return nil, err
	}
	if fc.AreFriends {
		return &entities.ConsentDecision{Allowed: true, Visibility: entities.VisibilityFriendsOnly, Scope: entities.ScopeDefault, Reason: "default_friends"}, nil
	}
	return &entities.ConsentDecision{Allowed: true, Visibility: entities.VisibilityPublic, Scope: entities.ScopeDefault, Reason: "default_public"}, nil
}

// RevokeGlobal performs the O(1)-round-trip global revocation for a user.
func (s *Service) RevokeGlobal(ctx context.Context, userID uuid.UUID, reason string) error {
	return s.consentRepo.RevokeAllForUser(ctx, userID, reason, time.Now().UTC())
}

// Grant persists a new consent policy.
func (s *Service) Grant(ctx context.Context, p *entities.ConsentPolicy) error {
	return s.consentRepo.Create(ctx, p)
}
