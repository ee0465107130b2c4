package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/integrity-spine/spine/internal/domain/entities"
)

// UserRepository persists User rows.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	Create(ctx context.Context, u *entities.User) error
	Update(ctx context.Context, u *entities.User) error
}

// FriendshipRepository persists canonical-ordered FriendsWith edges.
type FriendshipRepository interface {
	Get(ctx context.Context, a, b uuid.UUID) (*entities.Friendship, error)
	Upsert(ctx context.Context, f *entities.Friendship) error
}

// AssetRepository persists Asset rows and the small Created edge.
type AssetRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Asset, error)
	// GetByTag resolves a scanned physical tag (NFC/QR payload) to its
	// asset, via the tag's authenticity_hash.
	GetByTag(ctx context.Context, authenticityHash string) (*entities.Asset, error)
	Create(ctx context.Context, a *entities.Asset) error
	UpdateLifecycleState(ctx context.Context, id uuid.UUID, state entities.LifecycleState, reprintGeneration int) error
	SetDissolveAuthKeyHash(ctx context.Context, id uuid.UUID, hash string) error
	SetCurrentOwner(ctx context.Context, id, ownerID uuid.UUID) error
	CreateCreatedEdge(ctx context.Context, c *entities.Created) error
}

// OwnsRepository tracks current and historical ownership rows.
type OwnsRepository interface {
	GetCurrent(ctx context.Context, assetID uuid.UUID) (*entities.Owns, error)
	CloseCurrent(ctx context.Context, assetID uuid.UUID, endedAt time.Time) error
	Create(ctx context.Context, o *entities.Owns) error
}

// ProvenanceRepository persists the append-only ProvenanceChain.
type ProvenanceRepository interface {
	MaxSequenceNum(ctx context.Context, assetID uuid.UUID) (int, error)
	Append(ctx context.Context, entry *entities.ProvenanceEntry) error
	ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*entities.ProvenanceEntry, error)
}

// ConsentRepository persists layered consent policies.
type ConsentRepository interface {
	// Resolve returns the most-specific live policy matching (viewer, owner,
	// asset, facet) across grantee_specific, facet_specific, asset_specific,
	// and global scopes, in that precedence order, or nil if none match.
	Resolve(ctx context.Context, viewer, owner uuid.UUID, assetID *uuid.UUID, facet *string) (*entities.ConsentPolicy, error)
	Create(ctx context.Context, p *entities.ConsentPolicy) error
	// RevokeAllForUser performs the O(1)-round-trip global revocation.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string, at time.Time) error
}

// MutationLogRepository backs the idempotency layer.
type MutationLogRepository interface {
	Get(ctx context.Context, mutationID string) (*entities.MutationLog, error)
	Insert(ctx context.Context, row *entities.MutationLog) error
	DeleteOlderThan(ctx context.Context, horizon time.Time, batchSize int) (int64, error)
}

// AuditRepository persists the hash-chained audit log and dual-ledger
// anchors.
type AuditRepository interface {
	LastEntry(ctx context.Context, subjectID string) (*entities.AuditEntry, error)
	Append(ctx context.Context, entry *entities.AuditEntry) error
	ListBySubject(ctx context.Context, subjectID string) ([]*entities.AuditEntry, error)
	// ListByPeriod returns every entry created in [start, end), across all
	// subjects, ordered by subject then sequence, for compliance reporting
	// and period-scoped WORM verification.
	ListByPeriod(ctx context.Context, start, end time.Time) ([]*entities.AuditEntry, error)
	GetAnchor(ctx context.Context, subjectID string) (*entities.ChainAnchor, error)
	UpsertAnchor(ctx context.Context, anchor *entities.ChainAnchor) error
	ListEscalations(ctx context.Context) ([]*entities.AuditEntry, error)
	GetPendingEscalation(ctx context.Context, subjectID string) (*entities.AuditEntry, error)
	UpdateDecision(ctx context.Context, entry *entities.AuditEntry) error
}

// LifecycleRepository persists LifecycleEvent rows.
type LifecycleRepository interface {
	Append(ctx context.Context, e *entities.LifecycleEvent) error
	ListByAsset(ctx context.Context, assetID uuid.UUID) ([]*entities.LifecycleEvent, error)
}

// VerifierCacheRepository backs the 24h ledger-verification caches for
// burn proofs and material ESG scores.
type VerifierCacheRepository interface {
	GetBurnProof(ctx context.Context, proofHash string) (*entities.BurnProofCacheEntry, error)
	PutBurnProof(ctx context.Context, entry *entities.BurnProofCacheEntry) error
	GetMaterialESG(ctx context.Context, materialBatch string) (*entities.MaterialESGCacheEntry, error)
	PutMaterialESG(ctx context.Context, entry *entities.MaterialESGCacheEntry) error
	// DeleteExpired prunes rows past their expiry horizon from both
	// caches, called by the cache janitor cron job.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CubeCacheRepository is the State Cache's document-store contract over
// wardrobes/{owner}/cubes/{cube}.
type CubeCacheRepository interface {
	Get(ctx context.Context, ownerID, cubeID uuid.UUID) (*entities.CubeDocument, error)
	Put(ctx context.Context, doc *entities.CubeDocument) error
	// MergeFace atomically merges a single face's fields (server-timestamp
	// sentinel semantics: UpdatedAt is always set by the store, not the
	// caller).
	MergeFace(ctx context.Context, ownerID, cubeID uuid.UUID, facet entities.FacetName, face *entities.FaceDocument) error
	Subscribe(ctx context.Context, ownerID, cubeID uuid.UUID) (<-chan entities.CubeChange, func(), error)
}
