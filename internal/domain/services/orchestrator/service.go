// Package orchestrator implements the Integrity Orchestrator (§4.7): the
// six-phase pipeline that anchors an allowed policy decision on both
// ledgers and publishes the result to the state cache.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	"github.com/integrity-spine/spine/internal/domain/services/audit"
	"github.com/integrity-spine/spine/internal/domain/services/idempotency"
	"github.com/integrity-spine/spine/internal/domain/services/ledger"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
	"github.com/integrity-spine/spine/pkg/logger"
	"github.com/integrity-spine/spine/pkg/metrics"
)

// FacetSource fetches the owner-scoped facet view used to populate the
// state cache publish in phase 6; it never logs a facet body.
type FacetSource interface {
	FetchScoped(ctx context.Context, assetID uuid.UUID, scope entities.Visibility) (map[entities.FacetName]*entities.FaceDocument, error)
}

// Config controls the per-ledger anchor retry budget.
type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
}

// Input mirrors process_allowed's external parameters.
type Input struct {
	ScanID        string
	Viewer        uuid.UUID
	AssetID       uuid.UUID
	OwnerID       uuid.UUID
	ResolvedScope entities.Visibility
	PolicyVersion string
	RegionCode    string
	ActionType    entities.ActionType
}

// Result is process_allowed's return value.
type Result struct {
	Duplicate          bool   `json:"duplicate"`
	PartialAnchor      bool   `json:"partial_anchor"`
	CardanoTxHash      string `json:"cardano_tx_hash,omitempty"`
	MidnightTxHash     string `json:"midnight_tx_hash,omitempty"`
	CrosschainRootHash string `json:"crosschain_root_hash,omitempty"`
}

// Service is the Integrity Orchestrator.
type Service struct {
	idempotency *idempotency.Service
	auditSvc    *audit.Service
	auditRepo   repositories.AuditRepository
	cubeCache   repositories.CubeCacheRepository
	facets      FacetSource
	cardano     ledger.AnchorClient
	midnight    ledger.AnchorClient
	cfg         Config
	log         *logger.Logger
}

func NewService(
	idempotencySvc *idempotency.Service,
	auditSvc *audit.Service,
	auditRepo repositories.AuditRepository,
	cubeCache repositories.CubeCacheRepository,
	facets FacetSource,
	cardano, midnight ledger.AnchorClient,
	cfg Config,
	log *logger.Logger,
) *Service {
	return &Service{
		idempotency: idempotencySvc, auditSvc: auditSvc, auditRepo: auditRepo,
		cubeCache: cubeCache, facets: facets, cardano: cardano, midnight: midnight, cfg: cfg, log: log,
	}
}

// ProcessAllowed implements process_allowed(scan_id, viewer, asset,
// resolved_scope, policy_version, region, action_type), idempotent by
// mutation_id = H(op="process_allowed", scan_id).
func (s *Service) ProcessAllowed(ctx context.Context, in Input) (*Result, error) {
	// Phase 1: persist the provisional chain anchor row inside the
	// Idempotency Layer's own transaction. Phases 2-6 run outside that
	// transaction (HTTP anchor calls and cache publish cannot reasonably
	// share a single DB transaction with a 120s-base retry budget); a
	// duplicate call is detected here and short-circuits before any of
	// those side effects run again.
	outcome, err := s.idempotency.Execute(ctx, "process_allowed", map[string]string{"scan_id": in.ScanID}, &in.Viewer,
		func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO chain_anchors (subject_id, partial_anchor) VALUES ($1, false)
				ON CONFLICT (subject_id) DO NOTHING`, in.ScanID)
			return err
		})
	if err != nil {
		return nil, err
	}
	if outcome.Duplicate {
		return &Result{Duplicate: true}, nil
	}

	// Phase 2: fetch scoped facets. A facet body is never logged, only
	// the count makes it into the audit detail.
	faces, err := s.facets.FetchScoped(ctx, in.AssetID, in.ResolvedScope)
	if err != nil {
		return nil, err
	}

	// Phase 3: anchor on both ledgers in parallel, each with its own
	// retry budget.
	cardanoTx, cardanoErr, midnightTx, midnightErr := s.anchorBoth(ctx, in.ScanID, faces)

	partial := false
	if cardanoErr != nil || midnightErr != nil {
		if cardanoErr != nil && midnightErr != nil {
			return nil, fmt.Errorf("both ledgers failed to anchor: cardano=%v midnight=%v", cardanoErr, midnightErr)
		}
		partial = true
	}

	// Phase 4: cross-chain root.
	root := crosschainRoot(cardanoTx, midnightTx, in.ScanID)

	if err := s.auditRepo.UpsertAnchor(ctx, &entities.ChainAnchor{
		SubjectID: in.ScanID, CardanoTxHash: strPtr(cardanoTx), MidnightTxHash: strPtr(midnightTx),
		CrosschainRootHash: strPtr(root), PartialAnchor: partial,
	}); err != nil {
		return nil, err
	}

	// Phase 5: append the audit entry; decision_detail carries exactly
	// the fields explain()'s fixed whitelist later projects.
	_, err = s.auditSvc.Append(ctx, in.ScanID, fmt.Sprintf("process_allowed/%s", in.ActionType), map[string]interface{}{
		"region_code":          in.RegionCode,
		"policy_version":       in.PolicyVersion,
		"resolved_scope":       string(in.ResolvedScope),
		"shown_facets_count":   len(faces),
		"cardano_tx_hash":      cardanoTx,
		"midnight_tx_hash":     midnightTx,
		"crosschain_root_hash": root,
	}, partial, false, nil)
	if err != nil {
		return nil, err
	}

	// Phase 6: publish to the owner's wardrobe document.
	doc := &entities.CubeDocument{CubeID: in.AssetID, OwnerID: in.OwnerID, AgenticState: entities.AgenticIdle, Faces: faces, UpdatedAt: time.Now().UTC()}
	if err := s.cubeCache.Put(ctx, doc); err != nil {
		s.log.Warn("failed to publish cube document to state cache", "error", err, "asset_id", in.AssetID)
	}

	return &Result{PartialAnchor: partial, CardanoTxHash: cardanoTx, MidnightTxHash: midnightTx, CrosschainRootHash: root}, nil
}

func (s *Service) anchorBoth(ctx context.Context, scanID string, faces map[entities.FacetName]*entities.FaceDocument) (cardanoTx string, cardanoErr error, midnightTx string, midnightErr error) {
	payload := []byte(scanID)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var attempts int
		cardanoTx, cardanoErr, attempts = retryWithBackoff(ctx, s.cfg, func() (string, error) {
			return s.cardano.Anchor(ctx, scanID, payload)
		})
		metrics.RecordAnchorAttempts("cardano", attempts)
	}()
	go func() {
		defer wg.Done()
		var attempts int
		midnightTx, midnightErr, attempts = retryWithBackoff(ctx, s.cfg, func() (string, error) {
			return s.midnight.Anchor(ctx, scanID, payload)
		})
		metrics.RecordAnchorAttempts("midnight", attempts)
	}()
	wg.Wait()
	return
}

// retryWithBackoff implements §4.7's per-ledger retry budget: exponential
// backoff with jitter, max attempts, base duration. A permanent (4xx)
// rejection is not retried. Returns the number of attempts taken.
func retryWithBackoff(ctx context.Context, cfg Config, call func() (string, error)) (string, error, int) {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		tx, err := call()
		if err == nil {
			return tx, nil, attempt + 1
		}
		lastErr = err
		if !spineerrors.IsRetryable(err) {
			return "", err, attempt + 1
		}
		if attempt == cfg.MaxRetries-1 {
			break
		}
		backoff := cfg.BackoffBase * time.Duration(1<<uint(attempt))
		jitter := time.Duration(rand.Int63n(int64(cfg.BackoffBase)))
		select {
		case <-ctx.Done():
			return "", ctx.Err(), attempt + 1
		case <-time.After(backoff + jitter):
		}
	}
	return "", lastErr, cfg.MaxRetries
}

func crosschainRoot(cardanoTx, midnightTx, scanID string) string {
	sum := sha256.Sum256([]byte(cardanoTx + "|" + midnightTx + "|" + scanID))
	return hex.EncodeToString(sum[:])
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
