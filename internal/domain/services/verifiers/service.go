// Package verifiers implements the Burn-Proof & ESG Verifiers (§4.11):
// external-ledger-backed checks with a persistent cache, a stub fallback
// for non-production use, and require/allow modes. The tagged
// VerifierResult variant (Valid/Invalid/Unavailable) replaces the dynamic
// dispatch called out in §9's design notes — callers pattern-match on
// Kind and must never default-accept Unavailable in production.
package verifiers

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	"github.com/integrity-spine/spine/pkg/logger"
)

// LedgerClient is the external RPC surface for both verifiers; production
// wiring hits the Cardano/Midnight adapters over HTTP, tests substitute a
// fake.
type LedgerClient interface {
	VerifyBurnProof(ctx context.Context, proofHash string, parentAsset uuid.UUID) (bool, error)
	VerifyMaterialESG(ctx context.Context, materialBatch string) (float64, error)
}

// Config controls require/allow modes and the cache horizon.
type Config struct {
	RequireLedger     bool
	AllowStubFallback bool
	CacheTTL          time.Duration
}

var hexPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Service is the Burn-Proof & ESG Verifiers component.
type Service struct {
	client LedgerClient
	cache  repositories.VerifierCacheRepository
	cfg    Config
	log    *logger.Logger
}

func NewService(client LedgerClient, cache repositories.VerifierCacheRepository, cfg Config, log *logger.Logger) *Service {
	return &Service{client: client, cache: cache, cfg: cfg, log: log}
}

// VerifyBurnProof implements §4.11's burn-proof verify semantics.
func (s *Service) VerifyBurnProof(ctx context.Context, proofHash string, parentAsset uuid.UUID) (*entities.VerifierResult, error) {
	valid, err := s.client.VerifyBurnProof(ctx, proofHash, parentAsset)
	if err == nil {
		if valid {
			now := time.Now().UTC()
			_ = s.cache.PutBurnProof(ctx, &entities.BurnProofCacheEntry{
				ProofHash: proofHash, ParentAsset: parentAsset, Valid: true,
				VerifiedAt: now, ExpiresAt: now.Add(s.cfg.CacheTTL),
			})
		}
		return kindResult(valid, false), nil
	}

	s.log.Warn("burn proof ledger unreachable, consulting cache", "error", err)
	cached, cerr := s.cache.GetBurnProof(ctx, proofHash)
	if cerr == nil && cached != nil {
		return kindResult(cached.Valid, false), nil
	}

	if s.cfg.RequireLedger {
		return &entities.VerifierResult{Kind: entities.VerifierInvalid, Reason: "ledger_unavailable"}, nil
	}
	if s.cfg.AllowStubFallback {
		return kindResult(stubBurnProofValid(proofHash), true), nil
	}
	return &entities.VerifierResult{Kind: entities.VerifierUnavailable}, nil
}

// VerifyMaterial implements the ESG verifier half of §4.11, and also
// satisfies policy.ESGVerifier for the Policy Engine's transactional gate.
func (s *Service) VerifyMaterial(ctx context.Context, materialBatch string) (*entities.VerifierResult, float64, error) {
	score, err := s.client.VerifyMaterialESG(ctx, materialBatch)
	if err == nil {
		now := time.Now().UTC()
		_ = s.cache.PutMaterialESG(ctx, &entities.MaterialESGCacheEntry{
			MaterialBatch: materialBatch, Score: score, VerifiedAt: now, ExpiresAt: now.Add(s.cfg.CacheTTL),
		})
		return &entities.VerifierResult{Kind: entities.VerifierValid, Details: map[string]interface{}{"score": score}}, score, nil
	}

	s.log.Warn("esg ledger unreachable, consulting cache", "error", err)
	cached, cerr := s.cache.GetMaterialESG(ctx, materialBatch)
	if cerr == nil && cached != nil {
		return &entities.VerifierResult{Kind: entities.VerifierValid, Details: map[string]interface{}{"score": cached.Score}}, cached.Score, nil
	}

	if s.cfg.RequireLedger {
		return &entities.VerifierResult{Kind: entities.VerifierInvalid, Reason: "ledger_unavailable"}, 0, nil
	}
	if s.cfg.AllowStubFallback {
		return &entities.VerifierResult{Kind: entities.VerifierValid, Stub: true, Details: map[string]interface{}{"score": 0.0}}, 0, nil
	}
	return &entities.VerifierResult{Kind: entities.VerifierUnavailable}, 0, nil
}

func kindResult(valid, stub bool) *entities.VerifierResult {
	if valid {
		return &entities.VerifierResult{Kind: entities.VerifierValid, Stub: stub}
	}
	return &entities.VerifierResult{Kind: entities.VerifierInvalid, Reason: "proof_not_valid", Stub: stub}
}

// stubBurnProofValid is the hex-length sanity-only stub check; its result
// is flag-marked Stub. This function does not look at the environment: the
// DI container turns AllowStubFallback off in production, and callers
// decide on Kind alone, so a stub-valid result is accepted wherever the
// fallback is enabled.
func stubBurnProofValid(proofHash string) bool {
	return hexPattern.MatchString(proofHash)
}
