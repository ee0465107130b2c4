// Package di wires every domain service, repository, and infrastructure
// adapter into one Container, constructed once at startup and handed to
// the route layer and the background sweepers.
package di

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/integrity-spine/spine/internal/domain/repositories"
	"github.com/integrity-spine/spine/internal/domain/services/audit"
	"github.com/integrity-spine/spine/internal/domain/services/consent"
	"github.com/integrity-spine/spine/internal/domain/services/cube"
	"github.com/integrity-spine/spine/internal/domain/services/escalation"
	"github.com/integrity-spine/spine/internal/domain/services/idempotency"
	"github.com/integrity-spine/spine/internal/domain/services/ledger"
	"github.com/integrity-spine/spine/internal/domain/services/lifecycle"
	"github.com/integrity-spine/spine/internal/domain/services/orchestrator"
	"github.com/integrity-spine/spine/internal/domain/services/policy"
	"github.com/integrity-spine/spine/internal/domain/services/provenance"
	"github.com/integrity-spine/spine/internal/domain/services/region"
	"github.com/integrity-spine/spine/internal/domain/services/verifiers"
	"github.com/integrity-spine/spine/internal/infrastructure/config"
	"github.com/integrity-spine/spine/internal/infrastructure/notify"
	infrarepos "github.com/integrity-spine/spine/internal/infrastructure/repositories"
	"github.com/integrity-spine/spine/internal/infrastructure/statecache"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
	"github.com/integrity-spine/spine/pkg/auth"
	"github.com/integrity-spine/spine/pkg/logger"
	"github.com/integrity-spine/spine/pkg/security"
)

// Container holds every wired component the HTTP layer and sweepers need.
// Fields are exported directly, matching the teacher's container shape,
// rather than hidden behind a getter per field.
type Container struct {
	Cfg *config.Config
	Log *logger.Logger

	Storage *storage.Adapter
	Redis   *redis.Client

	UserRepo          repositories.UserRepository
	FriendRepo        repositories.FriendshipRepository
	AssetRepo         repositories.AssetRepository
	VerifierCacheRepo repositories.VerifierCacheRepository

	Idempotency *idempotency.Service
	Consent     *consent.Service
	Provenance  *provenance.Service
	Region      *region.Store
	Policy      *policy.Engine
	Verifiers   *verifiers.Service
	Lifecycle   *lifecycle.Service
	Audit       *audit.Service
	Escalation  *escalation.Service
	Orchestrator *orchestrator.Service
	Cube        *cube.Service

	CardanoClient  ledger.AnchorClient
	MidnightClient ledger.AnchorClient

	MeshAuth       *auth.MeshAuthService
	DissolveStepUp *auth.DissolveStepUp
	ReplayGuard    *security.ReplayGuard
	RateLimiter    *security.RateLimiter
}

// NewContainer builds the Storage Adapter, the State Cache, every
// repository, and every domain service, wiring each one's dependencies
// in the order they're needed (repositories first, then the services
// that compose them, then the services that compose those).
func NewContainer(cfg *config.Config, log *logger.Logger) (*Container, error) {
	adapter, err := storage.New(storage.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		AcquireTimeout:  30 * time.Second,
		HealthThreshold: 2 * time.Second,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("storage adapter: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cubeCache := statecache.NewRedisCubeCacheRepository(redisClient, log.Zap())

	userRepo := infrarepos.NewPostgresUserRepository(adapter)
	friendRepo := infrarepos.NewPostgresFriendshipRepository(adapter)
	assetRepo := infrarepos.NewPostgresAssetRepository(adapter)
	ownsRepo := infrarepos.NewPostgresOwnsRepository(adapter)
	provenanceRepo := infrarepos.NewPostgresProvenanceRepository(adapter)
	consentRepo := infrarepos.NewPostgresConsentRepository(adapter)
	auditRepo := infrarepos.NewPostgresAuditRepository(adapter)
	lifecycleRepo := infrarepos.NewPostgresLifecycleRepository(adapter)
	verifierCacheRepo := infrarepos.NewPostgresVerifierCacheRepository(adapter)

	idempotencySvc := idempotency.NewService(adapter)
	consentSvc := consent.NewService(consentRepo, friendRepo)
	provenanceSvc := provenance.NewService(assetRepo, ownsRepo, provenanceRepo)
	regionStore := region.NewStore(region.DefaultDocuments())
	auditSvc := audit.NewService(auditRepo)

	cardanoCfg := ledger.Config{Endpoint: cfg.Ledger.CardanoEndpoint, Timeout: cfg.Ledger.AnchorTimeout}
	midnightCfg := ledger.Config{Endpoint: cfg.Ledger.MidnightEndpoint, Timeout: cfg.Ledger.AnchorTimeout}
	cardanoClient := ledger.NewCardanoClient(cardanoCfg, log)
	midnightClient := ledger.NewMidnightClient(midnightCfg, log)
	verifierClient := ledger.NewVerifierClient(cardanoCfg, midnightCfg, log)

	verifiersSvc := verifiers.NewService(
		verifierClient,
		verifierCacheRepo,
		verifiers.Config{
			RequireLedger:     cfg.Verifier.RequireLedgerProof,
			AllowStubFallback: !cfg.Verifier.RequireLedgerProof && cfg.Environment != "production",
			CacheTTL:          cfg.Verifier.CacheTTL,
		},
		log,
	)

	lifecycleSvc := lifecycle.NewService(assetRepo, lifecycleRepo, verifiersSvc)
	policyEngine := policy.NewEngine(consentSvc, regionStore, verifiersSvc)

	facetSource := cube.NewFacetSource(assetRepo)
	orchestratorSvc := orchestrator.NewService(
		idempotencySvc, auditSvc, auditRepo, cubeCache, facetSource,
		cardanoClient, midnightClient,
		orchestrator.Config{MaxRetries: cfg.Ledger.AnchorMaxRetries, BackoffBase: cfg.Ledger.AnchorBackoffBase},
		log,
	)

	escalationSvc := escalation.NewService(auditSvc, orchestratorSvc)
	escalationSvc.SetNotifier(notify.NewEscalationNotifier(log.Zap(), notify.Config{
		Enabled:   cfg.Email.Enabled,
		APIKey:    cfg.Email.APIKey,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
		ToEmail:   cfg.Email.ToEmail,
	}))
	cubeSvc := cube.NewService(assetRepo, ownsRepo, policyEngine, provenanceSvc, orchestratorSvc, auditSvc, escalationSvc)

	meshAuth := auth.NewMeshAuthService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	dissolveStepUp := auth.NewDissolveStepUp(cfg.Auth.TOTPIssuer)
	replayGuard := security.NewReplayGuard(redisClient, security.DefaultReplayGuardConfig(), log.Zap())
	rateLimiter := security.NewRateLimiter(redisClient, log.Zap())

	return &Container{
		Cfg: cfg, Log: log,
		Storage: adapter, Redis: redisClient,
		UserRepo: userRepo, FriendRepo: friendRepo, AssetRepo: assetRepo, VerifierCacheRepo: verifierCacheRepo,
		Idempotency: idempotencySvc, Consent: consentSvc, Provenance: provenanceSvc,
		Region: regionStore, Policy: policyEngine, Verifiers: verifiersSvc,
		Lifecycle: lifecycleSvc, Audit: auditSvc, Escalation: escalationSvc,
		Orchestrator: orchestratorSvc, Cube: cubeSvc,
		CardanoClient: cardanoClient, MidnightClient: midnightClient,
		MeshAuth: meshAuth, DissolveStepUp: dissolveStepUp,
		ReplayGuard: replayGuard, RateLimiter: rateLimiter,
	}, nil
}

// Close releases the container's long-lived connections.
func (c *Container) Close() error {
	if err := c.Redis.Close(); err != nil {
		return err
	}
	return c.Storage.Close()
}
