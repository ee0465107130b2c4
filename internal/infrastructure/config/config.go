// Package config loads process configuration from environment variables
// (with an optional .env file in non-production environments) via viper,
// mirroring the teacher's env-driven, fail-fast-in-production shape.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the fully resolved process configuration.
type Config struct {
	Environment string
	LogLevel    string

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Region   RegionConfig
	Ledger   LedgerConfig
	Verifier VerifierConfig
	Auth     AuthConfig
	Sweeper  SweeperConfig
	Email    EmailConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port         int
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
}

// DatabaseConfig controls the Postgres storage adapter connection pool.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig controls the state-cache connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RegionConfig names the region-rule overlay document active for this
// deployment (embargo lists, GDPR/CCPA erasure windows).
type RegionConfig struct {
	ActiveRegion string
}

// LedgerConfig holds the dual-ledger anchor client settings.
type LedgerConfig struct {
	CardanoEndpoint     string
	MidnightEndpoint    string
	AnchorTimeout       time.Duration
	AnchorMaxRetries    int
	AnchorBackoffBase   time.Duration
	RequireDualAnchor   bool
}

// VerifierConfig controls the burn-proof/ESG verifier clients and their
// fallback behavior when the external verifier is unreachable.
type VerifierConfig struct {
	BurnProofEndpoint  string
	ESGEndpoint        string
	RequireLedgerProof bool
	CacheTTL           time.Duration
}

// AuthConfig holds the internal mesh-auth JWT signing settings and the
// TOTP step-up secret namespace used before one-time dissolve-key reveal.
type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	TOTPIssuer    string
}

// SweeperConfig controls the background cron jobs: escalation SLA sweep,
// mutation-log TTL sweep, state-cache janitor.
type SweeperConfig struct {
	EscalationSLASchedule   string
	MutationLogTTL          time.Duration
	MutationLogSweepCron    string
	CacheJanitorCron        string
}

// EmailConfig controls the human-reviewer escalation notification, sent
// through SendGrid whenever an item is queued for governance review.
type EmailConfig struct {
	Enabled   bool
	APIKey    string
	FromEmail string
	FromName  string
	ToEmail   string
}

// Load reads configuration from the environment (and .env in non-production
// environments), applying defaults and then failing fast if a
// production-required value is missing.
func Load() (*Config, error) {
	v := viper.New()

	env := getenvDefault("ENVIRONMENT", "development")
	if env != "production" {
		_ = godotenv.Load()
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("environment", env)
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)

	v.SetDefault("database.url", "postgres://localhost:5432/integrity_spine?sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("region.active_region", "US")

	v.SetDefault("ledger.cardano_endpoint", "http://localhost:9001")
	v.SetDefault("ledger.midnight_endpoint", "http://localhost:9002")
	v.SetDefault("ledger.anchor_timeout", "10s")
	v.SetDefault("ledger.anchor_max_retries", 5)
	v.SetDefault("ledger.anchor_backoff_base", "120s")
	v.SetDefault("ledger.require_dual_anchor", false)

	v.SetDefault("verifier.burn_proof_endpoint", "http://localhost:9101")
	v.SetDefault("verifier.esg_endpoint", "http://localhost:9102")
	v.SetDefault("verifier.require_ledger_proof", false)
	v.SetDefault("verifier.cache_ttl", "24h")

	v.SetDefault("auth.jwt_issuer", "integrity-spine")
	v.SetDefault("auth.totp_issuer", "IntegritySpine")

	v.SetDefault("sweeper.escalation_sla_schedule", "@every 1m")
	v.SetDefault("sweeper.mutation_log_ttl", "24h")
	v.SetDefault("sweeper.mutation_log_sweep_cron", "@every 15m")
	v.SetDefault("sweeper.cache_janitor_cron", "@every 5m")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.from_email", "governance@integrity-spine.local")
	v.SetDefault("email.from_name", "Integrity Spine Governance")

	bindEnv(v, "environment", "ENVIRONMENT")
	bindEnv(v, "log_level", "LOG_LEVEL")
	bindEnv(v, "server.port", "SERVER_PORT")
	bindEnv(v, "server.read_timeout", "SERVER_READ_TIMEOUT")
	bindEnv(v, "server.write_timeout", "SERVER_WRITE_TIMEOUT")
	bindEnv(v, "database.url", "DATABASE_URL")
	bindEnv(v, "database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	bindEnv(v, "database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	bindEnv(v, "database.conn_max_lifetime", "DATABASE_CONN_MAX_LIFETIME")
	bindEnv(v, "redis.addr", "REDIS_ADDR")
	bindEnv(v, "redis.password", "REDIS_PASSWORD")
	bindEnv(v, "redis.db", "REDIS_DB")
	bindEnv(v, "region.active_region", "ACTIVE_REGION")
	bindEnv(v, "ledger.cardano_endpoint", "LEDGER_CARDANO_ENDPOINT")
	bindEnv(v, "ledger.midnight_endpoint", "LEDGER_MIDNIGHT_ENDPOINT")
	bindEnv(v, "ledger.anchor_timeout", "LEDGER_ANCHOR_TIMEOUT")
	bindEnv(v, "ledger.anchor_max_retries", "LEDGER_ANCHOR_MAX_RETRIES")
	bindEnv(v, "ledger.anchor_backoff_base", "LEDGER_ANCHOR_BACKOFF_BASE")
	bindEnv(v, "ledger.require_dual_anchor", "LEDGER_REQUIRE_DUAL_ANCHOR")
	bindEnv(v, "verifier.burn_proof_endpoint", "VERIFIER_BURN_PROOF_ENDPOINT")
	bindEnv(v, "verifier.esg_endpoint", "VERIFIER_ESG_ENDPOINT")
	bindEnv(v, "verifier.require_ledger_proof", "VERIFIER_REQUIRE_LEDGER_PROOF")
	bindEnv(v, "verifier.cache_ttl", "VERIFIER_CACHE_TTL")
	bindEnv(v, "auth.jwt_signing_key", "AUTH_JWT_SIGNING_KEY")
	bindEnv(v, "auth.jwt_issuer", "AUTH_JWT_ISSUER")
	bindEnv(v, "auth.totp_issuer", "AUTH_TOTP_ISSUER")
	bindEnv(v, "sweeper.escalation_sla_schedule", "SWEEPER_ESCALATION_SLA_SCHEDULE")
	bindEnv(v, "sweeper.mutation_log_ttl", "SWEEPER_MUTATION_LOG_TTL")
	bindEnv(v, "sweeper.mutation_log_sweep_cron", "SWEEPER_MUTATION_LOG_SWEEP_CRON")
	bindEnv(v, "sweeper.cache_janitor_cron", "SWEEPER_CACHE_JANITOR_CRON")
	bindEnv(v, "email.enabled", "EMAIL_ENABLED")
	bindEnv(v, "email.api_key", "EMAIL_API_KEY")
	bindEnv(v, "email.from_email", "EMAIL_FROM_EMAIL")
	bindEnv(v, "email.from_name", "EMAIL_FROM_NAME")
	bindEnv(v, "email.to_email", "EMAIL_TO_EMAIL")

	cfg := &Config{
		Environment: v.GetString("environment"),
		LogLevel:    v.GetString("log_level"),
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetInt("server.read_timeout"),
			WriteTimeout: v.GetInt("server.write_timeout"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Region: RegionConfig{
			ActiveRegion: v.GetString("region.active_region"),
		},
		Ledger: LedgerConfig{
			CardanoEndpoint:   v.GetString("ledger.cardano_endpoint"),
			MidnightEndpoint:  v.GetString("ledger.midnight_endpoint"),
			AnchorTimeout:     v.GetDuration("ledger.anchor_timeout"),
			AnchorMaxRetries:  v.GetInt("ledger.anchor_max_retries"),
			AnchorBackoffBase: v.GetDuration("ledger.anchor_backoff_base"),
			RequireDualAnchor: v.GetBool("ledger.require_dual_anchor"),
		},
		Verifier: VerifierConfig{
			BurnProofEndpoint:  v.GetString("verifier.burn_proof_endpoint"),
			ESGEndpoint:        v.GetString("verifier.esg_endpoint"),
			RequireLedgerProof: v.GetBool("verifier.require_ledger_proof"),
			CacheTTL:           v.GetDuration("verifier.cache_ttl"),
		},
		Auth: AuthConfig{
			JWTSigningKey: v.GetString("auth.jwt_signing_key"),
			JWTIssuer:     v.GetString("auth.jwt_issuer"),
			TOTPIssuer:    v.GetString("auth.totp_issuer"),
		},
		Sweeper: SweeperConfig{
			EscalationSLASchedule: v.GetString("sweeper.escalation_sla_schedule"),
			MutationLogTTL:        v.GetDuration("sweeper.mutation_log_ttl"),
			MutationLogSweepCron:  v.GetString("sweeper.mutation_log_sweep_cron"),
			CacheJanitorCron:      v.GetString("sweeper.cache_janitor_cron"),
		},
		Email: EmailConfig{
			Enabled:   v.GetBool("email.enabled"),
			APIKey:    v.GetString("email.api_key"),
			FromEmail: v.GetString("email.from_email"),
			FromName:  v.GetString("email.from_name"),
			ToEmail:   v.GetString("email.to_email"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate fails fast on missing production-required values, matching the
// teacher's production startup guard.
func (c *Config) validate() error {
	if c.Environment != "production" {
		return nil
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("AUTH_JWT_SIGNING_KEY is required in production")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	return nil
}

func bindEnv(v *viper.Viper, key, env string) {
	_ = v.BindEnv(key, env)
}

func getenvDefault(key, def string) string {
	v := viper.New()
	v.AutomaticEnv()
	if val := v.GetString(key); val != "" {
		return val
	}
	return def
}
