package verifiers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/pkg/logger"
)

type fakeLedgerClient struct {
	burnProofValid bool
	burnProofErr   error
	esgScore       float64
	esgErr         error
}

func (f *fakeLedgerClient) VerifyBurnProof(ctx context.Context, proofHash string, parentAsset uuid.UUID) (bool, error) {
	return f.burnProofValid, f.burnProofErr
}
func (f *fakeLedgerClient) VerifyMaterialESG(ctx context.Context, materialBatch string) (float64, error) {
	return f.esgScore, f.esgErr
}

type fakeVerifierCache struct {
	burnProof *entities.BurnProofCacheEntry
	esg       *entities.MaterialESGCacheEntry
	putErr    error
}

func (f *fakeVerifierCache) GetBurnProof(ctx context.Context, proofHash string) (*entities.BurnProofCacheEntry, error) {
	return f.burnProof, nil
}
func (f *fakeVerifierCache) PutBurnProof(ctx context.Context, entry *entities.BurnProofCacheEntry) error {
	f.burnProof = entry
	return f.putErr
}
func (f *fakeVerifierCache) GetMaterialESG(ctx context.Context, materialBatch string) (*entities.MaterialESGCacheEntry, error) {
	return f.esg, nil
}
func (f *fakeVerifierCache) PutMaterialESG(ctx context.Context, entry *entities.MaterialESGCacheEntry) error {
	f.esg = entry
	return f.putErr
}
func (f *fakeVerifierCache) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

var errLedgerDown = assertErr("ledger unreachable")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newTestLogger() *logger.Logger {
	return logger.New("error", "test")
}

func TestVerifyBurnProof_LedgerConfirmsValid_CachesResult(t *testing.T) {
	client := &fakeLedgerClient{burnProofValid: true}
	cache := &fakeVerifierCache{}
	svc := NewService(client, cache, Config{CacheTTL: time.Hour}, newTestLogger())

	result, err := svc.VerifyBurnProof(context.Background(), "deadbeef", uuid.New())

	require.NoError(t, err)
	assert.Equal(t, entities.VerifierValid, result.Kind)
	assert.False(t, result.Stub)
	require.NotNil(t, cache.burnProof)
	assert.True(t, cache.burnProof.Valid)
}

func TestVerifyBurnProof_LedgerConfirmsInvalid_DoesNotCache(t *testing.T) {
	client := &fakeLedgerClient{burnProofValid: false}
	cache := &fakeVerifierCache{}
	svc := NewService(client, cache, Config{CacheTTL: time.Hour}, newTestLogger())

	result, err := svc.VerifyBurnProof(context.Background(), "deadbeef", uuid.New())

	require.NoError(t, err)
	assert.Equal(t, entities.VerifierInvalid, result.Kind)
	assert.Nil(t, cache.burnProof)
}

func TestVerifyBurnProof_LedgerDownCacheHit_ReturnsCachedResult(t *testing.T) {
	client := &fakeLedgerClient{burnProofErr: errLedgerDown}
	cache := &fakeVerifierCache{burnProof: &entities.BurnProofCacheEntry{Valid: true}}
	svc := NewService(client, cache, Config{CacheTTL: time.Hour}, newTestLogger())

	result, err := svc.VerifyBurnProof(context.Background(), "deadbeef", uuid.New())

	require.NoError(t, err)
	assert.Equal(t, entities.VerifierValid, result.Kind)
}

func TestVerifyBurnProof_LedgerDownNoCacheRequireLedger_ReturnsInvalid(t *testing.T) {
	client := &fakeLedgerClient{burnProofErr: errLedgerDown}
	cache := &fakeVerifierCache{}
	svc := NewService(client, cache, Config{RequireLedger: true, CacheTTL: time.Hour}, newTestLogger())

	result, err := svc.VerifyBurnProof(context.Background(), "deadbeef", uuid.New())

	require.NoError(t, err)
	assert.Equal(t, entities.VerifierInvalid, result.Kind)
	assert.Equal(t, "ledger_unavailable", result.Reason)
}

func TestVerifyBurnProof_LedgerDownNoCacheStubAllowed_FallsBackToStub(t *testing.T) {
	client := &fakeLedgerClient{burnProofErr: errLedgerDown}
	cache := &fakeVerifierCache{}
	svc := NewService(client, cache, Config{AllowStubFallback: true, CacheTTL: time.Hour}, newTestLogger())

	validHex := ""
	for i := 0; i < 64; i++ {
		validHex += "a"
	}
	result, err := svc.VerifyBurnProof(context.Background(), validHex, uuid.New())

	require.NoError(t, err)
	assert.Equal(t, entities.VerifierValid, result.Kind)
	assert.True(t, result.Stub)
}

func TestVerifyBurnProof_LedgerDownNoCacheNoFallback_ReturnsUnavailable(t *testing.T) {
	client := &fakeLedgerClient{burnProofErr: errLedgerDown}
	cache := &fakeVerifierCache{}
	svc := NewService(client, cache, Config{CacheTTL: time.Hour}, newTestLogger())

	result, err := svc.VerifyBurnProof(context.Background(), "deadbeef", uuid.New())

	require.NoError(t, err)
	assert.Equal(t, entities.VerifierUnavailable, result.Kind)
}

func TestVerifyMaterial_LedgerConfirms_CachesScore(t *testing.T) {
	client := &fakeLedgerClient{esgScore: 0.87}
	cache := &fakeVerifierCache{}
	svc := NewService(client, cache, Config{CacheTTL: time.Hour}, newTestLogger())

	result, score, err := svc.VerifyMaterial(context.Background(), "MB-1")

	require.NoError(t, err)
	assert.Equal(t, entities.VerifierValid, result.Kind)
	assert.Equal(t, 0.87, score)
	require.NotNil(t, cache.esg)
	assert.Equal(t, 0.87, cache.esg.Score)
}

func TestVerifyMaterial_LedgerDownCacheHit_ReturnsCachedScore(t *testing.T) {
	client := &fakeLedgerClient{esgErr: errLedgerDown}
	cache := &fakeVerifierCache{esg: &entities.MaterialESGCacheEntry{Score: 0.5}}
	svc := NewService(client, cache, Config{CacheTTL: time.Hour}, newTestLogger())

	result, score, err := svc.VerifyMaterial(context.Background(), "MB-1")

	require.NoError(t, err)
	assert.Equal(t, entities.VerifierValid, result.Kind)
	assert.Equal(t, 0.5, score)
}

func TestVerifyMaterial_LedgerDownNoCacheNoFallback_ReturnsUnavailable(t *testing.T) {
	client := &fakeLedgerClient{esgErr: errLedgerDown}
	cache := &fakeVerifierCache{}
	svc := NewService(client, cache, Config{CacheTTL: time.Hour}, newTestLogger())

	result, _, err := svc.VerifyMaterial(context.Background(), "MB-1")

	require.NoError(t, err)
	assert.Equal(t, entities.VerifierUnavailable, result.Kind)
}

func TestStubBurnProofValid_RequiresExact64HexChars(t *testing.T) {
	assert.True(t, stubBurnProofValid("deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"))
	assert.False(t, stubBurnProofValid("tooshort"))
	assert.False(t, stubBurnProofValid("DEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEF"))
}
