// Package ledger provides the HTTP adapter clients for the two anchor
// targets (Cardano, Midnight). Per §4.7's scope boundary these are opaque
// RPC targets: this package only calls them, it never implements ledger
// consensus.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/integrity-spine/spine/pkg/circuitbreaker"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
	"github.com/integrity-spine/spine/pkg/logger"
)

// AnchorClient submits a subject's payload to a ledger and returns the
// resulting transaction hash.
type AnchorClient interface {
	Anchor(ctx context.Context, subjectID string, payload []byte) (txHash string, err error)
}

// Config configures one ledger adapter's endpoint and call budget.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

type anchorRequest struct {
	SubjectID string `json:"subject_id"`
	Payload   string `json:"payload"`
}

type anchorResponse struct {
	TxHash string `json:"tx_hash"`
}

// httpAnchorClient is the shared HTTP implementation; Cardano and Midnight
// differ only in endpoint and request path, not in call shape.
type httpAnchorClient struct {
	name       string
	path       string
	cfg        Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger
}

func newHTTPAnchorClient(name, path string, cfg Config, log *logger.Logger) *httpAnchorClient {
	return &httpAnchorClient{
		name: name,
		path: path,
		cfg:  cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			MaxRequests:      5,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}),
		log: log,
	}
}

// Anchor submits one anchor request. A 4xx response is wrapped as a
// validation error (non-retryable per §4.7's "permanent
// ledger rejection" clause); a 5xx or transport failure is wrapped as
// service_unavailable, which the orchestrator's retry loop treats as
// retryable.
func (c *httpAnchorClient) Anchor(ctx context.Context, subjectID string, payload []byte) (string, error) {
	var result anchorResponse
	err := c.breaker.Execute(ctx, func() error {
		return c.postJSON(ctx, anchorRequest{SubjectID: subjectID, Payload: string(payload)}, &result)
	})
	if err != nil {
		return "", err
	}
	return result.TxHash, nil
}

// postJSON POSTs body to this client's configured path and decodes the
// JSON response into out. The caller is responsible for wrapping this in
// the client's circuit breaker.
func (c *httpAnchorClient) postJSON(ctx context.Context, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+c.path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return spineerrors.Wrap(spineerrors.NewServiceUnavailable(fmt.Sprintf("%s call to %s failed", c.name, c.path)), err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return spineerrors.NewValidationError(fmt.Sprintf("%s rejected %s: %s", c.name, c.path, string(respBody)))
	}
	if resp.StatusCode >= 500 {
		return spineerrors.NewServiceUnavailable(fmt.Sprintf("%s %s returned %d", c.name, c.path, resp.StatusCode))
	}
	return json.Unmarshal(respBody, out)
}

// NewCardanoClient builds the Cardano anchor adapter.
func NewCardanoClient(cfg Config, log *logger.Logger) AnchorClient {
	return newHTTPAnchorClient("cardano", "/anchor", cfg, log)
}

// NewMidnightClient builds the Midnight anchor adapter.
func NewMidnightClient(cfg Config, log *logger.Logger) AnchorClient {
	return newHTTPAnchorClient("midnight", "/anchor", cfg, log)
}

// VerifierClient implements verifiers.LedgerClient against the same two
// ledgers: burn-proof checks query Cardano (the NFT/token ledger that
// actually recorded the burn transaction), material ESG scores query
// Midnight (its shielded-transaction model lets a supplier publish a
// verifiable score without revealing the underlying batch ledger).
type VerifierClient struct {
	cardano  *httpAnchorClient
	midnight *httpAnchorClient
}

func NewVerifierClient(cardanoCfg, midnightCfg Config, log *logger.Logger) *VerifierClient {
	return &VerifierClient{
		cardano:  newHTTPAnchorClient("cardano", "/verify/burn_proof", cardanoCfg, log),
		midnight: newHTTPAnchorClient("midnight", "/verify/material_esg", midnightCfg, log),
	}
}

type burnProofVerifyResponse struct {
	Valid bool `json:"valid"`
}

type materialESGResponse struct {
	Score float64 `json:"score"`
}

// VerifyBurnProof asks Cardano whether proofHash corresponds to a
// recorded burn transaction for parentAsset.
func (c *VerifierClient) VerifyBurnProof(ctx context.Context, proofHash string, parentAsset uuid.UUID) (bool, error) {
	var result burnProofVerifyResponse
	err := c.cardano.breaker.Execute(ctx, func() error {
		return c.cardano.postJSON(ctx, map[string]string{"proof_hash": proofHash, "parent_asset": parentAsset.String()}, &result)
	})
	if err != nil {
		return false, err
	}
	return result.Valid, nil
}

// VerifyMaterialESG asks Midnight for the published ESG score of a
// material batch.
func (c *VerifierClient) VerifyMaterialESG(ctx context.Context, materialBatch string) (float64, error) {
	var result materialESGResponse
	err := c.midnight.breaker.Execute(ctx, func() error {
		return c.midnight.postJSON(ctx, map[string]string{"material_batch": materialBatch}, &result)
	})
	if err != nil {
		return 0, err
	}
	return result.Score, nil
}
