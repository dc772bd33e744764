package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"go-credential-verifier/verifier"
)

const (
	defaultGatewayRetries  = 3
	defaultGatewayInterval = 200 * time.Millisecond
)

// GatewayError is a non-200 answer from the gateway.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway responded with status %d: %s", e.Status, e.Body)
}

// GatewayClient resolves the registry and proof verifier of an attestation through
// the chain gateway's JSON API. Server errors and transport failures are retried
// with exponential backoff; other errors are not.
type GatewayClient struct {
	baseURL         string
	httpClient      *http.Client
	retries         uint64
	initialInterval time.Duration
}

var _ verifier.Hub = (*GatewayClient)(nil)

type GatewayOption func(*GatewayClient)

func WithHTTPClient(client *http.Client) GatewayOption {
	return func(c *GatewayClient) { c.httpClient = client }
}

func WithRetries(retries uint64, initialInterval time.Duration) GatewayOption {
	return func(c *GatewayClient) {
		c.retries = retries
		c.initialInterval = initialInterval
	}
}

func NewGatewayClient(baseURL string, opts ...GatewayOption) *GatewayClient {
	c := &GatewayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retries:         defaultGatewayRetries,
		initialInterval: defaultGatewayInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func attestationPath(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}

func (c *GatewayClient) Registry(ctx context.Context, attestationID [32]byte) (verifier.CommitmentRegistry, error) {
	var response struct {
		Deployed bool `json:"deployed"`
	}
	path := fmt.Sprintf("/api/registry/%s", attestationPath(attestationID))
	if err := c.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !response.Deployed {
		return nil, nil
	}
	return &gatewayRegistry{client: c, id: attestationPath(attestationID)}, nil
}

func (c *GatewayClient) DiscloseVerifier(ctx context.Context, attestationID [32]byte) (verifier.ProofVerifier, error) {
	var response struct {
		Deployed bool `json:"deployed"`
	}
	path := fmt.Sprintf("/api/verifier/%s", attestationPath(attestationID))
	if err := c.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !response.Deployed {
		return nil, nil
	}
	return &gatewayVerifier{client: c, id: attestationPath(attestationID)}, nil
}

// HealthCheck verifies the gateway is reachable
func (c *GatewayClient) HealthCheck(ctx context.Context) error {
	var response map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &response); err != nil {
		return fmt.Errorf("gateway health check failed: %w", err)
	}
	slog.Info("Gateway health check passed", "url", c.baseURL)
	return nil
}

type gatewayRegistry struct {
	client *GatewayClient
	id     string
}

func (r *gatewayRegistry) CheckIdentityCommitmentRoot(ctx context.Context, root *big.Int) (bool, error) {
	var response struct {
		Known bool `json:"known"`
	}
	path := fmt.Sprintf("/api/registry/%s/roots/%s", r.id, root.String())
	if err := r.client.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		return false, err
	}
	return response.Known, nil
}

type verifyProofRequest struct {
	A          [2]string    `json:"a"`
	B          [2][2]string `json:"b"`
	C          [2]string    `json:"c"`
	PubSignals []string     `json:"pub_signals"`
}

type gatewayVerifier struct {
	client *GatewayClient
	id     string
}

func (v *gatewayVerifier) VerifyProof(ctx context.Context, a [2]*big.Int, b [2][2]*big.Int, c [2]*big.Int, signals []*big.Int) (bool, error) {
	request := verifyProofRequest{PubSignals: make([]string, len(signals))}
	for i := 0; i < 2; i++ {
		request.A[i] = a[i].String()
		request.C[i] = c[i].String()
		for j := 0; j < 2; j++ {
			request.B[i][j] = b[i][j].String()
		}
	}
	for i, s := range signals {
		request.PubSignals[i] = s.String()
	}

	var response struct {
		Valid bool `json:"valid"`
	}
	path := fmt.Sprintf("/api/verifier/%s/verify", v.id)
	if err := v.client.do(ctx, http.MethodPost, path, request, &response); err != nil {
		return false, err
	}
	return response.Valid, nil
}

func (c *GatewayClient) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
	}

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create gateway request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("failed to execute gateway request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			gatewayErr := &GatewayError{Status: resp.StatusCode, Body: string(respBody)}
			if resp.StatusCode >= http.StatusInternalServerError {
				return gatewayErr
			}
			return backoff.Permanent(gatewayErr)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode gateway response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.Reset()

	return backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx),
		func(err error, wait time.Duration) {
			slog.Warn("Gateway request failed, retrying", "method", method, "path", path, "retry_in", wait, "error", err)
		},
	)
}

func isNotFound(err error) bool {
	var gatewayErr *GatewayError
	return errors.As(err, &gatewayErr) && gatewayErr.Status == http.StatusNotFound
}
