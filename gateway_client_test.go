package main

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-credential-verifier/verifier"
)

const passportPath = "0x0000000000000000000000000000000000000000000000000000000000000001"

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGatewayClient(server.URL, WithRetries(3, time.Millisecond))
}

func TestGatewayClient_HealthCheck(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	require.NoError(t, client.HealthCheck(context.Background()))
}

func TestGatewayClient_RegistryRoots(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/registry/" + passportPath:
			_ = json.NewEncoder(w).Encode(map[string]bool{"deployed": true})
		case "/api/registry/" + passportPath + "/roots/4242":
			_ = json.NewEncoder(w).Encode(map[string]bool{"known": true})
		default:
			_ = json.NewEncoder(w).Encode(map[string]bool{"known": false})
		}
	})

	registry, err := client.Registry(context.Background(), verifier.Passport.Bytes32())
	require.NoError(t, err)
	require.NotNil(t, registry)

	known, err := registry.CheckIdentityCommitmentRoot(context.Background(), big.NewInt(4242))
	require.NoError(t, err)
	require.True(t, known)

	known, err = registry.CheckIdentityCommitmentRoot(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	require.False(t, known)
}

func TestGatewayClient_NotDeployed(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/registry/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"deployed": false})
	})

	registry, err := client.Registry(context.Background(), verifier.EUCard.Bytes32())
	require.NoError(t, err)
	require.Nil(t, registry)

	proofVerifier, err := client.DiscloseVerifier(context.Background(), verifier.EUCard.Bytes32())
	require.NoError(t, err)
	require.Nil(t, proofVerifier)
}

func TestGatewayClient_VerifyProof(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]bool{"deployed": true})
			return
		}
		assert.Equal(t, "/api/verifier/"+passportPath+"/verify", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var request verifyProofRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		valid := request.A == [2]string{"1", "2"} &&
			request.B == [2][2]string{{"4", "3"}, {"6", "5"}} &&
			request.C == [2]string{"7", "8"} &&
			len(request.PubSignals) == 2 && request.PubSignals[1] == "99"
		_ = json.NewEncoder(w).Encode(map[string]bool{"valid": valid})
	})

	proofVerifier, err := client.DiscloseVerifier(context.Background(), verifier.Passport.Bytes32())
	require.NoError(t, err)

	n := big.NewInt
	valid, err := proofVerifier.VerifyProof(context.Background(),
		[2]*big.Int{n(1), n(2)},
		[2][2]*big.Int{{n(4), n(3)}, {n(6), n(5)}},
		[2]*big.Int{n(7), n(8)},
		[]*big.Int{n(0), n(99)},
	)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestGatewayClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"deployed": true})
	})

	registry, err := client.Registry(context.Background(), verifier.Passport.Bytes32())
	require.NoError(t, err)
	require.NotNil(t, registry)
	require.Equal(t, int32(3), calls.Load())
}

func TestGatewayClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("node syncing"))
	})

	_, err := client.Registry(context.Background(), verifier.Passport.Bytes32())
	var gatewayErr *GatewayError
	require.True(t, errors.As(err, &gatewayErr))
	require.Equal(t, http.StatusServiceUnavailable, gatewayErr.Status)
	require.Equal(t, "node syncing", gatewayErr.Body)
	require.Equal(t, int32(4), calls.Load())
}

func TestGatewayClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.DiscloseVerifier(context.Background(), verifier.Passport.Bytes32())
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestGatewayClient_HonoursDeadline(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Registry(ctx, verifier.Passport.Bytes32())
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}
