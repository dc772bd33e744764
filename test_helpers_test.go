package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"go-credential-verifier/document"
	"go-credential-verifier/hashing"
	"go-credential-verifier/metrics"
	"go-credential-verifier/mrz"
	"go-credential-verifier/signature"
	"go-credential-verifier/verifier"
)

const testBaseURL = "http://localhost:8081"

var testConfig = ServerConfig{
	Host:           "localhost",
	Port:           8081,
	UseTls:         false,
	TlsCertPath:    "",
	TlsPrivKeyPath: "",
}

type stateOpt func(*ServerState)

func withMockDocuments() stateOpt {
	return func(s *ServerState) { s.mockDocuments = true }
}

func startTestServer(t *testing.T, storage ResultStorage, v CredentialVerifier, opts ...stateOpt) *ServerState {
	t.Helper()

	registry := prometheus.NewRegistry()
	testState := &ServerState{
		irmaServerURL: "https://irma.example",
		verifier:      v,
		resultStorage: storage,
		jwtCreator:    fakeJwtCreator{jwt: "test-jwt"},
		metrics:       metrics.New(registry),
		gatherer:      registry,
	}
	for _, opt := range opts {
		opt(testState)
	}

	srv, err := NewServer(testState, testConfig)
	require.NoError(t, err)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("server error: %v", err)
		}
	}()

	waitUntilHealthy(t, testBaseURL+"/api/health")
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Logf("error shutting down server: %v", err)
		}
	})
	return testState
}

func waitUntilHealthy(t *testing.T, url string) {
	t.Helper()
	const maxAttempts = 50
	for i := 0; i < maxAttempts; i++ {
		if resp, err := http.Get(url); err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not start in time")
}

func postJSON[T any](t *testing.T, url string, payload any) (*http.Response, []byte, *T) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	}
	resp, err := http.Post(url, "application/json", body)
	require.NoError(t, err)
	return readResponse[T](t, resp)
}

func getJSON[T any](t *testing.T, url string) (*http.Response, []byte, *T) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	return readResponse[T](t, resp)
}

func readResponse[T any](t *testing.T, resp *http.Response) (*http.Response, []byte, *T) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var v T
	_ = json.Unmarshal(respBody, &v)
	return resp, respBody, &v
}

func mustStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	require.Equalf(t, want, resp.StatusCode, "body: %s", body)
}

// scannedDocument is a self-consistent ECDSA passport as an android reader would
// deliver it.
func scannedDocument(t *testing.T) (*document.Record, map[string]any) {
	t.Helper()
	record, _, err := document.Synthesize(document.Params{
		Fields: mrz.Fields{
			Nationality:    "FRA",
			LastName:       "Dupont",
			FirstName:      "Jean",
			DocumentNumber: "AB1234567",
			BirthDate:      "900101",
			ExpiryDate:     "300101",
			Sex:            "M",
		},
		Kind:        mrz.Passport,
		Signature:   signature.Algorithm{Family: signature.ECDSA, Hash: hashing.SHA256, Curve: signature.CurveP256},
		CheckDigits: true,
	})
	require.NoError(t, err)

	hashes := map[string]string{}
	for tag, digest := range record.DataGroupHashes {
		hashes[strconv.Itoa(tag)] = hex.EncodeToString(digest)
	}
	encodedHashes, err := json.Marshal(hashes)
	require.NoError(t, err)
	block, _ := pem.Decode(record.DocumentSigningCertificate)
	require.NotNil(t, block)

	return record, map[string]any{
		"mrz":                        record.MRZ,
		"dataGroupHashes":            string(encodedHashes),
		"encapContent":               base64.StdEncoding.EncodeToString(record.EContent),
		"eContent":                   base64.StdEncoding.EncodeToString(record.SignedAttributes),
		"encryptedDigest":            base64.StdEncoding.EncodeToString(signature.FromSigned(record.Signature)),
		"documentSigningCertificate": base64.StdEncoding.EncodeToString(block.Bytes),
		"digestAlgorithm":            "SHA-256",
		"signerInfoDigestAlgorithm":  "sha256",
	}
}

// test doubles

type fakeJwtCreator struct{ jwt string }

func (f fakeJwtCreator) CreateDisclosureJwt(_ verifier.Result) (string, error) {
	return f.jwt, nil
}

type fakeVerifier struct {
	result verifier.Result
	err    error
}

func (f fakeVerifier) Verify(_ context.Context, attestationID verifier.AttestationID, _ verifier.Proof, _ []string, _ string) (*verifier.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := f.result
	result.AttestationID = attestationID
	return &result, nil
}

func testVerifyRequest() map[string]any {
	return map[string]any{
		"attestation_id":    1,
		"proof":             map[string]any{"a": []string{"1", "2"}, "b": [][]string{{"3", "4"}, {"5", "6"}}, "c": []string{"7", "8"}},
		"public_signals":    []string{"1", "2", "3"},
		"user_context_data": "00",
	}
}
