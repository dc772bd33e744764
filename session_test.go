package main

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

var sessionIdPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestGenerateNonce(t *testing.T) {
	for _, size := range []int{0, 8, 16, 32} {
		nonce, err := GenerateNonce(size)
		require.NoError(t, err)
		// each byte is represented by 2 hex characters
		require.Len(t, nonce, 2*size)

		raw, err := hex.DecodeString(nonce)
		require.NoError(t, err)
		require.Len(t, raw, size)
	}
}

func TestSessionIdFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		sessionId := GenerateSessionId()
		require.Regexp(t, sessionIdPattern, sessionId)

		_, duplicate := seen[sessionId]
		require.False(t, duplicate, "session id %s generated twice", sessionId)
		seen[sessionId] = struct{}{}
	}
}

func TestSessionIdRoutesToStoredResult(t *testing.T) {
	ctx := context.Background()
	storage := NewInMemoryResultStorage()
	sessionId := GenerateSessionId()
	require.NoError(t, storage.StoreResult(ctx, sessionId, StoredResult{Result: validResult()}))

	var routed string
	router := mux.NewRouter()
	router.HandleFunc("/api/verification/{sessionId}", func(w http.ResponseWriter, r *http.Request) {
		routed = mux.Vars(r)["sessionId"]
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/verification/"+sessionId, nil))
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, sessionId, routed)

	stored, err := storage.RetrieveResult(ctx, routed)
	require.NoError(t, err)
	require.True(t, stored.Result.IsValidDetails.IsValid)
}
