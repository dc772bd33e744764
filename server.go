package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/swaggo/swag"

	"go-credential-verifier/docs"
	"go-credential-verifier/document"
	"go-credential-verifier/metrics"
	"go-credential-verifier/models"
	"go-credential-verifier/mrz"
	"go-credential-verifier/signature"
	"go-credential-verifier/verifier"
)

const ErrorInternal = "error:internal"
const ERR_MARSHAL = "failed to marshal response message"
const ERR_INVALID_REQUEST = "invalid request"
const ERR_JWT_CREATION = "failed to create jwt"
const ERR_RESULT_STORAGE = "failed to store verification result"
const ERR_RESULT_RETRIEVAL = "failed to get verification result from storage"
const ERR_RESULT_REMOVAL = "failed to remove verification result from storage"
const ERR_RESULT_NOT_FOUND = "verification result not found"
const ERR_PROOF_NOT_VALID = "proof is not valid"
const ERR_DOCUMENT_INVALID = "document validation failed"

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
}

// CredentialVerifier is implemented by *verifier.Verifier.
type CredentialVerifier interface {
	Verify(ctx context.Context, attestationID verifier.AttestationID, proof verifier.Proof, publicSignals []string, userContextData string) (*verifier.Result, error)
}

type ServerState struct {
	irmaServerURL      string
	verifier           CredentialVerifier
	resultStorage      ResultStorage
	jwtCreator         JwtCreator
	metrics            *metrics.Metrics
	gatherer           prometheus.Gatherer
	corsAllowedOrigins []string
	mockDocuments      bool
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Health check request received")
		err := json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		if err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	})

	router.HandleFunc("/api/verify", func(w http.ResponseWriter, r *http.Request) {
		handleVerify(state, w, r)
	})
	router.HandleFunc("/api/verification/{sessionId}", func(w http.ResponseWriter, r *http.Request) {
		handleGetVerification(state, w, r)
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/issue", func(w http.ResponseWriter, r *http.Request) {
		handleIssue(state, w, r)
	})
	router.HandleFunc("/api/documents/normalize", func(w http.ResponseWriter, r *http.Request) {
		handleNormalizeDocument(state, w, r)
	})
	if state.mockDocuments {
		router.HandleFunc("/api/documents/mock", func(w http.ResponseWriter, r *http.Request) {
			handleMockDocument(state, w, r)
		})
	}
	router.HandleFunc("/api/swagger.json", handleSwagger).Methods(http.MethodGet)

	gatherer := state.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	slog.Debug("Registered all API routes")

	corsOptions := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
	if len(state.corsAllowedOrigins) > 0 {
		corsOptions.AllowedOrigins = state.corsAllowedOrigins
	}

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler: cors.New(corsOptions).Handler(router),
		Addr:    addr,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

// handleVerify godoc
// @Summary Verify a disclosure proof
// @Tags verification
// @Accept json
// @Produce json
// @Param request body models.VerifyRequest true "Proof and public signals"
// @Success 200 {object} models.VerifyResponse
// @Failure 400 {object} models.ConfigMismatchResponse
// @Router /api/verify [post]
func handleVerify(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var request models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "failed to decode verify request", err)
		return
	}

	slog.Info("Received request to verify a disclosure proof", "attestation_id", request.AttestationID)

	result, err := state.verifier.Verify(r.Context(), request.AttestationID, request.Proof, request.PublicSignals, request.UserContextData)
	if err != nil {
		respondWithVerifyErr(w, err)
		return
	}

	sessionId := GenerateSessionId()
	if sessionId == "" {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to generate session ID", fmt.Errorf("failed to generate session ID"))
		return
	}

	stored := StoredResult{Result: *result, VerifiedAt: time.Now().UTC()}
	if err := state.resultStorage.StoreResult(r.Context(), sessionId, stored); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_RESULT_STORAGE, err)
		return
	}

	response := models.VerifyResponse{
		SessionId: sessionId,
		Result:    *result,
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Disclosure proof verified", "session_id", sessionId, "attestation_id", request.AttestationID, "valid", result.IsValidDetails.IsValid)
}

// respondWithVerifyErr maps verifier errors to status codes. Configuration
// mismatches carry their issues in the body.
func respondWithVerifyErr(w http.ResponseWriter, err error) {
	var mismatch *verifier.ConfigMismatchError
	var registryErr *verifier.RegistryContractError
	var verifierErr *verifier.VerifierContractError
	var externalErr *verifier.ExternalServiceError

	switch {
	case errors.As(err, &mismatch):
		slog.Warn("Proof does not match configuration", "issues", len(mismatch.Issues), "error", err)
		response := models.ConfigMismatchResponse{Error: "config mismatch", Issues: mismatch.Issues}
		if werr := writeJSON(w, http.StatusBadRequest, response); werr != nil {
			respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, werr)
		}
	case errors.As(err, &registryErr), errors.As(err, &verifierErr):
		respondWithErr(w, http.StatusBadGateway, "contract not found", "failed to resolve contract", err)
	case errors.As(err, &externalErr):
		respondWithErr(w, http.StatusGatewayTimeout, "external service timeout", "external service did not respond", err)
	case errors.Is(err, verifier.ErrInvalidInput):
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "rejected verify input", err)
	default:
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to verify proof", err)
	}
}

func handleGetVerification(state *ServerState, w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["sessionId"]
	slog.Debug("Received request for verification result", "session_id", sessionId)

	stored, err := state.resultStorage.RetrieveResult(r.Context(), sessionId)
	if errors.Is(err, ErrResultNotFound) {
		respondWithErr(w, http.StatusNotFound, ERR_RESULT_NOT_FOUND, ERR_RESULT_NOT_FOUND, err)
		return
	}
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_RESULT_RETRIEVAL, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, stored); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func handleIssue(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var request models.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "failed to decode issue request", err)
		return
	}

	slog.Info("Received request to issue a credential", "session_id", request.SessionId)

	stored, err := state.resultStorage.RetrieveResult(r.Context(), request.SessionId)
	if errors.Is(err, ErrResultNotFound) {
		respondWithErr(w, http.StatusNotFound, ERR_RESULT_NOT_FOUND, ERR_RESULT_NOT_FOUND, err)
		return
	}
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_RESULT_RETRIEVAL, err)
		return
	}

	if !stored.Result.IsValidDetails.IsValid {
		respondWithErr(w, http.StatusBadRequest, ERR_PROOF_NOT_VALID, ERR_PROOF_NOT_VALID, nil)
		return
	}

	jwt, err := state.jwtCreator.CreateDisclosureJwt(stored.Result)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ERR_JWT_CREATION, ERR_JWT_CREATION, err)
		return
	}

	// a verification is issued at most once
	if err := state.resultStorage.RemoveResult(r.Context(), request.SessionId); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_RESULT_REMOVAL, err)
		return
	}

	response := models.IssueResponse{
		Jwt:           jwt,
		IrmaServerURL: state.irmaServerURL,
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Credential issued successfully", "session_id", request.SessionId)
}

func handleNormalizeDocument(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var request models.NormalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "failed to decode normalize request", err)
		return
	}

	record, source, err := normalizeDocument(request)
	var mismatch *document.HashMismatchError
	if errors.As(err, &mismatch) {
		state.metrics.IncrementDocument(source, "rejected")
		respondWithErr(w, http.StatusBadRequest, ERR_DOCUMENT_INVALID, ERR_DOCUMENT_INVALID, err)
		return
	}
	if err != nil {
		state.metrics.IncrementDocument(source, "malformed")
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "failed to normalize document", err)
		return
	}

	if err := document.Validate(record); err != nil {
		state.metrics.IncrementDocument(source, "rejected")
		respondWithErr(w, http.StatusBadRequest, ERR_DOCUMENT_INVALID, ERR_DOCUMENT_INVALID, err)
		return
	}
	if err := document.VerifySignature(record); err != nil {
		state.metrics.IncrementDocument(source, "rejected")
		respondWithErr(w, http.StatusBadRequest, ERR_DOCUMENT_INVALID, "document signature check failed", err)
		return
	}
	state.metrics.IncrementDocument(source, "ok")

	response := models.NormalizeResponse{
		Record: record,
		Kind:   record.Kind().String(),
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Document normalized", "source", source, "document_type", record.DocumentType)
}

func normalizeDocument(request models.NormalizeRequest) (*document.Record, string, error) {
	if request.Chip != nil {
		record, err := document.FromSOD(*request.Chip)
		return record, "chip", err
	}

	platform, err := document.ParsePlatform(request.Platform)
	if err != nil {
		return nil, "unknown", err
	}
	if request.Payload == nil {
		return nil, string(platform), fmt.Errorf("missing scanner payload")
	}
	record, err := document.FromScan(platform, request.Payload)
	return record, string(platform), err
}

var mockHolder = mrz.Fields{
	Nationality:    "FRA",
	LastName:       "DUPONT",
	FirstName:      "ALPHONSE HUGHUES ALBERT",
	DocumentNumber: "15AA81234",
	BirthDate:      "640312",
	ExpiryDate:     "321031",
	Sex:            "M",
}

func handleMockDocument(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var request models.MockDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "failed to decode mock document request", err)
		return
	}

	params, err := mockParams(request)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "invalid mock document request", err)
		return
	}

	record, _, err := document.Synthesize(params)
	if err != nil {
		state.metrics.IncrementDocument("synthesized", "error")
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "failed to synthesize document", err)
		return
	}
	state.metrics.IncrementDocument("synthesized", "ok")

	response := models.NormalizeResponse{
		Record: record,
		Kind:   record.Kind().String(),
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func mockParams(request models.MockDocumentRequest) (document.Params, error) {
	var kind mrz.Kind
	switch request.Kind {
	case "", "passport":
		kind = mrz.Passport
	case "id_card":
		kind = mrz.IDCard
	default:
		return document.Params{}, fmt.Errorf("unknown document kind %q", request.Kind)
	}

	algName := request.SignatureAlgorithm
	if algName == "" {
		algName = "rsa_sha256_65537_2048"
	}
	alg, err := signature.ParseAlgorithm(algName)
	if err != nil {
		return document.Params{}, err
	}

	fields := mockHolder
	override := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}
	override(&fields.Nationality, request.Nationality)
	override(&fields.LastName, request.LastName)
	override(&fields.FirstName, request.FirstName)
	override(&fields.DocumentNumber, request.DocumentNumber)
	override(&fields.BirthDate, request.BirthDate)
	override(&fields.ExpiryDate, request.ExpiryDate)
	override(&fields.Sex, request.Sex)

	return document.Params{
		Fields:    fields,
		Kind:      kind,
		Signature: alg,
		Mock:      true,
	}, nil
}

func handleSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "failed to read swagger doc", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(doc)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

func GenerateSessionId() string {
	sessionId, err := GenerateNonce(16)
	if err != nil {
		slog.Error("failed to generate session ID", "error", err)
		return ""
	}
	slog.Debug("Session ID generated successfully", "session_id", sessionId)
	return sessionId
}

// GenerateNonce Generates a random nonce
func GenerateNonce(i int) (string, error) {
	nonce := make([]byte, i)
	if _, err := rand.Read(nonce); err != nil {
		slog.Error("failed to generate nonce", "error", err)
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	hexString := hex.EncodeToString(nonce)
	slog.Debug("Nonce generated successfully", "length", i)
	return hexString, nil
}

func respondWithErr(w http.ResponseWriter, code int, responseBody string, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "response_body", responseBody)
	w.WriteHeader(code)
	if _, err := w.Write([]byte(responseBody)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

// helpers ------------

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}

}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	} else {
		slog.Debug("JSON response written successfully", "status_code", status, "payload_size", len(payload))
	}
	return nil
}
