package models

import "go-credential-verifier/verifier"

type VerifyRequest struct {
	AttestationID   verifier.AttestationID `json:"attestation_id"`
	Proof           verifier.Proof         `json:"proof"`
	PublicSignals   []string               `json:"public_signals"`
	UserContextData string                 `json:"user_context_data"`
}

type VerifyResponse struct {
	SessionId string          `json:"session_id"`
	Result    verifier.Result `json:"result"`
}

// ConfigMismatchResponse is returned with status 400 when a proof does not match
// the verifier's configuration or the relying party's policy.
type ConfigMismatchResponse struct {
	Error  string           `json:"error"`
	Issues []verifier.Issue `json:"issues"`
}
