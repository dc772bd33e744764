package models

import "go-credential-verifier/document"

// NormalizeRequest carries either a native scanner payload (Platform and Payload)
// or a raw chip read (Chip).
type NormalizeRequest struct {
	Platform string             `json:"platform,omitempty"`
	Payload  map[string]any     `json:"payload,omitempty"`
	Chip     *document.ChipRead `json:"chip,omitempty"`
}

type NormalizeResponse struct {
	Record *document.Record `json:"record"`
	Kind   string           `json:"kind"`
}

// MockDocumentRequest describes a synthetic document. Empty fields take the
// defaults of the mock holder.
type MockDocumentRequest struct {
	Kind               string `json:"kind"`
	SignatureAlgorithm string `json:"signature_algorithm"`
	Nationality        string `json:"nationality,omitempty"`
	LastName           string `json:"last_name,omitempty"`
	FirstName          string `json:"first_name,omitempty"`
	DocumentNumber     string `json:"document_number,omitempty"`
	BirthDate          string `json:"birth_date,omitempty"`
	ExpiryDate         string `json:"expiry_date,omitempty"`
	Sex                string `json:"sex,omitempty"`
}
