// Package document builds and checks DocumentRecords, the canonical form of a scanned
// or synthesized identity document that proof generation consumes.
package document

import (
	"fmt"
	"sort"

	"go-credential-verifier/hashing"
	"go-credential-verifier/mrz"
)

type DocumentType string

const (
	TypePassport     DocumentType = "passport"
	TypeIDCard       DocumentType = "id_card"
	TypeAadhaar      DocumentType = "aadhaar"
	TypeMockPassport DocumentType = "mock_passport"
	TypeMockIDCard   DocumentType = "mock_id_card"
)

type Category string

const (
	CategoryPassport Category = "passport"
	CategoryIDCard   Category = "id_card"
	CategoryAadhaar  Category = "aadhaar"
)

// Metadata names the hash algorithm behind each link of the digest chain.
type Metadata struct {
	DG1HashAlgo        hashing.Algorithm `json:"dg1HashAlgo"`
	EContentHashAlgo   hashing.Algorithm `json:"eContentHashAlgo"`
	SignedAttrHashAlgo hashing.Algorithm `json:"signedAttrHashAlgo"`
}

// Check reports the first metadata entry that is missing or unsupported.
func (m Metadata) Check() error {
	if err := m.DG1HashAlgo.Check(hashing.FieldDG1); err != nil {
		return err
	}
	if err := m.EContentHashAlgo.Check(hashing.FieldEContent); err != nil {
		return err
	}
	return m.SignedAttrHashAlgo.Check(hashing.FieldSignedAttr)
}

// Record is one identity document in the form proof generation consumes.
// Records are built once and not modified afterwards.
type Record struct {
	MRZ                        string         `json:"mrz"`
	DocumentSigningCertificate []byte         `json:"dsc"`
	DataGroupHashes            map[int][]byte `json:"dgHashes"`
	EContent                   []byte         `json:"eContent"`
	SignedAttributes           []byte         `json:"signedAttr"`
	Signature                  []int8         `json:"encryptedDigest"`
	DocumentType               DocumentType   `json:"documentType"`
	DocumentCategory           Category       `json:"documentCategory"`
	IsMock                     bool           `json:"mock"`
	Metadata                   Metadata       `json:"metadata"`
}

// Kind classifies the record by MRZ length.
func (r *Record) Kind() mrz.Kind {
	return mrz.KindOf(r.MRZ)
}

// PresentGroups lists the data group tags with a stored digest, ascending.
func (r *Record) PresentGroups() []int {
	tags := make([]int, 0, len(r.DataGroupHashes))
	for tag, digest := range r.DataGroupHashes {
		if len(digest) > 0 {
			tags = append(tags, tag)
		}
	}
	sort.Ints(tags)
	return tags
}

// TypeFor maps an MRZ kind to the document type and category.
func TypeFor(kind mrz.Kind, mock bool) (DocumentType, Category) {
	switch {
	case kind == mrz.Passport && mock:
		return TypeMockPassport, CategoryPassport
	case kind == mrz.Passport:
		return TypePassport, CategoryPassport
	case mock:
		return TypeMockIDCard, CategoryIDCard
	default:
		return TypeIDCard, CategoryIDCard
	}
}

// MalformedScanError is returned when a native scanner payload lacks a mandatory
// field or carries it in the wrong shape.
type MalformedScanError struct {
	Platform Platform
	Field    string
	Reason   string
}

func (e *MalformedScanError) Error() string {
	return fmt.Sprintf("malformed %s scan: field %s %s", e.Platform, e.Field, e.Reason)
}

// HashMismatchError reports a broken link in the digest chain. Field is one of
// the hashing field names and Tag the data group involved, if any.
type HashMismatchError struct {
	Field string
	Tag   int
}

func (e *HashMismatchError) Error() string {
	if e.Tag > 0 {
		return fmt.Sprintf("%s hash mismatch for DG%d", e.Field, e.Tag)
	}
	return fmt.Sprintf("%s hash mismatch", e.Field)
}
