// Package hashing maps the digest algorithms used by travel documents to their
// Go implementations, object identifiers and digest sizes.
package hashing

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"fmt"
	"strings"
)

type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA224 Algorithm = "sha224"
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
)

// Field names used to tag which part of a document record carries an invalid algorithm.
const (
	FieldDG1        = "dg1"
	FieldEContent   = "eContent"
	FieldSignedAttr = "signedAttr"
)

var all = []Algorithm{SHA1, SHA224, SHA256, SHA384, SHA512}

var oids = map[Algorithm]asn1.ObjectIdentifier{
	SHA1:   {1, 3, 14, 3, 2, 26},
	SHA224: {2, 16, 840, 1, 101, 3, 4, 2, 4},
	SHA256: {2, 16, 840, 1, 101, 3, 4, 2, 1},
	SHA384: {2, 16, 840, 1, 101, 3, 4, 2, 2},
	SHA512: {2, 16, 840, 1, 101, 3, 4, 2, 3},
}

var cryptoHashes = map[Algorithm]crypto.Hash{
	SHA1:   crypto.SHA1,
	SHA224: crypto.SHA224,
	SHA256: crypto.SHA256,
	SHA384: crypto.SHA384,
	SHA512: crypto.SHA512,
}

// UnsupportedAlgorithmError is returned for any digest algorithm outside the supported set.
// Field names the record metadata entry the algorithm came from, if any.
type UnsupportedAlgorithmError struct {
	Field     string
	Algorithm string
}

func (e *UnsupportedAlgorithmError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unsupported hash algorithm %q", e.Algorithm)
	}
	return fmt.Sprintf("unsupported hash algorithm %q for %s", e.Algorithm, e.Field)
}

// Parse normalises names like "SHA-256", "sha256" or "SHA256" into an Algorithm.
func Parse(name string) (Algorithm, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	alg := Algorithm(normalized)
	if !alg.Valid() {
		return "", &UnsupportedAlgorithmError{Algorithm: name}
	}
	return alg, nil
}

func (a Algorithm) Valid() bool {
	_, ok := cryptoHashes[a]
	return ok
}

func (a Algorithm) String() string {
	return string(a)
}

// Check returns an UnsupportedAlgorithmError tagged with field when a is not supported.
func (a Algorithm) Check(field string) error {
	if !a.Valid() {
		return &UnsupportedAlgorithmError{Field: field, Algorithm: string(a)}
	}
	return nil
}

// Sum hashes data with the given algorithm.
func Sum(alg Algorithm, data []byte) ([]byte, error) {
	switch alg {
	case SHA1:
		h := sha1.Sum(data)
		return h[:], nil
	case SHA224:
		h := sha256.Sum224(data)
		return h[:], nil
	case SHA256:
		h := sha256.Sum256(data)
		return h[:], nil
	case SHA384:
		h := sha512.Sum384(data)
		return h[:], nil
	case SHA512:
		h := sha512.Sum512(data)
		return h[:], nil
	default:
		return nil, &UnsupportedAlgorithmError{Algorithm: string(alg)}
	}
}

// Size returns the digest length in bytes, or 0 for an unsupported algorithm.
func Size(alg Algorithm) int {
	h, ok := cryptoHashes[alg]
	if !ok {
		return 0
	}
	return h.Size()
}

func CryptoHash(alg Algorithm) (crypto.Hash, error) {
	h, ok := cryptoHashes[alg]
	if !ok {
		return 0, &UnsupportedAlgorithmError{Algorithm: string(alg)}
	}
	return h, nil
}

func OID(alg Algorithm) (asn1.ObjectIdentifier, error) {
	oid, ok := oids[alg]
	if !ok {
		return nil, &UnsupportedAlgorithmError{Algorithm: string(alg)}
	}
	return oid, nil
}

func FromOID(oid asn1.ObjectIdentifier) (Algorithm, error) {
	for alg, candidate := range oids {
		if candidate.Equal(oid) {
			return alg, nil
		}
	}
	return "", &UnsupportedAlgorithmError{Algorithm: oid.String()}
}

// FromDigestSize guesses the algorithm that produced a digest of n bytes.
func FromDigestSize(n int) (Algorithm, error) {
	for _, alg := range all {
		if Size(alg) == n {
			return alg, nil
		}
	}
	return "", &UnsupportedAlgorithmError{Algorithm: fmt.Sprintf("%d-byte digest", n)}
}

// All lists the supported algorithms from weakest to strongest.
func All() []Algorithm {
	out := make([]Algorithm, len(all))
	copy(out, all)
	return out
}
