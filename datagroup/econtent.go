// Package datagroup hashes document data groups into the LDS security object
// (eContent) and builds the signed attribute set that commits to it.
package datagroup

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"sort"

	"go-credential-verifier/hashing"
)

const (
	MinTag = 1
	MaxTag = 16

	ldsVersion = 0
)

// Group is the raw content of one data group.
type Group struct {
	Tag  int
	Data []byte
}

// Hash is the digest of one data group as stored in eContent.
type Hash struct {
	Tag    int
	Digest []byte
}

type dataGroupHash struct {
	DataGroupNumber    int
	DataGroupHashValue []byte
}

type ldsSecurityObject struct {
	Version             int
	HashAlgorithm       pkix.AlgorithmIdentifier
	DataGroupHashValues []dataGroupHash
	LdsVersionInfo      asn1.RawValue `asn1:"optional"`
}

// DigestGroups hashes every group with alg and returns the digests in ascending tag order.
func DigestGroups(groups []Group, alg hashing.Algorithm) ([]Hash, error) {
	if err := alg.Check(hashing.FieldDG1); err != nil {
		return nil, err
	}

	hashes := make([]Hash, 0, len(groups))
	for _, g := range groups {
		digest, err := hashing.Sum(alg, g.Data)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, Hash{Tag: g.Tag, Digest: digest})
	}
	if err := sortHashes(hashes); err != nil {
		return nil, err
	}
	return hashes, nil
}

// HashGroups hashes the groups and encodes the result as eContent.
func HashGroups(groups []Group, alg hashing.Algorithm) ([]byte, error) {
	hashes, err := DigestGroups(groups, alg)
	if err != nil {
		return nil, err
	}
	return BuildEContent(hashes, alg)
}

// BuildEContent encodes precomputed digests as a DER LDS security object. The
// entries are written in ascending tag order whatever order they arrive in.
func BuildEContent(hashes []Hash, alg hashing.Algorithm) ([]byte, error) {
	if err := alg.Check(hashing.FieldDG1); err != nil {
		return nil, err
	}
	oid, err := hashing.OID(alg)
	if err != nil {
		return nil, err
	}

	sorted := make([]Hash, len(hashes))
	copy(sorted, hashes)
	if err := sortHashes(sorted); err != nil {
		return nil, err
	}

	size := hashing.Size(alg)
	obj := ldsSecurityObject{
		Version:       ldsVersion,
		HashAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oid},
	}
	for _, h := range sorted {
		if len(h.Digest) != size {
			return nil, fmt.Errorf("digest for DG%d has %d bytes, %s produces %d", h.Tag, len(h.Digest), alg, size)
		}
		obj.DataGroupHashValues = append(obj.DataGroupHashValues, dataGroupHash{
			DataGroupNumber:    h.Tag,
			DataGroupHashValue: h.Digest,
		})
	}

	out, err := asn1.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode eContent: %w", err)
	}
	return out, nil
}

// ParseEContent decodes an LDS security object into its algorithm and digests.
func ParseEContent(eContent []byte) (hashing.Algorithm, []Hash, error) {
	var obj ldsSecurityObject
	rest, err := asn1.Unmarshal(eContent, &obj)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode eContent: %w", err)
	}
	if len(rest) > 0 {
		return "", nil, fmt.Errorf("trailing %d bytes after eContent", len(rest))
	}

	alg, err := hashing.FromOID(obj.HashAlgorithm.Algorithm)
	if err != nil {
		return "", nil, &hashing.UnsupportedAlgorithmError{Field: hashing.FieldDG1, Algorithm: obj.HashAlgorithm.Algorithm.String()}
	}

	hashes := make([]Hash, 0, len(obj.DataGroupHashValues))
	for _, entry := range obj.DataGroupHashValues {
		hashes = append(hashes, Hash{Tag: entry.DataGroupNumber, Digest: entry.DataGroupHashValue})
	}
	return alg, hashes, nil
}

// Lookup returns the digest stored for tag, or nil.
func Lookup(hashes []Hash, tag int) []byte {
	for _, h := range hashes {
		if h.Tag == tag {
			return h.Digest
		}
	}
	return nil
}

func sortHashes(hashes []Hash) error {
	sort.SliceStable(hashes, func(i, j int) bool { return hashes[i].Tag < hashes[j].Tag })
	for i, h := range hashes {
		if h.Tag < MinTag || h.Tag > MaxTag {
			return fmt.Errorf("data group tag %d outside %d..%d", h.Tag, MinTag, MaxTag)
		}
		if i > 0 && hashes[i-1].Tag == h.Tag {
			return fmt.Errorf("duplicate data group DG%d", h.Tag)
		}
	}
	return nil
}
