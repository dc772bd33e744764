// Package signature signs and verifies the signed attributes of a travel document
// under RSA, RSA-PSS or ECDSA and converts signatures to the signed-byte form used
// by the proof circuits.
package signature

import (
	"fmt"
	"strconv"
	"strings"

	"go-credential-verifier/hashing"
)

type Family string

const (
	RSA    Family = "rsa"
	RSAPSS Family = "rsapss"
	ECDSA  Family = "ecdsa"
)

const (
	DefaultExponent    = 65537
	DefaultModulusBits = 2048
)

// SaltLengthDigest asks for a PSS salt as long as the digest. A SaltLength of 0
// is an empty salt.
const SaltLengthDigest = -1

// Algorithm identifies how a document signer produced its signature. Exponent and
// ModulusBits apply to the RSA families, SaltLength to RSA-PSS only, Curve to ECDSA.
type Algorithm struct {
	Family      Family
	Hash        hashing.Algorithm
	Exponent    int
	ModulusBits int
	Curve       string
	SaltLength  int
}

// String renders the algorithm in the underscore form accepted by ParseAlgorithm,
// for example rsa_sha256_65537_2048, rsapss_sha256_65537_2048_32 or
// ecdsa_sha384_brainpoolP384r1.
func (a Algorithm) String() string {
	switch a.Family {
	case RSA:
		return fmt.Sprintf("%s_%s_%d_%d", a.Family, a.Hash, a.Exponent, a.ModulusBits)
	case RSAPSS:
		return fmt.Sprintf("%s_%s_%d_%d_%d", a.Family, a.Hash, a.Exponent, a.ModulusBits, a.SaltLength)
	case ECDSA:
		return fmt.Sprintf("%s_%s_%s", a.Family, a.Hash, a.Curve)
	default:
		return string(a.Family)
	}
}

// Validate checks that the parameters needed by the family are present.
func (a Algorithm) Validate() error {
	if err := a.Hash.Check(hashing.FieldSignedAttr); err != nil {
		return err
	}
	switch a.Family {
	case RSA, RSAPSS:
		if a.ModulusBits < 1024 {
			return fmt.Errorf("RSA modulus of %d bits is too small", a.ModulusBits)
		}
		if a.Exponent < 3 || a.Exponent%2 == 0 {
			return fmt.Errorf("invalid RSA exponent %d", a.Exponent)
		}
		if a.Family == RSAPSS && a.SaltLength < SaltLengthDigest {
			return fmt.Errorf("invalid PSS salt length %d", a.SaltLength)
		}
	case ECDSA:
		if _, err := CurveByName(a.Curve); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown signature family %q", a.Family)
	}
	return nil
}

// ParseAlgorithm reads the String form. Omitted RSA parameters default to
// 65537 / 2048 bits and an omitted PSS salt length defaults to the digest size.
func ParseAlgorithm(name string) (Algorithm, error) {
	parts := strings.Split(strings.TrimSpace(name), "_")
	if len(parts) < 2 {
		return Algorithm{}, fmt.Errorf("invalid signature algorithm %q", name)
	}

	hash, err := hashing.Parse(parts[1])
	if err != nil {
		return Algorithm{}, &hashing.UnsupportedAlgorithmError{Field: hashing.FieldSignedAttr, Algorithm: parts[1]}
	}
	alg := Algorithm{Family: Family(strings.ToLower(parts[0])), Hash: hash}

	switch alg.Family {
	case RSA, RSAPSS:
		alg.Exponent = DefaultExponent
		alg.ModulusBits = DefaultModulusBits
		ints := make([]int, 0, 3)
		for _, p := range parts[2:] {
			n, err := strconv.Atoi(p)
			if err != nil {
				return Algorithm{}, fmt.Errorf("invalid parameter %q in %q", p, name)
			}
			ints = append(ints, n)
		}
		if len(ints) > 0 {
			alg.Exponent = ints[0]
		}
		if len(ints) > 1 {
			alg.ModulusBits = ints[1]
		}
		if alg.Family == RSAPSS {
			alg.SaltLength = hashing.Size(hash)
			if len(ints) > 2 {
				alg.SaltLength = ints[2]
			}
		}
	case ECDSA:
		if len(parts) < 3 {
			return Algorithm{}, fmt.Errorf("missing curve in %q", name)
		}
		curve, err := CanonicalCurveName(parts[2])
		if err != nil {
			return Algorithm{}, err
		}
		alg.Curve = curve
	default:
		return Algorithm{}, fmt.Errorf("unknown signature family %q", parts[0])
	}

	if err := alg.Validate(); err != nil {
		return Algorithm{}, err
	}
	return alg, nil
}
