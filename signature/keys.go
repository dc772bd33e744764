package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v4"
)

const ecPrivateKeyVersion = 1

var oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

// SEC1 ECPrivateKey
type ecPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

type pkcs8PrivateKey struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// ParseECPrivateKeyPEM reads an EC private key from PEM or raw DER. The ECPrivateKey
// structure is decoded directly, so keys on brainpool curves load as well as NIST ones.
// PKCS#8 wrapped keys are unwrapped first.
func ParseECPrivateKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}

	var curveOID asn1.ObjectIdentifier
	var wrapped pkcs8PrivateKey
	if _, err := asn1.Unmarshal(der, &wrapped); err == nil && wrapped.Algo.Algorithm.Equal(oidPublicKeyECDSA) {
		if _, err := asn1.Unmarshal(wrapped.Algo.Parameters.FullBytes, &curveOID); err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#8 curve parameters: %w", err)
		}
		der = wrapped.PrivateKey
	}

	var raw ecPrivateKey
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse EC private key: %w", err)
	}
	if raw.Version != ecPrivateKeyVersion {
		return nil, fmt.Errorf("unknown EC private key version %d", raw.Version)
	}
	if len(raw.NamedCurveOID) > 0 {
		curveOID = raw.NamedCurveOID
	}
	if len(curveOID) == 0 {
		return nil, errors.New("EC private key does not name its curve")
	}

	_, curve, err := CurveByOID(curveOID)
	if err != nil {
		return nil, err
	}

	d := new(big.Int).SetBytes(raw.PrivateKey)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, errors.New("EC private key scalar out of range")
	}

	key := &ecdsa.PrivateKey{D: d}
	key.Curve = curve
	key.X, key.Y = curve.ScalarBaseMult(raw.PrivateKey)
	return key, nil
}

// MarshalECPrivateKeyPEM encodes key as a SEC1 "EC PRIVATE KEY" block.
func MarshalECPrivateKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	oid, err := curveOIDOf(key.Curve)
	if err != nil {
		return nil, err
	}
	size := (key.Curve.Params().N.BitLen() + 7) / 8
	point := elliptic.Marshal(key.Curve, key.X, key.Y)

	der, err := asn1.Marshal(ecPrivateKey{
		Version:       ecPrivateKeyVersion,
		PrivateKey:    key.D.FillBytes(make([]byte, size)),
		NamedCurveOID: oid,
		PublicKey:     asn1.BitString{Bytes: point, BitLength: 8 * len(point)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode EC private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// ParseRSAPrivateKeyPEM accepts PKCS#1 and PKCS#8 encoded RSA keys.
func ParseRSAPrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}
	return key, nil
}

// ParsePrivateKeyPEM dispatches on the key family named by alg.
func ParsePrivateKeyPEM(alg Algorithm, data []byte) (crypto.Signer, error) {
	switch alg.Family {
	case ECDSA:
		return ParseECPrivateKeyPEM(data)
	case RSA, RSAPSS:
		return ParseRSAPrivateKeyPEM(data)
	default:
		return nil, fmt.Errorf("unknown signature family %q", alg.Family)
	}
}

func MarshalPrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		return MarshalECPrivateKeyPEM(k)
	case *rsa.PrivateKey:
		return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)}), nil
	default:
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
}

// GenerateKey creates a fresh key for alg. Only the exponent 65537 can be generated.
func GenerateKey(alg Algorithm) (crypto.Signer, error) {
	if err := alg.Validate(); err != nil {
		return nil, err
	}
	switch alg.Family {
	case RSA, RSAPSS:
		if alg.Exponent != DefaultExponent {
			return nil, fmt.Errorf("cannot generate RSA keys with exponent %d", alg.Exponent)
		}
		key, err := rsa.GenerateKey(rand.Reader, alg.ModulusBits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		return key, nil
	case ECDSA:
		curve, err := CurveByName(alg.Curve)
		if err != nil {
			return nil, err
		}
		key, err := ecdsa.GenerateKey(curve, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate EC key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unknown signature family %q", alg.Family)
	}
}

func curveOIDOf(curve elliptic.Curve) (asn1.ObjectIdentifier, error) {
	name, err := CurveName(curve)
	if err != nil {
		return nil, err
	}
	return CurveOID(name)
}
