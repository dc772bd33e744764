package certificate

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/gmrtd/gmrtd/oid"

	"go-credential-verifier/hashing"
	"go-credential-verifier/signature"
)

const x509v3 = 2

type certificateASN1 struct {
	TBSCertificate     asn1.RawValue
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

type tbsCertificate struct {
	Version            int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber       *big.Int
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Issuer             asn1.RawValue
	Validity           validity
	Subject            asn1.RawValue
	PublicKey          publicKeyInfo
}

type validity struct {
	NotBefore, NotAfter time.Time
}

type publicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

type pkcs1PublicKey struct {
	N *big.Int
	E int
}

type pssParameters struct {
	Hash         pkix.AlgorithmIdentifier `asn1:"explicit,tag:0,optional"`
	MGF          pkix.AlgorithmIdentifier `asn1:"explicit,tag:1,optional"`
	SaltLength   int                      `asn1:"explicit,tag:2,optional,default:20"`
	TrailerField int                      `asn1:"explicit,tag:3,optional,default:1"`
}

// Template holds the fields of a certificate that the caller chooses.
type Template struct {
	SerialNumber *big.Int
	Subject      pkix.Name
	NotBefore    time.Time
	NotAfter     time.Time
}

// CreateSelfSigned issues a certificate for signer's own public key, signed with alg.
func CreateSelfSigned(tmpl Template, alg signature.Algorithm, signer crypto.Signer) ([]byte, error) {
	return Create(tmpl, signer.Public(), tmpl.Subject, alg, signer)
}

// Create encodes a certificate for pub, issued by issuer and signed by signer under alg.
// RSA-PSS parameters and named curve OIDs are written explicitly so that Parse recovers
// the same algorithm.
func Create(tmpl Template, pub crypto.PublicKey, issuer pkix.Name, alg signature.Algorithm, signer crypto.Signer) ([]byte, error) {
	if signer == nil {
		return nil, fmt.Errorf("no signing key")
	}
	serial := tmpl.SerialNumber
	if serial == nil {
		var err error
		serial, err = rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
		if err != nil {
			return nil, fmt.Errorf("failed to generate serial number: %w", err)
		}
	}

	spki, err := marshalPublicKey(pub)
	if err != nil {
		return nil, err
	}
	sigAlg, err := signatureAlgorithmIdentifier(alg)
	if err != nil {
		return nil, err
	}
	issuerDER, err := asn1.Marshal(issuer.ToRDNSequence())
	if err != nil {
		return nil, fmt.Errorf("failed to encode issuer: %w", err)
	}
	subjectDER, err := asn1.Marshal(tmpl.Subject.ToRDNSequence())
	if err != nil {
		return nil, fmt.Errorf("failed to encode subject: %w", err)
	}

	tbs := tbsCertificate{
		Version:            x509v3,
		SerialNumber:       serial,
		SignatureAlgorithm: sigAlg,
		Issuer:             asn1.RawValue{FullBytes: issuerDER},
		Validity: validity{
			NotBefore: tmpl.NotBefore.UTC().Truncate(time.Second),
			NotAfter:  tmpl.NotAfter.UTC().Truncate(time.Second),
		},
		Subject:   asn1.RawValue{FullBytes: subjectDER},
		PublicKey: spki,
	}
	tbsDER, err := asn1.Marshal(tbs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode TBSCertificate: %w", err)
	}

	sig, err := signature.Sign(signer, alg, tbsDER)
	if err != nil {
		return nil, err
	}
	raw := signature.FromSigned(sig)

	der, err := asn1.Marshal(certificateASN1{
		TBSCertificate:     asn1.RawValue{FullBytes: tbsDER},
		SignatureAlgorithm: sigAlg,
		SignatureValue:     asn1.BitString{Bytes: raw, BitLength: 8 * len(raw)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode certificate: %w", err)
	}
	return der, nil
}

// EncodePEM wraps DER in CERTIFICATE armor.
func EncodePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func marshalPublicKey(pub crypto.PublicKey) (publicKeyInfo, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		keyDER, err := asn1.Marshal(pkcs1PublicKey{N: k.N, E: k.E})
		if err != nil {
			return publicKeyInfo{}, fmt.Errorf("failed to encode RSA public key: %w", err)
		}
		return publicKeyInfo{
			Algorithm: pkix.AlgorithmIdentifier{Algorithm: oid.OidRsaEncryption, Parameters: asn1.NullRawValue},
			PublicKey: asn1.BitString{Bytes: keyDER, BitLength: 8 * len(keyDER)},
		}, nil
	case *ecdsa.PublicKey:
		name, err := signature.CurveName(k.Curve)
		if err != nil {
			return publicKeyInfo{}, err
		}
		curveOID, err := signature.CurveOID(name)
		if err != nil {
			return publicKeyInfo{}, err
		}
		params, err := asn1.Marshal(curveOID)
		if err != nil {
			return publicKeyInfo{}, fmt.Errorf("failed to encode curve: %w", err)
		}
		point := elliptic.Marshal(k.Curve, k.X, k.Y)
		return publicKeyInfo{
			Algorithm: pkix.AlgorithmIdentifier{Algorithm: oid.OidEcPublicKey, Parameters: asn1.RawValue{FullBytes: params}},
			PublicKey: asn1.BitString{Bytes: point, BitLength: 8 * len(point)},
		}, nil
	default:
		return publicKeyInfo{}, fmt.Errorf("unsupported public key type %T", pub)
	}
}

func signatureAlgorithmIdentifier(alg signature.Algorithm) (pkix.AlgorithmIdentifier, error) {
	if err := alg.Hash.Check(hashing.FieldSignedAttr); err != nil {
		return pkix.AlgorithmIdentifier{}, err
	}

	switch alg.Family {
	case signature.RSAPSS:
		hashOID, err := hashing.OID(alg.Hash)
		if err != nil {
			return pkix.AlgorithmIdentifier{}, err
		}
		hashID := pkix.AlgorithmIdentifier{Algorithm: hashOID, Parameters: asn1.NullRawValue}
		mgfParams, err := asn1.Marshal(hashID)
		if err != nil {
			return pkix.AlgorithmIdentifier{}, fmt.Errorf("failed to encode MGF1 parameters: %w", err)
		}
		saltLength := alg.SaltLength
		if saltLength == signature.SaltLengthDigest {
			saltLength = hashing.Size(alg.Hash)
		}
		params, err := asn1.Marshal(pssParameters{
			Hash:         hashID,
			MGF:          pkix.AlgorithmIdentifier{Algorithm: oid.OidMgf1, Parameters: asn1.RawValue{FullBytes: mgfParams}},
			SaltLength:   saltLength,
			TrailerField: 1,
		})
		if err != nil {
			return pkix.AlgorithmIdentifier{}, fmt.Errorf("failed to encode PSS parameters: %w", err)
		}
		return pkix.AlgorithmIdentifier{Algorithm: oid.OidRsaSsaPss, Parameters: asn1.RawValue{FullBytes: params}}, nil
	case signature.RSA, signature.ECDSA:
		for _, known := range signatureOIDs {
			if known.family == alg.Family && known.hash == alg.Hash {
				id := pkix.AlgorithmIdentifier{Algorithm: known.oid}
				if alg.Family == signature.RSA {
					id.Parameters = asn1.NullRawValue
				}
				return id, nil
			}
		}
	}
	return pkix.AlgorithmIdentifier{}, fmt.Errorf("no certificate signature algorithm for %s", alg)
}
