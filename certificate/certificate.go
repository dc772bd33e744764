// Package certificate reads document signing certificates. Parsing goes through the
// gmrtd cms package rather than crypto/x509 so that certificates with brainpool keys,
// explicit curve domains and RSA-PSS parameters can be handled.
package certificate

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gmrtd/gmrtd/cms"
	"github.com/gmrtd/gmrtd/cryptoutils"
	"github.com/gmrtd/gmrtd/oid"
	"github.com/gmrtd/gmrtd/utils"

	"go-credential-verifier/hashing"
	"go-credential-verifier/signature"
)

type signatureOID struct {
	oid    asn1.ObjectIdentifier
	family signature.Family
	hash   hashing.Algorithm
}

var signatureOIDs = []signatureOID{
	{oid.OidSha1WithRsaEncryption, signature.RSA, hashing.SHA1},
	{oid.OidSha224WithRSAEncryption, signature.RSA, hashing.SHA224},
	{oid.OidSha256WithRSAEncryption, signature.RSA, hashing.SHA256},
	{oid.OidSha384WithRSAEncryption, signature.RSA, hashing.SHA384},
	{oid.OidSha512WithRSAEncryption, signature.RSA, hashing.SHA512},
	{oid.OidEcdsaWithSHA1, signature.ECDSA, hashing.SHA1},
	{oid.OidEcdsaWithSHA224, signature.ECDSA, hashing.SHA224},
	{oid.OidEcdsaWithSHA256, signature.ECDSA, hashing.SHA256},
	{oid.OidEcdsaWithSHA384, signature.ECDSA, hashing.SHA384},
	{oid.OidEcdsaWithSHA512, signature.ECDSA, hashing.SHA512},
}

const defaultPSSSaltLength = 20

// CertificateParseError is returned for certificates that cannot be decoded or
// whose public key algorithm is not recognised.
type CertificateParseError struct {
	Reason string
	Err    error
}

func (e *CertificateParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse certificate: %s: %v", e.Reason, e.Err)
	}
	return "failed to parse certificate: " + e.Reason
}

func (e *CertificateParseError) Unwrap() error {
	return e.Err
}

// Certificate is the parsed view of a document signing certificate.
type Certificate struct {
	Raw               []byte
	RawTBSCertificate []byte
	SerialNumber      *big.Int
	Subject           pkix.Name
	Issuer            pkix.Name
	RawIssuer         []byte
	RawSubject        []byte
	NotBefore         time.Time
	NotAfter          time.Time

	// Algorithm describes the key: family and key parameters come from the public key,
	// the hash and PSS salt length are taken from the certificate's own signature
	// algorithm.
	Algorithm signature.Algorithm
	PublicKey crypto.PublicKey

	SignatureAlgorithm cms.AlgorithmIdentifier
	Signature          []byte
}

// Parse decodes a certificate given as DER, PEM, or a base64 body without armor.
func Parse(certBytes []byte) (*Certificate, error) {
	der, err := toDER(certBytes)
	if err != nil {
		return nil, err
	}

	certs, err := cms.ParseCertificates(der)
	if err != nil {
		return nil, &CertificateParseError{Reason: "malformed certificate", Err: err}
	}
	if len(certs) != 1 {
		return nil, &CertificateParseError{Reason: fmt.Sprintf("expected one certificate, found %d", len(certs))}
	}
	parsed := certs[0]
	tbs := parsed.TbsCertificate

	cert := &Certificate{
		Raw:                parsed.Raw,
		RawTBSCertificate:  tbs.Raw,
		SerialNumber:       tbs.SerialNumber,
		RawIssuer:          tbs.Issuer.FullBytes,
		RawSubject:         tbs.Subject.FullBytes,
		SignatureAlgorithm: parsed.SignatureAlgorithm,
		Signature:          parsed.SignatureValue.RightAlign(),
	}
	if cert.NotBefore, err = parseTime(tbs.Validity.NotBefore); err != nil {
		return nil, err
	}
	if cert.NotAfter, err = parseTime(tbs.Validity.NotAfter); err != nil {
		return nil, err
	}
	if err := parseName(tbs.Subject.FullBytes, &cert.Subject); err != nil {
		return nil, err
	}
	if err := parseName(tbs.Issuer.FullBytes, &cert.Issuer); err != nil {
		return nil, err
	}

	used, err := cert.SignatureAlgorithmUsed()
	if err != nil {
		return nil, err
	}
	spki, err := cms.Asn1decodeSubjectPublicKeyInfo(tbs.SubjectPublicKeyInfo.FullBytes)
	if err != nil {
		return nil, &CertificateParseError{Reason: "malformed SubjectPublicKeyInfo", Err: err}
	}
	if err := parsePublicKey(cert, spki, used); err != nil {
		return nil, err
	}
	return cert, nil
}

// SignatureAlgorithmUsed returns the algorithm the issuer used to sign this
// certificate, without curve information. Unknown algorithms are reported as
// hashing.UnsupportedAlgorithmError.
func (c *Certificate) SignatureAlgorithmUsed() (signature.Algorithm, error) {
	id := c.SignatureAlgorithm
	if id.Algorithm.Equal(oid.OidRsaSsaPss) {
		return parsePSSParameters(id)
	}

	family, ok := familyOf(id.Algorithm)
	if !ok {
		return signature.Algorithm{}, &hashing.UnsupportedAlgorithmError{Algorithm: id.Algorithm.String()}
	}
	digestOID, err := id.DetermineDigestAlgFromSigAlg()
	if err != nil {
		return signature.Algorithm{}, &hashing.UnsupportedAlgorithmError{Algorithm: id.Algorithm.String()}
	}
	hash, err := hashing.FromOID(*digestOID)
	if err != nil {
		return signature.Algorithm{}, err
	}
	return signature.Algorithm{Family: family, Hash: hash}, nil
}

// CheckSignatureFrom verifies that parent's key signed c.
func (c *Certificate) CheckSignatureFrom(parent *Certificate) error {
	if parent == nil {
		return fmt.Errorf("no issuer certificate")
	}
	if !bytes.Equal(c.RawIssuer, parent.RawSubject) {
		return fmt.Errorf("issuer %q does not match %q", c.Issuer.String(), parent.Subject.String())
	}
	alg, err := c.SignatureAlgorithmUsed()
	if err != nil {
		return err
	}
	return signature.Verify(parent.PublicKey, alg, c.RawTBSCertificate, signature.ToSigned(c.Signature))
}

// ValidAt reports whether t lies inside the validity period.
func (c *Certificate) ValidAt(t time.Time) bool {
	return !t.Before(c.NotBefore) && !t.After(c.NotAfter)
}

func toDER(certBytes []byte) ([]byte, error) {
	if len(certBytes) > 0 && certBytes[0] == 0x30 {
		return certBytes, nil
	}
	trimmed := bytes.TrimSpace(certBytes)
	if len(trimmed) == 0 {
		return nil, &CertificateParseError{Reason: "empty certificate"}
	}
	if bytes.Contains(trimmed, []byte("-----BEGIN")) {
		block, _ := pem.Decode(trimmed)
		if block == nil {
			return nil, &CertificateParseError{Reason: "invalid PEM armor"}
		}
		return block.Bytes, nil
	}
	body := strings.Join(strings.Fields(string(trimmed)), "")
	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, &CertificateParseError{Reason: "neither DER, PEM nor base64", Err: err}
	}
	return der, nil
}

// parseTime reads a UTCTime or GeneralizedTime validity bound.
func parseTime(raw asn1.RawValue) (time.Time, error) {
	var t time.Time
	if err := utils.ParseAsn1(raw.FullBytes, false, &t); err != nil {
		return time.Time{}, &CertificateParseError{Reason: "malformed validity", Err: err}
	}
	return t, nil
}

func parseName(raw []byte, name *pkix.Name) error {
	var rdn pkix.RDNSequence
	if err := utils.ParseAsn1(raw, false, &rdn); err != nil {
		return &CertificateParseError{Reason: "malformed name", Err: err}
	}
	name.FillFromRDNSequence(&rdn)
	return nil
}

func familyOf(sigOID asn1.ObjectIdentifier) (signature.Family, bool) {
	for _, known := range signatureOIDs {
		if known.oid.Equal(sigOID) {
			return known.family, true
		}
	}
	return "", false
}

// parsePSSParameters reads RSASSA-PSS-params. Absent parameters mean SHA-1 with a
// 20 byte salt.
func parsePSSParameters(id cms.AlgorithmIdentifier) (signature.Algorithm, error) {
	alg := signature.Algorithm{Family: signature.RSAPSS, Hash: hashing.SHA1, SaltLength: defaultPSSSaltLength}
	raw := id.Parameters
	if len(raw.FullBytes) == 0 || raw.Tag == asn1.TagNull {
		return alg, nil
	}

	var params cms.RsaSsaPssParams
	if err := utils.ParseAsn1(raw.FullBytes, false, &params); err != nil {
		return signature.Algorithm{}, &CertificateParseError{Reason: "malformed RSASSA-PSS parameters", Err: err}
	}
	hash, err := hashing.FromOID(params.HashAlgorithm.Algorithm)
	if err != nil {
		return signature.Algorithm{}, err
	}
	alg.Hash = hash
	if !params.MaskGenAlgorithm.Algorithm.Equal(oid.OidMgf1) {
		return signature.Algorithm{}, &hashing.UnsupportedAlgorithmError{Algorithm: params.MaskGenAlgorithm.Algorithm.String()}
	}
	if params.SaltLength != nil {
		if !params.SaltLength.IsInt64() || params.SaltLength.Sign() < 0 {
			return signature.Algorithm{}, &CertificateParseError{Reason: "invalid PSS salt length " + params.SaltLength.String()}
		}
		alg.SaltLength = int(params.SaltLength.Int64())
	}
	return alg, nil
}

// parsePublicKey fills the key and its algorithm. used is the algorithm the
// certificate was signed with and supplies the hash, and for RSA keys the PSS
// parameters.
func parsePublicKey(cert *Certificate, spki cms.SubjectPublicKeyInfo, used signature.Algorithm) error {
	keyAlg := spki.Algorithm.Algorithm

	switch {
	case spki.IsRSA(), keyAlg.Equal(oid.OidRsaSsaPss):
		pub, err := rsaPublicKey(spki)
		if err != nil {
			return err
		}
		cert.PublicKey = &rsa.PublicKey{N: pub.N, E: pub.E}
		cert.Algorithm = signature.Algorithm{
			Family:      signature.RSA,
			Hash:        used.Hash,
			Exponent:    pub.E,
			ModulusBits: pub.N.BitLen(),
		}
		pss := used
		if keyAlg.Equal(oid.OidRsaSsaPss) {
			if pss, err = parsePSSParameters(spki.Algorithm); err != nil {
				return err
			}
		}
		if pss.Family == signature.RSAPSS {
			cert.Algorithm.Family = signature.RSAPSS
			cert.Algorithm.Hash = pss.Hash
			cert.Algorithm.SaltLength = pss.SaltLength
		}
		return nil

	case spki.IsEC():
		curve, point, err := spki.EcCurveAndPubKey(false)
		if err != nil {
			return &CertificateParseError{Reason: "unsupported EC public key", Err: err}
		}
		name, err := signature.CurveName(*curve)
		if err != nil {
			return &CertificateParseError{Reason: "unsupported curve", Err: err}
		}
		cert.PublicKey = &ecdsa.PublicKey{Curve: *curve, X: point.X, Y: point.Y}
		cert.Algorithm = signature.Algorithm{
			Family: signature.ECDSA,
			Hash:   used.Hash,
			Curve:  name,
		}
		return nil

	default:
		return &CertificateParseError{Reason: "unrecognised public key algorithm " + keyAlg.String()}
	}
}

// rsaPublicKey also accepts keys published under the id-RSASSA-PSS OID, which
// cms.SubjectPublicKeyInfo.RsaPubKey refuses.
func rsaPublicKey(spki cms.SubjectPublicKeyInfo) (*cryptoutils.RsaPublicKey, error) {
	if spki.IsRSA() {
		pub, err := spki.RsaPubKey()
		if err != nil {
			return nil, &CertificateParseError{Reason: "invalid RSA public key", Err: err}
		}
		return pub, nil
	}

	var pub cryptoutils.RsaPublicKey
	if err := utils.ParseAsn1(spki.SubjectPublicKey.Bytes, false, &pub); err != nil {
		return nil, &CertificateParseError{Reason: "malformed RSA public key", Err: err}
	}
	if pub.N == nil || pub.N.Sign() <= 0 || pub.E <= 1 || pub.E%2 == 0 {
		return nil, &CertificateParseError{Reason: "invalid RSA public key"}
	}
	return &pub, nil
}
