package certificate

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/gmrtd/gmrtd/cms"
	"github.com/gmrtd/gmrtd/oid"
	"github.com/stretchr/testify/require"

	"go-credential-verifier/hashing"
	"go-credential-verifier/signature"
)

func testTemplate() Template {
	return Template{
		SerialNumber: big.NewInt(4242),
		Subject:      pkix.Name{Country: []string{"NL"}, Organization: []string{"Test Issuer"}, CommonName: "Document Signer"},
		NotBefore:    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2035, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateAndParseSelfSigned(t *testing.T) {
	algs := []signature.Algorithm{
		{Family: signature.RSA, Hash: hashing.SHA256, Exponent: 65537, ModulusBits: 2048},
		{Family: signature.RSAPSS, Hash: hashing.SHA384, Exponent: 65537, ModulusBits: 2048, SaltLength: 32},
		{Family: signature.RSAPSS, Hash: hashing.SHA256, Exponent: 65537, ModulusBits: 2048, SaltLength: 20},
		{Family: signature.ECDSA, Hash: hashing.SHA256, Curve: signature.CurveP256},
		{Family: signature.ECDSA, Hash: hashing.SHA384, Curve: signature.CurveBrainpoolP384r1},
		{Family: signature.ECDSA, Hash: hashing.SHA512, Curve: signature.CurveBrainpoolP512r1},
	}

	for _, alg := range algs {
		t.Run(alg.String(), func(t *testing.T) {
			key, err := signature.GenerateKey(alg)
			require.NoError(t, err)

			der, err := CreateSelfSigned(testTemplate(), alg, key)
			require.NoError(t, err)

			for name, input := range map[string][]byte{
				"der":    der,
				"pem":    EncodePEM(der),
				"base64": []byte(base64.StdEncoding.EncodeToString(der)),
			} {
				cert, err := Parse(input)
				require.NoError(t, err, name)
				require.Equal(t, alg, cert.Algorithm, name)
				require.Equal(t, "Document Signer", cert.Subject.CommonName)
				require.Equal(t, int64(4242), cert.SerialNumber.Int64())
				require.True(t, cert.ValidAt(time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC)))
				require.False(t, cert.ValidAt(time.Date(2036, time.June, 1, 0, 0, 0, 0, time.UTC)))
				require.NoError(t, cert.CheckSignatureFrom(cert))
			}
		})
	}
}

func TestParseStdlibCertificates(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:       big.NewInt(7),
		Subject:            pkix.Name{CommonName: "stdlib"},
		NotBefore:          time.Now().Add(-time.Hour),
		NotAfter:           time.Now().Add(time.Hour),
		SignatureAlgorithm: x509.ECDSAWithSHA384,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, ecKey.Public(), ecKey)
	require.NoError(t, err)

	cert, err := Parse(der)
	require.NoError(t, err)
	require.Equal(t, signature.Algorithm{Family: signature.ECDSA, Hash: hashing.SHA384, Curve: signature.CurveP384}, cert.Algorithm)
	require.Equal(t, 0, ecKey.X.Cmp(cert.PublicKey.(*ecdsa.PublicKey).X))
	require.NoError(t, cert.CheckSignatureFrom(cert))

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl.SignatureAlgorithm = x509.SHA256WithRSAPSS
	der, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, rsaKey.Public(), rsaKey)
	require.NoError(t, err)

	cert, err = Parse(der)
	require.NoError(t, err)
	require.Equal(t, signature.RSAPSS, cert.Algorithm.Family)
	require.Equal(t, hashing.SHA256, cert.Algorithm.Hash)
	require.Equal(t, 32, cert.Algorithm.SaltLength)
	require.Equal(t, 2048, cert.Algorithm.ModulusBits)
	require.Equal(t, 65537, cert.Algorithm.Exponent)
	require.NoError(t, cert.CheckSignatureFrom(cert))
}

func TestCreateIssuedByParent(t *testing.T) {
	cscaAlg := signature.Algorithm{Family: signature.ECDSA, Hash: hashing.SHA512, Curve: signature.CurveBrainpoolP512r1}
	cscaKey, err := signature.GenerateKey(cscaAlg)
	require.NoError(t, err)
	cscaTmpl := testTemplate()
	cscaTmpl.Subject = pkix.Name{Country: []string{"NL"}, CommonName: "CSCA"}
	cscaDER, err := CreateSelfSigned(cscaTmpl, cscaAlg, cscaKey)
	require.NoError(t, err)
	csca, err := Parse(cscaDER)
	require.NoError(t, err)

	dscAlg := signature.Algorithm{Family: signature.ECDSA, Hash: hashing.SHA256, Curve: signature.CurveBrainpoolP256r1}
	dscKey, err := signature.GenerateKey(dscAlg)
	require.NoError(t, err)
	dscDER, err := Create(testTemplate(), dscKey.Public(), cscaTmpl.Subject, cscaAlg, cscaKey)
	require.NoError(t, err)
	dsc, err := Parse(dscDER)
	require.NoError(t, err)

	require.Equal(t, signature.CurveBrainpoolP256r1, dsc.Algorithm.Curve)
	require.Equal(t, hashing.SHA512, dsc.Algorithm.Hash)
	require.Equal(t, "CSCA", dsc.Issuer.CommonName)
	require.NoError(t, dsc.CheckSignatureFrom(csca))
	require.Error(t, dsc.CheckSignatureFrom(dsc))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"broken armor", []byte("-----BEGIN CERTIFICATE-----\n@@@\n")},
		{"not base64", []byte("this is not a certificate")},
		{"truncated der", []byte{0x30, 0x82, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var parseErr *CertificateParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
		})
	}
}

func spkiFor(t *testing.T, info publicKeyInfo) cms.SubjectPublicKeyInfo {
	t.Helper()
	der, err := asn1.Marshal(info)
	require.NoError(t, err)
	spki, err := cms.Asn1decodeSubjectPublicKeyInfo(der)
	require.NoError(t, err)
	return spki
}

func TestParseRejectsUnknownKeyAlgorithm(t *testing.T) {
	alg := signature.Algorithm{Family: signature.ECDSA, Hash: hashing.SHA256, Curve: signature.CurveP256}
	key, err := signature.GenerateKey(alg)
	require.NoError(t, err)

	info, err := marshalPublicKey(key.Public())
	require.NoError(t, err)
	info.Algorithm.Algorithm = []int{1, 3, 101, 112}

	cert := &Certificate{}
	err = parsePublicKey(cert, spkiFor(t, info), alg)
	var parseErr *CertificateParseError
	require.True(t, errors.As(err, &parseErr))
	require.Contains(t, parseErr.Reason, "1.3.101.112")
}

type explicitDomain struct {
	Version int
	FieldID struct {
		FieldType asn1.ObjectIdentifier
		Prime     *big.Int
	}
	Curve struct {
		A, B []byte
	}
	Base     []byte
	Order    *big.Int
	Cofactor *big.Int
}

func TestParseExplicitCurveDomain(t *testing.T) {
	alg := signature.Algorithm{Family: signature.ECDSA, Hash: hashing.SHA256, Curve: signature.CurveBrainpoolP256r1}
	key, err := signature.GenerateKey(alg)
	require.NoError(t, err)
	pub := key.Public().(*ecdsa.PublicKey)
	params := pub.Curve.Params()

	var domain explicitDomain
	domain.Version = 1
	domain.FieldID.FieldType = asn1.ObjectIdentifier{1, 2, 840, 10045, 1, 1}
	domain.FieldID.Prime = params.P
	// curves are matched on the field prime, the coefficients are not read
	domain.Curve.A = []byte{0x00}
	domain.Curve.B = []byte{0x00}
	domain.Base = elliptic.Marshal(pub.Curve, params.Gx, params.Gy)
	domain.Order = params.N
	domain.Cofactor = big.NewInt(1)
	encoded, err := asn1.Marshal(domain)
	require.NoError(t, err)

	info, err := marshalPublicKey(pub)
	require.NoError(t, err)
	info.Algorithm.Parameters = asn1.RawValue{FullBytes: encoded}

	cert := &Certificate{}
	require.NoError(t, parsePublicKey(cert, spkiFor(t, info), alg))
	require.Equal(t, alg, cert.Algorithm)
	require.Equal(t, 0, pub.X.Cmp(cert.PublicKey.(*ecdsa.PublicKey).X))
	require.Equal(t, 0, pub.Y.Cmp(cert.PublicKey.(*ecdsa.PublicKey).Y))
}

func TestParseRejectsUnknownSignatureAlgorithm(t *testing.T) {
	alg := signature.Algorithm{Family: signature.ECDSA, Hash: hashing.SHA256, Curve: signature.CurveP256}
	key, err := signature.GenerateKey(alg)
	require.NoError(t, err)
	der, err := CreateSelfSigned(testTemplate(), alg, key)
	require.NoError(t, err)

	var outer certificateASN1
	_, err = asn1.Unmarshal(der, &outer)
	require.NoError(t, err)
	outer.SignatureAlgorithm = pkix.AlgorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 3, 101, 112}}
	mutated, err := asn1.Marshal(outer)
	require.NoError(t, err)

	_, err = Parse(mutated)
	var unsupported *hashing.UnsupportedAlgorithmError
	require.True(t, errors.As(err, &unsupported), "got %v", err)
	require.Equal(t, "1.3.101.112", unsupported.Algorithm)

	cert := &Certificate{SignatureAlgorithm: cms.AlgorithmIdentifier{Algorithm: oid.OidRsaSsaPss, Parameters: asn1.RawValue{FullBytes: []byte{0x30, 0x03, 0x02, 0x01, 0x00}}}}
	_, err = cert.SignatureAlgorithmUsed()
	var parseErr *CertificateParseError
	require.True(t, errors.As(err, &parseErr), "got %v", err)
}
