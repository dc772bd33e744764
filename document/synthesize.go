package document

import (
	"crypto"
	"crypto/rand"
	"crypto/x509/pkix"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-credential-verifier/certificate"
	"go-credential-verifier/datagroup"
	"go-credential-verifier/hashing"
	"go-credential-verifier/mrz"
	"go-credential-verifier/signature"
)

// DefaultDataGroups are the groups present in a synthesized document.
var DefaultDataGroups = []int{1, 2, 3, 11, 12, 14}

const mockCertificateValidity = 10 * 365 * 24 * time.Hour

// Params describes a synthetic document. DG1HashAlgo and EContentHashAlgo default to
// Signature.Hash. Without a Key one is generated, and without a Certificate a
// self-signed one is issued for the key.
type Params struct {
	Fields           mrz.Fields
	Kind             mrz.Kind
	Signature        signature.Algorithm
	DG1HashAlgo      hashing.Algorithm
	EContentHashAlgo hashing.Algorithm
	DataGroups       []int
	Key              crypto.Signer
	Certificate      []byte
	CheckDigits      bool
	Mock             bool
	Now              time.Time
}

// KeyPair is the signing material behind a synthesized record.
type KeyPair struct {
	PrivateKey  crypto.Signer
	Certificate []byte
}

// Synthesize builds a fully self-consistent record for p.
func Synthesize(p Params) (*Record, *KeyPair, error) {
	var opts []mrz.Option
	if p.CheckDigits {
		opts = append(opts, mrz.WithCheckDigits())
	}
	mrzString, err := mrz.Format(p.Fields, p.Kind, opts...)
	if err != nil {
		return nil, nil, err
	}

	alg, keys, err := signingMaterial(p)
	if err != nil {
		return nil, nil, err
	}

	meta := Metadata{
		DG1HashAlgo:        orDefault(p.DG1HashAlgo, alg.Hash),
		EContentHashAlgo:   orDefault(p.EContentHashAlgo, alg.Hash),
		SignedAttrHashAlgo: alg.Hash,
	}
	if err := meta.Check(); err != nil {
		return nil, nil, err
	}

	dg1, err := DG1Hash(mrzString, meta.DG1HashAlgo)
	if err != nil {
		return nil, nil, err
	}
	groups := map[int][]byte{1: dg1}
	tags := p.DataGroups
	if len(tags) == 0 {
		tags = DefaultDataGroups
	}
	for _, tag := range tags {
		if tag == 1 {
			continue
		}
		digest := make([]byte, hashing.Size(meta.DG1HashAlgo))
		if _, err := rand.Read(digest); err != nil {
			return nil, nil, fmt.Errorf("failed to generate DG%d digest: %w", tag, err)
		}
		groups[tag] = digest
	}

	hashes := make([]datagroup.Hash, 0, len(groups))
	for tag, digest := range groups {
		hashes = append(hashes, datagroup.Hash{Tag: tag, Digest: digest})
	}
	eContent, err := datagroup.BuildEContent(hashes, meta.DG1HashAlgo)
	if err != nil {
		return nil, nil, err
	}
	signedAttrs, err := datagroup.BuildSignedAttributes(eContent, meta.EContentHashAlgo)
	if err != nil {
		return nil, nil, err
	}
	sig, err := signature.Sign(keys.PrivateKey, alg, signedAttrs)
	if err != nil {
		return nil, nil, err
	}

	docType, category := TypeFor(mrz.KindOf(mrzString), p.Mock)
	record := &Record{
		MRZ:                        mrzString,
		DocumentSigningCertificate: keys.Certificate,
		DataGroupHashes:            groups,
		EContent:                   eContent,
		SignedAttributes:           signedAttrs,
		Signature:                  sig,
		DocumentType:               docType,
		DocumentCategory:           category,
		IsMock:                     p.Mock,
		Metadata:                   meta,
	}
	slog.Debug("Synthesized document", "document_type", docType, "signature_algorithm", alg.String())
	return record, keys, nil
}

func signingMaterial(p Params) (signature.Algorithm, *KeyPair, error) {
	if len(p.Certificate) > 0 {
		if p.Key == nil {
			return signature.Algorithm{}, nil, fmt.Errorf("a certificate was supplied without its private key")
		}
		cert, err := certificate.Parse(p.Certificate)
		if err != nil {
			return signature.Algorithm{}, nil, err
		}
		alg := cert.Algorithm
		if p.Signature.Hash != "" {
			alg.Hash = p.Signature.Hash
		}
		return alg, &KeyPair{PrivateKey: p.Key, Certificate: p.Certificate}, nil
	}

	alg := p.Signature
	if err := alg.Validate(); err != nil {
		return signature.Algorithm{}, nil, err
	}
	key := p.Key
	if key == nil {
		var err error
		key, err = signature.GenerateKey(alg)
		if err != nil {
			return signature.Algorithm{}, nil, err
		}
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	country := strings.Trim(p.Fields.Nationality, "<")
	der, err := certificate.CreateSelfSigned(certificate.Template{
		Subject:   pkix.Name{Country: []string{country}, CommonName: "Mock Document Signer " + alg.String()},
		NotBefore: now.Add(-24 * time.Hour),
		NotAfter:  now.Add(mockCertificateValidity),
	}, alg, key)
	if err != nil {
		return signature.Algorithm{}, nil, fmt.Errorf("failed to create document signing certificate: %w", err)
	}
	return alg, &KeyPair{PrivateKey: key, Certificate: certificate.EncodePEM(der)}, nil
}

func orDefault(alg, fallback hashing.Algorithm) hashing.Algorithm {
	if alg == "" {
		return fallback
	}
	return alg
}
