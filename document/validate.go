package document

import (
	"bytes"
	"fmt"
	"log/slog"

	"go-credential-verifier/certificate"
	"go-credential-verifier/datagroup"
	"go-credential-verifier/hashing"
	"go-credential-verifier/mrz"
	"go-credential-verifier/signature"
)

// DG1Hash recomputes the digest of the DG1 encoding of mrzString.
func DG1Hash(mrzString string, alg hashing.Algorithm) ([]byte, error) {
	if err := alg.Check(hashing.FieldDG1); err != nil {
		return nil, err
	}
	return hashing.Sum(alg, mrz.FormatDG1(mrzString))
}

// Validate checks the record's digest chain: the MRZ, the metadata, the DG1 hash,
// the eContent hash list and the messageDigest in signedAttributes. The signature
// itself is checked by VerifySignature.
func Validate(r *Record) error {
	if r == nil {
		return fmt.Errorf("no record")
	}
	if err := mrz.Validate(r.MRZ); err != nil {
		return err
	}
	if err := r.Metadata.Check(); err != nil {
		return err
	}

	if stored := r.DataGroupHashes[1]; len(stored) > 0 {
		computed, err := DG1Hash(r.MRZ, r.Metadata.DG1HashAlgo)
		if err != nil {
			return err
		}
		if !bytes.Equal(stored, computed) {
			slog.Debug("DG1 hash does not match MRZ", "dg1_hash_algo", r.Metadata.DG1HashAlgo)
			return &HashMismatchError{Field: hashing.FieldDG1, Tag: 1}
		}
	}

	if len(r.EContent) > 0 {
		alg, hashes, err := datagroup.ParseEContent(r.EContent)
		if err != nil {
			return err
		}
		if alg != r.Metadata.DG1HashAlgo {
			return fmt.Errorf("eContent uses %s but metadata declares %s for data groups", alg, r.Metadata.DG1HashAlgo)
		}
		for _, tag := range r.PresentGroups() {
			if !bytes.Equal(datagroup.Lookup(hashes, tag), r.DataGroupHashes[tag]) {
				return &HashMismatchError{Field: hashing.FieldEContent, Tag: tag}
			}
		}
	}

	if len(r.SignedAttributes) > 0 && len(r.EContent) > 0 {
		if err := datagroup.VerifyMessageDigest(r.SignedAttributes, r.EContent, r.Metadata.EContentHashAlgo); err != nil {
			slog.Debug("signed attributes do not commit to eContent", "error", err)
			return &HashMismatchError{Field: hashing.FieldSignedAttr}
		}
	}
	return nil
}

// VerifySignature checks the record's signature with the key from its document
// signing certificate, hashing signedAttributes with SignedAttrHashAlgo.
func VerifySignature(r *Record) error {
	cert, err := certificate.Parse(r.DocumentSigningCertificate)
	if err != nil {
		return err
	}
	alg := cert.Algorithm
	if r.Metadata.SignedAttrHashAlgo != "" {
		alg.Hash = r.Metadata.SignedAttrHashAlgo
	}
	return signature.Verify(cert.PublicKey, alg, r.SignedAttributes, r.Signature)
}
