package datagroup

import (
	"bytes"
	"encoding/asn1"
	"fmt"
	"time"

	"go-credential-verifier/hashing"
)

var (
	oidContentType       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidMessageDigest     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidSigningTime       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	OIDLDSSecurityObject = asn1.ObjectIdentifier{2, 23, 136, 1, 1, 1}
)

type attribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

// SignedAttributes is the decoded view of a CMS signed attribute set.
type SignedAttributes struct {
	ContentType   asn1.ObjectIdentifier
	MessageDigest []byte
	// SigningTime is zero when the signer did not include one.
	SigningTime time.Time
}

// BuildSignedAttributes encodes the DER SET of signed attributes whose
// messageDigest is Hash(eContent) under alg.
func BuildSignedAttributes(eContent []byte, alg hashing.Algorithm) ([]byte, error) {
	if err := alg.Check(hashing.FieldEContent); err != nil {
		return nil, err
	}
	digest, err := hashing.Sum(alg, eContent)
	if err != nil {
		return nil, err
	}

	contentType, err := asn1.Marshal(OIDLDSSecurityObject)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content type: %w", err)
	}
	messageDigest, err := asn1.Marshal(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message digest: %w", err)
	}

	attrs := []attribute{
		{Type: oidContentType, Values: []asn1.RawValue{{FullBytes: contentType}}},
		{Type: oidMessageDigest, Values: []asn1.RawValue{{FullBytes: messageDigest}}},
	}
	out, err := asn1.MarshalWithParams(attrs, "set")
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed attributes: %w", err)
	}
	return out, nil
}

// ParseSignedAttributes decodes a signed attribute set. The implicit [0] tag used
// inside a SignerInfo is accepted as well as the universal SET tag.
func ParseSignedAttributes(signedAttributes []byte) (*SignedAttributes, error) {
	if len(signedAttributes) == 0 {
		return nil, fmt.Errorf("signed attributes are empty")
	}
	der := signedAttributes
	if der[0] == 0xA0 {
		der = ToSetEncoding(der)
	}

	var attrs []attribute
	rest, err := asn1.UnmarshalWithParams(der, &attrs, "set")
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed attributes: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("trailing %d bytes after signed attributes", len(rest))
	}

	parsed := &SignedAttributes{}
	for _, attr := range attrs {
		if len(attr.Values) == 0 {
			continue
		}
		switch {
		case attr.Type.Equal(oidContentType):
			if _, err := asn1.Unmarshal(attr.Values[0].FullBytes, &parsed.ContentType); err != nil {
				return nil, fmt.Errorf("failed to decode content type: %w", err)
			}
		case attr.Type.Equal(oidMessageDigest):
			if _, err := asn1.Unmarshal(attr.Values[0].FullBytes, &parsed.MessageDigest); err != nil {
				return nil, fmt.Errorf("failed to decode message digest: %w", err)
			}
		case attr.Type.Equal(oidSigningTime):
			if _, err := asn1.Unmarshal(attr.Values[0].FullBytes, &parsed.SigningTime); err != nil {
				return nil, fmt.Errorf("failed to decode signing time: %w", err)
			}
		}
	}
	if parsed.MessageDigest == nil {
		return nil, fmt.Errorf("signed attributes carry no messageDigest")
	}
	return parsed, nil
}

// VerifyMessageDigest checks that the signed attributes commit to eContent under alg.
func VerifyMessageDigest(signedAttributes, eContent []byte, alg hashing.Algorithm) error {
	parsed, err := ParseSignedAttributes(signedAttributes)
	if err != nil {
		return err
	}
	if err := alg.Check(hashing.FieldEContent); err != nil {
		return err
	}
	expected, err := hashing.Sum(alg, eContent)
	if err != nil {
		return err
	}
	if !bytes.Equal(expected, parsed.MessageDigest) {
		return fmt.Errorf("messageDigest does not match %s(eContent)", alg)
	}
	return nil
}

// ToSetEncoding rewrites the implicit [0] tag of SignerInfo.signedAttrs to the SET
// tag over which the signature is computed.
func ToSetEncoding(signedAttrs []byte) []byte {
	out := make([]byte, len(signedAttrs))
	copy(out, signedAttrs)
	if len(out) > 0 && out[0] == 0xA0 {
		out[0] = 0x31
	}
	return out
}
