package document

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"go-credential-verifier/certificate"
	"go-credential-verifier/datagroup"
	"go-credential-verifier/hashing"
	"go-credential-verifier/mrz"
	"go-credential-verifier/signature"
)

// Platform selects the scanner adapter used by FromScan.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformIOS:
		return PlatformIOS, nil
	case PlatformAndroid:
		return PlatformAndroid, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

type iosScan struct {
	MRZ                        string `json:"passportMRZ"`
	DataGroupHashes            any    `json:"dataGroupHashes"`
	EContentBase64             string `json:"eContentBase64"`
	SignedAttributes           string `json:"signedAttributes"`
	SignatureBase64            string `json:"signatureBase64"`
	DocumentSigningCertificate string `json:"documentSigningCertificate"`
}

// The android reader calls the signed attributes "eContent" and the LDS security
// object "encapContent".
type androidScan struct {
	MRZ                        string `json:"mrz"`
	DataGroupHashes            any    `json:"dataGroupHashes"`
	EncapContent               string `json:"encapContent"`
	EContent                   string `json:"eContent"`
	EncryptedDigest            string `json:"encryptedDigest"`
	DocumentSigningCertificate string `json:"documentSigningCertificate"`
	DigestAlgorithm            string `json:"digestAlgorithm"`
	SignerInfoDigestAlgorithm  string `json:"signerInfoDigestAlgorithm"`
}

// normalized is what both adapters produce before the record is assembled.
type normalized struct {
	mrz              string
	hashes           map[int][]byte
	eContent         []byte
	signedAttributes []byte
	signature        []byte
	certificate      []byte
	dg1Alg           hashing.Algorithm
	signedAttrAlg    hashing.Algorithm
}

var mrzFields = map[Platform]string{
	PlatformIOS:     "passportMRZ",
	PlatformAndroid: "mrz",
}

// FromScan normalizes a native scanner response into a Record. The document type is
// inferred from the MRZ length only.
func FromScan(platform Platform, payload map[string]any) (*Record, error) {
	field, ok := mrzFields[platform]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
	raw, present := payload[field]
	if !present || raw == nil {
		return nil, &MalformedScanError{Platform: platform, Field: field, Reason: "is missing"}
	}
	if _, isString := raw.(string); !isString {
		return nil, &MalformedScanError{Platform: platform, Field: field, Reason: fmt.Sprintf("must be a string, got %T", raw)}
	}

	var n *normalized
	var err error
	switch platform {
	case PlatformIOS:
		n, err = fromIOS(payload)
	case PlatformAndroid:
		n, err = fromAndroid(payload)
	}
	if err != nil {
		return nil, err
	}
	return n.record()
}

func fromIOS(payload map[string]any) (*normalized, error) {
	var scan iosScan
	if err := decodePayload(payload, &scan); err != nil {
		return nil, &MalformedScanError{Platform: PlatformIOS, Field: "payload", Reason: err.Error()}
	}

	n := &normalized{mrz: scan.MRZ}
	var err error
	if n.hashes, err = iosDataGroupHashes(scan.DataGroupHashes); err != nil {
		return nil, &MalformedScanError{Platform: PlatformIOS, Field: "dataGroupHashes", Reason: err.Error()}
	}
	if n.eContent, err = decodeBase64(scan.EContentBase64); err != nil {
		return nil, &MalformedScanError{Platform: PlatformIOS, Field: "eContentBase64", Reason: err.Error()}
	}
	if n.signedAttributes, err = decodeBase64(scan.SignedAttributes); err != nil {
		return nil, &MalformedScanError{Platform: PlatformIOS, Field: "signedAttributes", Reason: err.Error()}
	}
	if n.signature, err = decodeBase64(scan.SignatureBase64); err != nil {
		return nil, &MalformedScanError{Platform: PlatformIOS, Field: "signatureBase64", Reason: err.Error()}
	}
	n.certificate = iosCertificate(scan.DocumentSigningCertificate)
	return n, nil
}

func fromAndroid(payload map[string]any) (*normalized, error) {
	var scan androidScan
	if err := decodePayload(payload, &scan); err != nil {
		return nil, &MalformedScanError{Platform: PlatformAndroid, Field: "payload", Reason: err.Error()}
	}

	n := &normalized{mrz: scan.MRZ}
	var err error
	if n.hashes, err = androidDataGroupHashes(scan.DataGroupHashes); err != nil {
		return nil, &MalformedScanError{Platform: PlatformAndroid, Field: "dataGroupHashes", Reason: err.Error()}
	}
	if n.eContent, err = decodeBase64(scan.EncapContent); err != nil {
		return nil, &MalformedScanError{Platform: PlatformAndroid, Field: "encapContent", Reason: err.Error()}
	}
	if n.signedAttributes, err = decodeBase64(scan.EContent); err != nil {
		return nil, &MalformedScanError{Platform: PlatformAndroid, Field: "eContent", Reason: err.Error()}
	}
	if n.signature, err = decodeBase64(scan.EncryptedDigest); err != nil {
		return nil, &MalformedScanError{Platform: PlatformAndroid, Field: "encryptedDigest", Reason: err.Error()}
	}
	if body := strings.TrimSpace(scan.DocumentSigningCertificate); body != "" {
		n.certificate = []byte("-----BEGIN CERTIFICATE-----\n" + body + "\n-----END CERTIFICATE-----\n")
	}
	if scan.DigestAlgorithm != "" {
		if n.dg1Alg, err = hashing.Parse(scan.DigestAlgorithm); err != nil {
			return nil, &hashing.UnsupportedAlgorithmError{Field: hashing.FieldDG1, Algorithm: scan.DigestAlgorithm}
		}
	}
	if scan.SignerInfoDigestAlgorithm != "" {
		if n.signedAttrAlg, err = hashing.Parse(scan.SignerInfoDigestAlgorithm); err != nil {
			return nil, &hashing.UnsupportedAlgorithmError{Field: hashing.FieldSignedAttr, Algorithm: scan.SignerInfoDigestAlgorithm}
		}
	}
	return n, nil
}

func (n *normalized) record() (*Record, error) {
	if err := mrz.Validate(n.mrz); err != nil {
		return nil, err
	}

	meta, err := n.inferMetadata()
	if err != nil {
		return nil, err
	}

	if stored := n.hashes[1]; len(stored) > 0 {
		computed, err := DG1Hash(n.mrz, meta.DG1HashAlgo)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(stored, computed) {
			return nil, &HashMismatchError{Field: hashing.FieldDG1, Tag: 1}
		}
	}

	docType, category := TypeFor(mrz.KindOf(n.mrz), false)
	return &Record{
		MRZ:                        n.mrz,
		DocumentSigningCertificate: n.certificate,
		DataGroupHashes:            n.hashes,
		EContent:                   n.eContent,
		SignedAttributes:           n.signedAttributes,
		Signature:                  signature.ToSigned(n.signature),
		DocumentType:               docType,
		DocumentCategory:           category,
		Metadata:                   meta,
	}, nil
}

// inferMetadata derives the algorithms from the bytes: the eContent algorithm
// identifier or the DG1 digest length for data groups, the messageDigest length for
// eContent, and the scanner's declaration or the certificate for signedAttributes.
func (n *normalized) inferMetadata() (Metadata, error) {
	var meta Metadata

	meta.DG1HashAlgo = n.dg1Alg
	if alg, _, err := datagroup.ParseEContent(n.eContent); err == nil {
		meta.DG1HashAlgo = alg
	} else if meta.DG1HashAlgo == "" {
		alg, err := hashing.FromDigestSize(len(n.hashes[1]))
		if err != nil {
			return Metadata{}, &hashing.UnsupportedAlgorithmError{Field: hashing.FieldDG1, Algorithm: fmt.Sprintf("%d-byte digest", len(n.hashes[1]))}
		}
		meta.DG1HashAlgo = alg
	}

	meta.EContentHashAlgo = meta.DG1HashAlgo
	if attrs, err := datagroup.ParseSignedAttributes(n.signedAttributes); err == nil {
		alg, err := hashing.FromDigestSize(len(attrs.MessageDigest))
		if err != nil {
			return Metadata{}, &hashing.UnsupportedAlgorithmError{Field: hashing.FieldEContent, Algorithm: fmt.Sprintf("%d-byte digest", len(attrs.MessageDigest))}
		}
		meta.EContentHashAlgo = alg
	}

	meta.SignedAttrHashAlgo = n.signedAttrAlg
	if meta.SignedAttrHashAlgo == "" {
		meta.SignedAttrHashAlgo = meta.EContentHashAlgo
		if cert, err := certificate.Parse(n.certificate); err == nil {
			meta.SignedAttrHashAlgo = cert.Algorithm.Hash
		}
	}
	return meta, nil
}

func decodePayload(payload map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: out})
	if err != nil {
		return err
	}
	return decoder.Decode(payload)
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// iosDataGroupHashes reads {"DG1": {"sodHash": "<hex>"}, ...}, given either as an
// object or as a JSON string. A string that is not JSON is ignored.
func iosDataGroupHashes(v any) (map[int][]byte, error) {
	obj, ok, err := objectOrJSON(v)
	if err != nil || !ok {
		return map[int][]byte{}, err
	}

	hashes := make(map[int][]byte, len(obj))
	for name, entry := range obj {
		tag, err := parseDgNumber(name)
		if err != nil {
			return nil, err
		}
		var hexHash string
		switch e := entry.(type) {
		case string:
			hexHash = e
		case map[string]any:
			hexHash, _ = e["sodHash"].(string)
		}
		if hexHash == "" {
			continue
		}
		digest, err := hex.DecodeString(hexHash)
		if err != nil {
			return nil, fmt.Errorf("DG%d hash is not hex: %w", tag, err)
		}
		hashes[tag] = digest
	}
	return hashes, nil
}

// androidDataGroupHashes reads {"1": "<hex>", ...}, as an object or a JSON string.
func androidDataGroupHashes(v any) (map[int][]byte, error) {
	obj, ok, err := objectOrJSON(v)
	if err != nil || !ok {
		return map[int][]byte{}, err
	}

	hashes := make(map[int][]byte, len(obj))
	for key, entry := range obj {
		tag, err := strconv.Atoi(key)
		if err != nil {
			if tag, err = parseDgNumber(key); err != nil {
				return nil, err
			}
		}
		hexHash, isString := entry.(string)
		if !isString {
			return nil, fmt.Errorf("DG%d hash must be a hex string", tag)
		}
		digest, err := hex.DecodeString(hexHash)
		if err != nil {
			return nil, fmt.Errorf("DG%d hash is not hex: %w", tag, err)
		}
		hashes[tag] = digest
	}
	return hashes, nil
}

func objectOrJSON(v any) (map[string]any, bool, error) {
	switch value := v.(type) {
	case nil:
		return nil, false, nil
	case map[string]any:
		return value, true, nil
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(value), &obj); err != nil {
			slog.Warn("Data group hashes are not JSON, ignoring them", "error", err)
			return nil, false, nil
		}
		return obj, true, nil
	default:
		return nil, false, fmt.Errorf("unexpected type %T", v)
	}
}

// iosCertificate unwraps {"PEM": "..."} and falls back to the raw string.
func iosCertificate(s string) []byte {
	if s == "" {
		return nil
	}
	var wrapped struct {
		PEM string `json:"PEM"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil && wrapped.PEM != "" {
		return []byte(strings.ReplaceAll(wrapped.PEM, `\n`, "\n"))
	}
	return []byte(s)
}

func parseDgNumber(dgName string) (int, error) {
	if !strings.HasPrefix(dgName, "DG") {
		return 0, fmt.Errorf("invalid DG name: %s", dgName)
	}

	num, err := strconv.Atoi(dgName[2:])
	if err != nil {
		return 0, fmt.Errorf("invalid DG number in %s: %w", dgName, err)
	}
	if num < datagroup.MinTag || num > datagroup.MaxTag {
		return 0, fmt.Errorf("invalid DG number in %s", dgName)
	}
	return num, nil
}
