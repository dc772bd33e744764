package document

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"go-credential-verifier/hashing"
	"go-credential-verifier/mrz"
	"go-credential-verifier/signature"
)

func scannedRecord(t *testing.T) *Record {
	t.Helper()
	alg := signature.Algorithm{Family: signature.ECDSA, Hash: hashing.SHA256, Curve: signature.CurveP256}
	record, _ := synthesize(t, Params{Fields: testFields, Kind: mrz.Passport, Signature: alg, CheckDigits: true})
	return record
}

func iosPayload(t *testing.T, r *Record) map[string]any {
	t.Helper()
	hashes := map[string]any{}
	for tag, digest := range r.DataGroupHashes {
		hashes["DG"+strconv.Itoa(tag)] = map[string]any{"sodHash": hex.EncodeToString(digest)}
	}
	cert, err := json.Marshal(map[string]string{"PEM": string(r.DocumentSigningCertificate)})
	require.NoError(t, err)

	return map[string]any{
		"passportMRZ":                r.MRZ,
		"dataGroupHashes":            hashes,
		"eContentBase64":             base64.StdEncoding.EncodeToString(r.EContent),
		"signedAttributes":           base64.StdEncoding.EncodeToString(r.SignedAttributes),
		"signatureBase64":            base64.StdEncoding.EncodeToString(signature.FromSigned(r.Signature)),
		"documentSigningCertificate": string(cert),
	}
}

func androidPayload(t *testing.T, r *Record) map[string]any {
	t.Helper()
	hashes := map[string]string{}
	for tag, digest := range r.DataGroupHashes {
		hashes[strconv.Itoa(tag)] = hex.EncodeToString(digest)
	}
	encodedHashes, err := json.Marshal(hashes)
	require.NoError(t, err)
	block, _ := pem.Decode(r.DocumentSigningCertificate)
	require.NotNil(t, block)

	return map[string]any{
		"mrz":                        r.MRZ,
		"dataGroupHashes":            string(encodedHashes),
		"encapContent":               base64.StdEncoding.EncodeToString(r.EContent),
		"eContent":                   base64.StdEncoding.EncodeToString(r.SignedAttributes),
		"encryptedDigest":            base64.StdEncoding.EncodeToString(signature.FromSigned(r.Signature)),
		"documentSigningCertificate": base64.StdEncoding.EncodeToString(block.Bytes),
		"digestAlgorithm":            "SHA-256",
		"signerInfoDigestAlgorithm":  "sha256",
	}
}

func TestFromScanIOS(t *testing.T) {
	expected := scannedRecord(t)

	record, err := FromScan(PlatformIOS, iosPayload(t, expected))
	require.NoError(t, err)

	require.Equal(t, expected.MRZ, record.MRZ)
	require.Equal(t, expected.DataGroupHashes, record.DataGroupHashes)
	require.Equal(t, expected.Signature, record.Signature)
	require.Equal(t, expected.Metadata, record.Metadata)
	require.Equal(t, TypePassport, record.DocumentType)
	require.Equal(t, CategoryPassport, record.DocumentCategory)
	require.False(t, record.IsMock)

	require.NoError(t, Validate(record))
	require.NoError(t, VerifySignature(record))
}

func TestFromScanAndroid(t *testing.T) {
	expected := scannedRecord(t)

	record, err := FromScan(PlatformAndroid, androidPayload(t, expected))
	require.NoError(t, err)

	require.Equal(t, expected.MRZ, record.MRZ)
	require.Equal(t, expected.DataGroupHashes, record.DataGroupHashes)
	require.Equal(t, expected.EContent, record.EContent)
	require.Equal(t, expected.Metadata, record.Metadata)

	require.NoError(t, Validate(record))
	require.NoError(t, VerifySignature(record))
}

func TestFromScanInfersMetadataWithoutHints(t *testing.T) {
	expected := scannedRecord(t)
	payload := androidPayload(t, expected)
	delete(payload, "digestAlgorithm")
	delete(payload, "signerInfoDigestAlgorithm")
	delete(payload, "encapContent")

	record, err := FromScan(PlatformAndroid, payload)
	require.NoError(t, err)
	require.Equal(t, expected.Metadata, record.Metadata)
}

func TestFromScanIgnoresHashesThatAreNotJSON(t *testing.T) {
	expected := scannedRecord(t)
	payload := iosPayload(t, expected)
	payload["dataGroupHashes"] = "not json"

	record, err := FromScan(PlatformIOS, payload)
	require.NoError(t, err)
	require.Empty(t, record.DataGroupHashes)
	require.Equal(t, hashing.SHA256, record.Metadata.DG1HashAlgo)
}

func TestFromScanMalformed(t *testing.T) {
	expected := scannedRecord(t)

	tests := []struct {
		name     string
		platform Platform
		mutate   func(p map[string]any)
		field    string
	}{
		{"ios mrz missing", PlatformIOS, func(p map[string]any) { delete(p, "passportMRZ") }, "passportMRZ"},
		{"ios mrz not a string", PlatformIOS, func(p map[string]any) { p["passportMRZ"] = 42 }, "passportMRZ"},
		{"android mrz missing", PlatformAndroid, func(p map[string]any) { p["mrz"] = nil }, "mrz"},
		{"android mrz not a string", PlatformAndroid, func(p map[string]any) { p["mrz"] = []string{"P<"} }, "mrz"},
		{"ios signature not base64", PlatformIOS, func(p map[string]any) { p["signatureBase64"] = "%%%" }, "signatureBase64"},
		{"android hash not hex", PlatformAndroid, func(p map[string]any) { p["dataGroupHashes"] = map[string]any{"1": "zz"} }, "dataGroupHashes"},
		{"ios bad data group name", PlatformIOS, func(p map[string]any) {
			p["dataGroupHashes"] = map[string]any{"DG17": map[string]any{"sodHash": "00"}}
		}, "dataGroupHashes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload map[string]any
			if tt.platform == PlatformIOS {
				payload = iosPayload(t, expected)
			} else {
				payload = androidPayload(t, expected)
			}
			tt.mutate(payload)

			_, err := FromScan(tt.platform, payload)
			var malformed *MalformedScanError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			require.Equal(t, tt.platform, malformed.Platform)
			require.Equal(t, tt.field, malformed.Field)
		})
	}
}

func TestFromScanRejectsDG1HashMismatch(t *testing.T) {
	for _, platform := range []Platform{PlatformIOS, PlatformAndroid} {
		t.Run(string(platform), func(t *testing.T) {
			tampered := scannedRecord(t)
			dg1 := append([]byte(nil), tampered.DataGroupHashes[1]...)
			dg1[0] ^= 0x01
			tampered.DataGroupHashes[1] = dg1

			var payload map[string]any
			if platform == PlatformIOS {
				payload = iosPayload(t, tampered)
			} else {
				payload = androidPayload(t, tampered)
			}

			record, err := FromScan(platform, payload)
			require.Nil(t, record)
			var mismatch *HashMismatchError
			require.True(t, errors.As(err, &mismatch), "got %v", err)
			require.Equal(t, hashing.FieldDG1, mismatch.Field)
			require.Equal(t, 1, mismatch.Tag)
		})
	}
}

func TestFromScanRejectsUnknownDigest(t *testing.T) {
	payload := androidPayload(t, scannedRecord(t))
	payload["signerInfoDigestAlgorithm"] = "md5"

	_, err := FromScan(PlatformAndroid, payload)
	var unsupported *hashing.UnsupportedAlgorithmError
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, hashing.FieldSignedAttr, unsupported.Field)
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" iOS ")
	require.NoError(t, err)
	require.Equal(t, PlatformIOS, p)

	p, err = ParsePlatform("android")
	require.NoError(t, err)
	require.Equal(t, PlatformAndroid, p)

	_, err = ParsePlatform("windows")
	require.Error(t, err)

	_, err = FromScan("windows", map[string]any{})
	require.Error(t, err)
}

func TestParseDgNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{name: "DG1", input: "DG1", expected: 1},
		{name: "DG16", input: "DG16", expected: 16},
		{name: "lowercase", input: "dg1", wantErr: true},
		{name: "no number", input: "DG", wantErr: true},
		{name: "zero", input: "DG0", wantErr: true},
		{name: "out of range", input: "DG17", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDgNumber(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
		})
	}
}
