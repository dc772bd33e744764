package datagroup

import (
	"encoding/asn1"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-credential-verifier/hashing"
)

func TestHashGroupsRoundTrip(t *testing.T) {
	groups := []Group{
		{Tag: 14, Data: []byte("security infos")},
		{Tag: 2, Data: []byte("face")},
		{Tag: 1, Data: []byte("mrz")},
		{Tag: 11, Data: []byte("additional personal details")},
	}

	for _, alg := range hashing.All() {
		t.Run(alg.String(), func(t *testing.T) {
			eContent, err := HashGroups(groups, alg)
			require.NoError(t, err)

			parsedAlg, hashes, err := ParseEContent(eContent)
			require.NoError(t, err)
			require.Equal(t, alg, parsedAlg)
			require.Len(t, hashes, len(groups))

			for _, g := range groups {
				expected, err := hashing.Sum(alg, g.Data)
				require.NoError(t, err)
				require.Equal(t, expected, Lookup(hashes, g.Tag))
			}
		})
	}
}

func TestHashGroupsAscendingOrder(t *testing.T) {
	eContent, err := HashGroups([]Group{
		{Tag: 3, Data: []byte("c")},
		{Tag: 1, Data: []byte("a")},
		{Tag: 2, Data: []byte("b")},
	}, hashing.SHA256)
	require.NoError(t, err)

	_, hashes, err := ParseEContent(eContent)
	require.NoError(t, err)
	require.Equal(t, 1, hashes[0].Tag)
	require.Equal(t, 2, hashes[1].Tag)
	require.Equal(t, 3, hashes[2].Tag)
}

func TestBuildEContentIsOrderIndependent(t *testing.T) {
	a := Hash{Tag: 1, Digest: make([]byte, 32)}
	b := Hash{Tag: 2, Digest: append(make([]byte, 31), 1)}

	first, err := BuildEContent([]Hash{a, b}, hashing.SHA256)
	require.NoError(t, err)
	second, err := BuildEContent([]Hash{b, a}, hashing.SHA256)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestBuildEContentErrors(t *testing.T) {
	digest := make([]byte, 32)

	_, err := BuildEContent([]Hash{{Tag: 1, Digest: digest}, {Tag: 1, Digest: digest}}, hashing.SHA256)
	require.ErrorContains(t, err, "duplicate")

	_, err = BuildEContent([]Hash{{Tag: 17, Digest: digest}}, hashing.SHA256)
	require.ErrorContains(t, err, "outside")

	_, err = BuildEContent([]Hash{{Tag: 1, Digest: digest[:20]}}, hashing.SHA256)
	require.ErrorContains(t, err, "DG1")
}

func TestUnsupportedAlgorithmNamesField(t *testing.T) {
	var unsupported *hashing.UnsupportedAlgorithmError

	_, err := HashGroups([]Group{{Tag: 1, Data: []byte("x")}}, hashing.Algorithm("md5"))
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, hashing.FieldDG1, unsupported.Field)

	_, err = BuildSignedAttributes([]byte("x"), hashing.Algorithm("sha3"))
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, hashing.FieldEContent, unsupported.Field)
}

func TestSignedAttributesCommitToEContent(t *testing.T) {
	eContent, err := HashGroups([]Group{{Tag: 1, Data: []byte("mrz")}}, hashing.SHA256)
	require.NoError(t, err)

	attrs, err := BuildSignedAttributes(eContent, hashing.SHA384)
	require.NoError(t, err)
	require.Equal(t, byte(0x31), attrs[0])

	parsed, err := ParseSignedAttributes(attrs)
	require.NoError(t, err)
	require.True(t, parsed.ContentType.Equal(OIDLDSSecurityObject))

	expected, err := hashing.Sum(hashing.SHA384, eContent)
	require.NoError(t, err)
	require.Equal(t, expected, parsed.MessageDigest)

	require.NoError(t, VerifyMessageDigest(attrs, eContent, hashing.SHA384))
	require.Error(t, VerifyMessageDigest(attrs, append(eContent, 0), hashing.SHA384))
}

func TestParseSignedAttributesAcceptsImplicitTag(t *testing.T) {
	attrs, err := BuildSignedAttributes([]byte("content"), hashing.SHA1)
	require.NoError(t, err)

	tagged := make([]byte, len(attrs))
	copy(tagged, attrs)
	tagged[0] = 0xA0

	parsed, err := ParseSignedAttributes(tagged)
	require.NoError(t, err)
	require.Len(t, parsed.MessageDigest, 20)
	require.Equal(t, attrs, ToSetEncoding(tagged))
}

func TestParseSignedAttributesWithoutDigest(t *testing.T) {
	contentType, err := asn1.Marshal(OIDLDSSecurityObject)
	require.NoError(t, err)
	only, err := asn1.MarshalWithParams([]attribute{
		{Type: oidContentType, Values: []asn1.RawValue{{FullBytes: contentType}}},
	}, "set")
	require.NoError(t, err)

	_, err = ParseSignedAttributes(only)
	require.ErrorContains(t, err, "messageDigest")

	_, err = ParseSignedAttributes(nil)
	require.Error(t, err)
}

func TestParseSignedAttributesSigningTime(t *testing.T) {
	digest, err := asn1.Marshal(make([]byte, 32))
	require.NoError(t, err)
	signedAt := time.Date(2024, time.March, 9, 14, 30, 0, 0, time.UTC)
	signingTime, err := asn1.Marshal(signedAt)
	require.NoError(t, err)

	attrs, err := asn1.MarshalWithParams([]attribute{
		{Type: oidMessageDigest, Values: []asn1.RawValue{{FullBytes: digest}}},
		{Type: oidSigningTime, Values: []asn1.RawValue{{FullBytes: signingTime}}},
	}, "set")
	require.NoError(t, err)

	parsed, err := ParseSignedAttributes(attrs)
	require.NoError(t, err)
	require.True(t, signedAt.Equal(parsed.SigningTime))

	withoutTime, err := BuildSignedAttributes([]byte("content"), hashing.SHA256)
	require.NoError(t, err)
	parsed, err = ParseSignedAttributes(withoutTime)
	require.NoError(t, err)
	require.True(t, parsed.SigningTime.IsZero())

	broken, err := asn1.MarshalWithParams([]attribute{
		{Type: oidMessageDigest, Values: []asn1.RawValue{{FullBytes: digest}}},
		{Type: oidSigningTime, Values: []asn1.RawValue{{FullBytes: digest}}},
	}, "set")
	require.NoError(t, err)
	_, err = ParseSignedAttributes(broken)
	require.ErrorContains(t, err, "signing time")
}

func TestParseEContentRejectsGarbage(t *testing.T) {
	_, _, err := ParseEContent([]byte{0x30, 0x03, 0x02, 0x01})
	require.Error(t, err)
}
