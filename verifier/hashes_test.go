package verifier

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatEndpoint(t *testing.T) {
	tests := map[string]string{
		"https://verifier.example.org/api/verify": "verifier.example.org",
		"http://localhost:3000/verify":            "localhost:3000",
		"verifier.example.org":                    "verifier.example.org",
		"https://verifier.example.org":            "verifier.example.org",
	}
	for in, want := range tests {
		require.Equal(t, want, FormatEndpoint(in), in)
	}
}

func TestStringToBigInt(t *testing.T) {
	n, err := StringToBigInt("AB")
	require.NoError(t, err)
	require.Equal(t, int64(0x4142), n.Int64())

	_, err = StringToBigInt("café")
	require.Error(t, err)

	_, err = StringToBigInt(strings.Repeat("a", 32))
	require.Error(t, err)
}

func TestHashEndpointWithScope(t *testing.T) {
	first, err := HashEndpointWithScope("https://verifier.example.org/api/verify", "census-app")
	require.NoError(t, err)
	again, err := HashEndpointWithScope("https://verifier.example.org/other/path", "census-app")
	require.NoError(t, err)
	require.Equal(t, first, again, "only the host takes part in the hash")

	other, err := HashEndpointWithScope("https://verifier.example.org", "another-app")
	require.NoError(t, err)
	require.NotEqual(t, first, other)

	long := "https://" + strings.Repeat("a", 31*maxChunks) + ".org"
	_, err = HashEndpointWithScope(long, "census-app")
	require.Error(t, err)

	_, err = HashEndpointWithScope("", "census-app")
	require.Error(t, err)

	_, err = HashEndpointWithScope("https://verifier.example.org", strings.Repeat("s", 32))
	require.Error(t, err)
}

func TestUserContextHash(t *testing.T) {
	// RIPEMD160(SHA256("")) is a well-known constant.
	require.Equal(t, "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb", hex.EncodeToString(UserContextHash(nil).Bytes()))
	require.NotEqual(t, UserContextHash([]byte{1}), UserContextHash([]byte{2}))
}

func TestCastUserIdentifier(t *testing.T) {
	n, _ := new(big.Int).SetString("abc", 16)
	require.Equal(t, "0x"+strings.Repeat("0", 37)+"abc", CastToAddress(n))
	require.Equal(t, "00000000-0000-0000-0000-000000000001", CastToUUID(big.NewInt(1)))
	require.Equal(t, CastToAddress(n), CastToUserIdentifier(n, UserIDTypeHex))
	require.Equal(t, CastToUUID(n), CastToUserIdentifier(n, UserIDTypeUUID))
	require.Equal(t, "2748", CastToUserIdentifier(n, UserIDType("decimal")))
}

func TestSplitContextData(t *testing.T) {
	configID := strings.Repeat("0", 63) + "1"
	userID := strings.Repeat("0", 60) + "beef"

	data, err := SplitContextData(configID + userID + "cafe")
	require.NoError(t, err)
	require.Equal(t, configID, data.ConfigID)
	require.Equal(t, int64(0xbeef), data.UserIdentifier.Int64())
	require.Equal(t, "cafe", data.UserDefinedData)

	_, err = SplitContextData(configID)
	require.EqualError(t, err, "userContextData too short")

	_, err = SplitContextData(configID + strings.Repeat("z", 64))
	require.Error(t, err)
}

func TestParseUserIDType(t *testing.T) {
	for in, want := range map[string]UserIDType{"": UserIDTypeHex, "hex": UserIDTypeHex, "uuid": UserIDTypeUUID} {
		got, err := ParseUserIDType(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseUserIDType("base58")
	require.Error(t, err)
}
