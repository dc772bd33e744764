package verifier

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

const (
	chunkSize      = 31
	maxChunks      = 16
	configIDLength = 64
	userIDEnd      = 128
)

// UserContextHash is RIPEMD160(SHA256(data)) as a field element.
func UserContextHash(data []byte) *big.Int {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return new(big.Int).SetBytes(h.Sum(nil))
}

var scheme = regexp.MustCompile(`^https?://`)

// FormatEndpoint strips the scheme and path from an endpoint URL.
func FormatEndpoint(endpoint string) string {
	host := scheme.ReplaceAllString(endpoint, "")
	return strings.SplitN(host, "/", 2)[0]
}

// StringToBigInt packs an ASCII string of at most 31 bytes big-endian into an integer.
func StringToBigInt(s string) (*big.Int, error) {
	for _, r := range s {
		if r > 127 {
			return nil, fmt.Errorf("input must contain only ASCII characters")
		}
	}
	if len(s) > chunkSize {
		return nil, fmt.Errorf("input exceeds %d bytes", chunkSize)
	}
	return new(big.Int).SetBytes([]byte(s)), nil
}

// HashEndpointWithScope computes poseidon(poseidon(endpoint chunks), scope) as a
// decimal string, the value the circuit exposes as its scope signal.
func HashEndpointWithScope(endpoint, scope string) (string, error) {
	formatted := FormatEndpoint(endpoint)

	var chunks []*big.Int
	for len(formatted) > 0 {
		n := min(chunkSize, len(formatted))
		chunk, err := StringToBigInt(formatted[:n])
		if err != nil {
			return "", fmt.Errorf("failed to convert endpoint chunk: %w", err)
		}
		chunks = append(chunks, chunk)
		formatted = formatted[n:]
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("endpoint is empty")
	}
	if len(chunks) > maxChunks {
		return "", fmt.Errorf("endpoint must be less than %d characters", maxChunks*chunkSize)
	}

	endpointHash, err := poseidon.Hash(chunks)
	if err != nil {
		return "", fmt.Errorf("failed to hash endpoint chunks: %w", err)
	}
	scopeInt, err := StringToBigInt(scope)
	if err != nil {
		return "", fmt.Errorf("failed to convert scope: %w", err)
	}
	result, err := poseidon.Hash([]*big.Int{endpointHash, scopeInt})
	if err != nil {
		return "", fmt.Errorf("failed to hash endpoint with scope: %w", err)
	}
	return result.String(), nil
}

// CastToUserIdentifier renders the user identifier from the context data.
func CastToUserIdentifier(n *big.Int, t UserIDType) string {
	switch t {
	case UserIDTypeHex:
		return CastToAddress(n)
	case UserIDTypeUUID:
		return CastToUUID(n)
	default:
		return n.String()
	}
}

// CastToAddress renders n as 0x followed by at least 40 hex digits.
func CastToAddress(n *big.Int) string {
	return "0x" + leftPad(n.Text(16), 40)
}

// CastToUUID renders the leading 128 bits of n's zero-padded hex form as a UUID.
func CastToUUID(n *big.Int) string {
	text := leftPad(n.Text(16), 32)
	raw, err := hex.DecodeString(text[:32])
	if err != nil {
		return text
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return text
	}
	return id.String()
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// ContextData is the decoded userContextData: config id, user identifier and the
// caller's own data, all hex.
type ContextData struct {
	ConfigID        string
	UserIdentifier  *big.Int
	UserDefinedData string
}

// SplitContextData splits userContextData. It needs at least 128 hex characters.
func SplitContextData(userContextData string) (*ContextData, error) {
	if len(userContextData) < userIDEnd {
		return nil, fmt.Errorf("userContextData too short")
	}
	userID, ok := new(big.Int).SetString(userContextData[configIDLength:userIDEnd], 16)
	if !ok {
		return nil, fmt.Errorf("user identifier is not hex")
	}
	return &ContextData{
		ConfigID:        userContextData[:configIDLength],
		UserIdentifier:  userID,
		UserDefinedData: userContextData[userIDEnd:],
	}, nil
}
