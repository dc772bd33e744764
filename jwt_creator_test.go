package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"go-credential-verifier/verifier"
)

// writeTestKey writes a fresh RSA key to a temporary PEM file.
func writeTestKey(t *testing.T) (string, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "priv.pem")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path, &key.PublicKey
}

func validResult() verifier.Result {
	return verifier.Result{
		AttestationID: verifier.Passport,
		IsValidDetails: verifier.IsValidDetails{
			IsValid:           true,
			IsMinimumAgeValid: true,
			IsOfacValid:       false,
		},
		ForbiddenCountriesList: []string{"PRK"},
		DiscloseOutput: verifier.DiscloseOutput{
			Nullifier:    "987654321",
			IssuingState: "FRA",
			Name:         "DUPONT JEAN",
			IDNumber:     "AB1234567",
			Nationality:  "FRA",
			DateOfBirth:  "01-01-90",
			Gender:       "M",
			ExpiryDate:   "01-01-30",
			MinimumAge:   "18",
			Ofac:         []bool{false, false, false},
		},
		UserData: verifier.UserData{
			UserIdentifier:  "0x94ba0b1c4a5d11c28f9aa2a5b6ed3f2dc1a6e8d7",
			UserDefinedData: "68656c6c6f",
		},
	}
}

func TestCreatingJwt(t *testing.T) {
	keyPath, publicKey := writeTestKey(t)
	jc, err := NewIrmaJwtCreator(keyPath, "credential_verifier", "pbdf-staging.pbdf.disclosure", 25)
	require.NoError(t, err)

	tokenString, err := jc.CreateDisclosureJwt(validResult())
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	parsed, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, keyFuncFor(publicKey))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, "credential_verifier", claims["iss"])
}

func TestCreatingJwtRejectsInvalidProof(t *testing.T) {
	keyPath, _ := writeTestKey(t)
	jc, err := NewIrmaJwtCreator(keyPath, "credential_verifier", "pbdf-staging.pbdf.disclosure", 25)
	require.NoError(t, err)

	result := validResult()
	result.IsValidDetails.IsValid = false
	_, err = jc.CreateDisclosureJwt(result)
	require.Error(t, err)
}

func TestDisclosureAttributes(t *testing.T) {
	attributes := disclosureAttributes(validResult())

	require.Equal(t, "passport", attributes["attestationType"])
	require.Equal(t, "0x94ba0b1c4a5d11c28f9aa2a5b6ed3f2dc1a6e8d7", attributes["userIdentifier"])
	require.Equal(t, "987654321", attributes["nullifier"])
	require.Equal(t, "FRA", attributes["nationality"])
	require.Equal(t, "18", attributes["minimumAge"])
	require.Equal(t, "Yes", attributes["isMinimumAgeValid"])
	require.Equal(t, "No", attributes["isOfacValid"])
	require.Equal(t, "1", attributes["forbiddenCount"])
	require.NotContains(t, attributes, "idNumber")
}

func TestBatchSizeConfiguration(t *testing.T) {
	keyPath, publicKey := writeTestKey(t)

	for _, batchSize := range []uint{1, 10, 25, 100} {
		t.Run(fmt.Sprintf("batch size %d", batchSize), func(t *testing.T) {
			jc, err := NewIrmaJwtCreator(keyPath, "credential_verifier", "pbdf-staging.pbdf.disclosure", batchSize)
			require.NoError(t, err)
			require.Equal(t, batchSize, jc.sdJwtBatchSize)

			issuanceReq := jc.createIssuanceRequest(disclosureAttributes(validResult()))
			require.Len(t, issuanceReq.Credentials, 1, "Should have exactly one credential request")
			require.Equal(t, batchSize, issuanceReq.Credentials[0].SdJwtBatchSize)
			require.Equal(t, "FRA", issuanceReq.Credentials[0].Attributes["issuingState"])

			jwtString, err := jc.CreateDisclosureJwt(validResult())
			require.NoError(t, err)
			parsed, err := jwt.ParseWithClaims(jwtString, jwt.MapClaims{}, keyFuncFor(publicKey))
			require.NoError(t, err)
			require.True(t, parsed.Valid)
		})
	}
}

func keyFuncFor(publicKey *rsa.PublicKey) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Header["alg"])
		}
		return publicKey, nil
	}
}

func TestNewIrmaJwtCreator_ErrorCases(t *testing.T) {
	t.Run("file not found", func(t *testing.T) {
		_, err := NewIrmaJwtCreator("./nonexistent.pem", "issuer", "credential", 25)
		require.Error(t, err)
	})

	t.Run("invalid PEM format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.pem")
		require.NoError(t, os.WriteFile(path, []byte("this is not a valid PEM file"), 0o600))

		_, err := NewIrmaJwtCreator(path, "issuer", "credential", 25)
		require.Error(t, err)
	})
}
