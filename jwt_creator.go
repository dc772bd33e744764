package main

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	irma "github.com/privacybydesign/irmago"

	"go-credential-verifier/verifier"
)

type JwtCreator interface {
	CreateDisclosureJwt(result verifier.Result) (jwt string, err error)
}

func NewIrmaJwtCreator(privateKeyPath string,
	issuerId string,
	credential string,
	sdJwtBatchSize uint,
) (*DefaultJwtCreator, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)

	if err != nil {
		return nil, err
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)

	if err != nil {
		return nil, err
	}

	return &DefaultJwtCreator{
		issuerId:       issuerId,
		privateKey:     privateKey,
		credential:     credential,
		sdJwtBatchSize: sdJwtBatchSize,
	}, nil
}

type DefaultJwtCreator struct {
	privateKey     *rsa.PrivateKey
	issuerId       string
	credential     string
	sdJwtBatchSize uint
}

func (jc *DefaultJwtCreator) createJwt(attributes map[string]string) (string, error) {
	issuanceRequest := jc.createIssuanceRequest(attributes)

	return irma.SignSessionRequest(
		issuanceRequest,
		jwt.GetSigningMethod(jwt.SigningMethodRS256.Alg()),
		jc.privateKey,
		jc.issuerId,
	)
}

// CreateDisclosureJwt turns a verified disclosure into a signed issuance request.
// Only results whose proof was accepted can be issued.
func (jc *DefaultJwtCreator) CreateDisclosureJwt(result verifier.Result) (string, error) {
	if !result.IsValidDetails.IsValid {
		return "", fmt.Errorf("refusing to issue an invalid proof for attestation %s", result.AttestationID)
	}
	return jc.createJwt(disclosureAttributes(result))
}

func disclosureAttributes(result verifier.Result) map[string]string {
	disclosed := result.DiscloseOutput
	return map[string]string{
		"attestationType":   result.AttestationID.String(),
		"userIdentifier":    result.UserData.UserIdentifier,
		"nullifier":         disclosed.Nullifier,
		"issuingState":      disclosed.IssuingState,
		"nationality":       disclosed.Nationality,
		"name":              disclosed.Name,
		"dateOfBirth":       disclosed.DateOfBirth,
		"gender":            disclosed.Gender,
		"dateOfExpiry":      disclosed.ExpiryDate,
		"minimumAge":        disclosed.MinimumAge,
		"isMinimumAgeValid": yesNo(result.IsValidDetails.IsMinimumAgeValid),
		"isOfacValid":       yesNo(result.IsValidDetails.IsOfacValid),
		"forbiddenCount":    strconv.Itoa(len(result.ForbiddenCountriesList)),
	}
}

func yesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

// createIssuanceRequest creates an IRMA issuance request with the disclosed attributes
// This is a separate method to allow for easier testing
func (jc *DefaultJwtCreator) createIssuanceRequest(attributes map[string]string) *irma.IssuanceRequest {
	validity := irma.Timestamp(time.Unix(time.Now().AddDate(1, 0, 0).Unix(), 0)) // 1 year from now

	return irma.NewIssuanceRequest([]*irma.CredentialRequest{
		{
			CredentialTypeID: irma.NewCredentialTypeIdentifier(jc.credential),
			Attributes:       attributes,
			SdJwtBatchSize:   jc.sdJwtBatchSize,
			Validity:         &validity,
		},
	})
}
