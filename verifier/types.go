package verifier

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
)

// AttestationID identifies a document family.
type AttestationID int

const (
	Passport AttestationID = 1
	EUCard   AttestationID = 2
	Aadhaar  AttestationID = 3
)

// AllIDs enables every known attestation.
var AllIDs = map[AttestationID]bool{
	Passport: true,
	EUCard:   true,
	Aadhaar:  true,
}

func (id AttestationID) String() string {
	switch id {
	case Passport:
		return "passport"
	case EUCard:
		return "eu_id_card"
	case Aadhaar:
		return "aadhaar"
	default:
		return strconv.Itoa(int(id))
	}
}

// Bytes32 is the 32-byte big-endian form the hub is keyed by.
func (id AttestationID) Bytes32() [32]byte {
	var out [32]byte
	big.NewInt(int64(id)).FillBytes(out[:])
	return out
}

// Proof is a Groth16 proof with decimal field elements.
type Proof struct {
	A [2]string    `json:"a"`
	B [2][2]string `json:"b"`
	C [2]string    `json:"c"`
}

// Policy is what a relying party requires of a disclosure.
type Policy struct {
	MinimumAge        int      `json:"minimumAge,omitempty"`
	ExcludedCountries []string `json:"excludedCountries,omitempty"`
	Ofac              bool     `json:"ofac,omitempty"`
}

// IsEmpty reports whether the policy requires nothing, which stores use to signal
// an unknown config id.
func (p Policy) IsEmpty() bool {
	return p.MinimumAge == 0 && len(p.ExcludedCountries) == 0 && !p.Ofac
}

type IsValidDetails struct {
	IsValid           bool `json:"isValid"`
	IsMinimumAgeValid bool `json:"isMinimumAgeValid"`
	IsOfacValid       bool `json:"isOfacValid"`
}

type UserData struct {
	UserIdentifier  string `json:"userIdentifier"`
	UserDefinedData string `json:"userDefinedData"`
}

// DiscloseOutput is the decoded disclosure carried in the public signals.
type DiscloseOutput struct {
	Nullifier                    string   `json:"nullifier"`
	ForbiddenCountriesListPacked []string `json:"forbiddenCountriesListPacked"`
	IssuingState                 string   `json:"issuingState"`
	Name                         string   `json:"name"`
	IDNumber                     string   `json:"idNumber"`
	Nationality                  string   `json:"nationality"`
	DateOfBirth                  string   `json:"dateOfBirth"`
	Gender                       string   `json:"gender"`
	ExpiryDate                   string   `json:"expiryDate"`
	MinimumAge                   string   `json:"minimumAge"`
	Ofac                         []bool   `json:"ofac"`
}

// Result is the outcome of a verification that passed every consistency check.
// IsValidDetails.IsValid carries the proof verifier's answer.
type Result struct {
	AttestationID          AttestationID  `json:"attestationId"`
	IsValidDetails         IsValidDetails `json:"isValidDetails"`
	ForbiddenCountriesList []string       `json:"forbiddenCountriesList"`
	DiscloseOutput         DiscloseOutput `json:"discloseOutput"`
	UserData               UserData       `json:"userData"`
}

// UserIDType selects how the user identifier in the context data is rendered.
type UserIDType string

const (
	UserIDTypeHex  UserIDType = "hex"
	UserIDTypeUUID UserIDType = "uuid"
)

func ParseUserIDType(s string) (UserIDType, error) {
	switch UserIDType(s) {
	case "", UserIDTypeHex:
		return UserIDTypeHex, nil
	case UserIDTypeUUID:
		return UserIDTypeUUID, nil
	default:
		return "", fmt.Errorf("unknown user identifier type %q", s)
	}
}

// ProofVerifier checks a proof against its public signals. b is expected in the
// row-swapped layout.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, a [2]*big.Int, b [2][2]*big.Int, c [2]*big.Int, signals []*big.Int) (bool, error)
}

// CommitmentRegistry answers whether a merkle root is currently recognised.
type CommitmentRegistry interface {
	CheckIdentityCommitmentRoot(ctx context.Context, root *big.Int) (bool, error)
}

// Hub resolves the registry and proof verifier deployed for an attestation. A nil
// result with a nil error means nothing is deployed.
type Hub interface {
	Registry(ctx context.Context, attestationID [32]byte) (CommitmentRegistry, error)
	DiscloseVerifier(ctx context.Context, attestationID [32]byte) (ProofVerifier, error)
}

// PolicyStore resolves the policy a verification is checked against.
type PolicyStore interface {
	GetActionID(ctx context.Context, userIdentifier, userDefinedData string) (string, error)
	GetConfig(ctx context.Context, id string) (Policy, error)
	// SetConfig returns true when the id was not present before.
	SetConfig(ctx context.Context, id string, policy Policy) (bool, error)
}
