package verifier

import (
	"fmt"
	"strings"
)

// IssueKind classifies a batched configuration issue.
type IssueKind string

const (
	InvalidID                     IssueKind = "InvalidId"
	InvalidUserContextHash        IssueKind = "InvalidUserContextHash"
	InvalidScope                  IssueKind = "InvalidScope"
	InvalidRoot                   IssueKind = "InvalidRoot"
	InvalidAttestationID          IssueKind = "InvalidAttestationId"
	InvalidForbiddenCountriesList IssueKind = "InvalidForbiddenCountriesList"
	InvalidMinimumAge             IssueKind = "InvalidMinimumAge"
	InvalidTimestamp              IssueKind = "InvalidTimestamp"
	InvalidOfac                   IssueKind = "InvalidOfac"
	ConfigNotFound                IssueKind = "ConfigNotFound"
)

type Issue struct {
	Type    IssueKind `json:"type"`
	Message string    `json:"message"`
}

// ConfigMismatchError carries every issue found in one verification.
type ConfigMismatchError struct {
	Issues []Issue `json:"issues"`
}

func (e *ConfigMismatchError) Error() string {
	lines := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		lines = append(lines, fmt.Sprintf("[%s]: %s", issue.Type, issue.Message))
	}
	return strings.Join(lines, "\n")
}

// Has reports whether an issue of the given kind was found.
func (e *ConfigMismatchError) Has(kind IssueKind) bool {
	for _, issue := range e.Issues {
		if issue.Type == kind {
			return true
		}
	}
	return false
}

// RegistryContractError is returned when no commitment registry is deployed for
// the attestation or the hub cannot resolve it.
type RegistryContractError struct {
	AttestationID AttestationID
	Err           error
}

func (e *RegistryContractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry contract not found for attestation %d: %v", e.AttestationID, e.Err)
	}
	return fmt.Sprintf("registry contract not found for attestation %d", e.AttestationID)
}

func (e *RegistryContractError) Unwrap() error { return e.Err }

// VerifierContractError is returned when no proof verifier is deployed for the
// attestation.
type VerifierContractError struct {
	AttestationID AttestationID
	Err           error
}

func (e *VerifierContractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verifier contract not found for attestation %d: %v", e.AttestationID, e.Err)
	}
	return fmt.Sprintf("verifier contract not found for attestation %d", e.AttestationID)
}

func (e *VerifierContractError) Unwrap() error { return e.Err }

// ExternalServiceError wraps a timed out call to an external collaborator.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s did not respond: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
