package mrz

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gmrtd/gmrtd/document"
)

// Holder is the parsed view of an MRZ.
type Holder struct {
	DocumentCode   string
	IssuingState   string
	LastName       string
	FirstName      string
	DocumentNumber string
	Nationality    string
	DateOfBirth    time.Time
	Sex            string
	DateOfExpiry   time.Time
}

// Decode parses an MRZ through its DG1 encoding. Check digits are validated by the
// underlying parser, so mock documents with placeholder digits may be rejected.
func Decode(mrz string) (*Holder, error) {
	if err := Validate(mrz); err != nil {
		return nil, err
	}

	dg1, err := document.NewDG1(FormatDG1(mrz))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DG1: %w", err)
	}
	if dg1 == nil {
		return nil, fmt.Errorf("DG1 has no MRZ")
	}

	dob, err := ParseDateOfBirth(dg1.Mrz.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date of birth: %w", err)
	}
	doe, err := ParseExpiryDate(dg1.Mrz.DateOfExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date of expiry: %w", err)
	}

	holder := &Holder{
		DocumentCode:   dg1.Mrz.DocumentCode,
		IssuingState:   dg1.Mrz.IssuingState,
		LastName:       strings.TrimSpace(dg1.Mrz.NameOfHolder.Primary),
		FirstName:      strings.TrimSpace(dg1.Mrz.NameOfHolder.Secondary),
		DocumentNumber: dg1.Mrz.DocumentNumber,
		Nationality:    dg1.Mrz.Nationality,
		DateOfBirth:    dob,
		Sex:            dg1.Mrz.Sex,
		DateOfExpiry:   doe,
	}
	slog.Debug("Decoded MRZ", "document_code", holder.DocumentCode, "issuing_state", holder.IssuingState)
	return holder, nil
}
