package mrz

import (
	"fmt"
	"time"
)

const yymmdd = "060102"

// ParseExpiryDate parses a YYMMDD expiry date relative to now.
func ParseExpiryDate(dateStr string) (time.Time, error) {
	return parseExpiryDate(dateStr, time.Now())
}

func parseExpiryDate(dateStr string, now time.Time) (time.Time, error) {
	if len(dateStr) != 6 {
		return time.Time{}, &FormatError{Field: "expiryDate", Reason: fmt.Sprintf("invalid date format: %s", dateStr)}
	}
	parsed, err := time.Parse(yymmdd, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing date: %w", err)
	}

	// more than 30 years ago means the next century
	if parsed.Before(now.AddDate(-30, 0, 0)) {
		parsed = parsed.AddDate(100, 0, 0)
	}
	return parsed, nil
}

// ParseDateOfBirth parses a YYMMDD birth date. Two-digit years that would lie in
// the future belong to the previous century.
func ParseDateOfBirth(dateStr string) (time.Time, error) {
	return parseDateOfBirth(dateStr, time.Now())
}

func parseDateOfBirth(dateStr string, now time.Time) (time.Time, error) {
	if len(dateStr) != 6 {
		return time.Time{}, &FormatError{Field: "birthDate", Reason: fmt.Sprintf("invalid date format: %s", dateStr)}
	}
	parsed, err := time.Parse(yymmdd, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing date: %w", err)
	}

	if parsed.After(now) {
		parsed = parsed.AddDate(-100, 0, 0)
	}
	return parsed, nil
}

// AgeAt returns the completed years between birth and at.
func AgeAt(birth, at time.Time) int {
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}
