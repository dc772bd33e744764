// Package mrz formats and inspects the machine readable zone of TD3 passports
// (2 lines of 44) and TD1 identity cards (3 lines of 30).
package mrz

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Kind int

const (
	Passport Kind = iota
	IDCard
)

func (k Kind) String() string {
	if k == Passport {
		return "passport"
	}
	return "id_card"
}

const (
	PassportLength = 88
	IDCardLength   = 90

	td3LineLength = 44
	td1LineLength = 30
)

// Placeholder check digits used by mock documents. They are deterministic and do
// not follow ICAO 9303 mod-10.
const (
	placeholderDocumentNumber = '4'
	placeholderBirthDate      = '1'
	placeholderExpiryDate     = '5'
	placeholderOptional       = '0'
	placeholderComposite      = '2'
)

var (
	mrzAlphabet    = regexp.MustCompile(`^[A-Z0-9<]+$`)
	dateField      = regexp.MustCompile(`^[0-9]{6}$`)
	nameStrip      = regexp.MustCompile(`[^A-Z< ]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	documentStrip  = regexp.MustCompile(`[^A-Z0-9]`)
	countryCode    = regexp.MustCompile(`^[A-Z<]{1,3}$`)
)

// FormatError reports an input that cannot be laid out in the MRZ.
type FormatError struct {
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid MRZ field %s: %s", e.Field, e.Reason)
}

// Fields holds the holder and document data that go into the MRZ.
// Dates are YYMMDD. IssuingState defaults to Nationality.
type Fields struct {
	IssuingState   string
	Nationality    string
	LastName       string
	FirstName      string
	DocumentNumber string
	BirthDate      string
	ExpiryDate     string
	Sex            string
	OptionalData   string
}

type options struct {
	checkDigits bool
}

type Option func(*options)

// WithCheckDigits computes ICAO 9303 check digits instead of the placeholders.
func WithCheckDigits() Option {
	return func(o *options) { o.checkDigits = true }
}

// Format builds the MRZ string for the given document kind.
func Format(f Fields, kind Kind, opts ...Option) (string, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	nationality, err := formatCountry("nationality", f.Nationality)
	if err != nil {
		return "", err
	}
	issuing := nationality
	if f.IssuingState != "" {
		if issuing, err = formatCountry("issuingState", f.IssuingState); err != nil {
			return "", err
		}
	}

	documentNumber := documentStrip.ReplaceAllString(strings.ToUpper(f.DocumentNumber), "")
	if documentNumber == "" {
		return "", &FormatError{Field: "documentNumber", Reason: "empty after normalisation"}
	}
	if len(documentNumber) > 9 {
		return "", &FormatError{Field: "documentNumber", Reason: "longer than 9 characters"}
	}
	documentNumber = pad(documentNumber, 9)

	if !dateField.MatchString(f.BirthDate) {
		return "", &FormatError{Field: "birthDate", Reason: "must be exactly 6 digits (YYMMDD)"}
	}
	if !dateField.MatchString(f.ExpiryDate) {
		return "", &FormatError{Field: "expiryDate", Reason: "must be exactly 6 digits (YYMMDD)"}
	}

	width := td3LineLength - 5
	if kind == IDCard {
		width = td1LineLength
	}
	name, err := formatName(f.LastName, f.FirstName, width)
	if err != nil {
		return "", err
	}

	sex := formatSex(f.Sex)
	optional := documentStrip.ReplaceAllString(strings.ToUpper(f.OptionalData), "")

	if kind == Passport {
		return formatTD3(issuing, nationality, name, documentNumber, f.BirthDate, sex, f.ExpiryDate, pad(optional, 14), o), nil
	}
	return formatTD1(issuing, nationality, name, documentNumber, f.BirthDate, sex, f.ExpiryDate, pad(optional, 15), o), nil
}

func formatTD3(issuing, nationality, name, number, birth, sex, expiry, optional string, o options) string {
	line1 := "P<" + issuing + name

	numberCheck, birthCheck, expiryCheck := string(placeholderDocumentNumber), string(placeholderBirthDate), string(placeholderExpiryDate)
	optionalCheck := string(placeholderOptional)
	if o.checkDigits {
		numberCheck = string(CheckDigit(number))
		birthCheck = string(CheckDigit(birth))
		expiryCheck = string(CheckDigit(expiry))
		optionalCheck = string(CheckDigit(optional))
	}

	line2 := number + numberCheck + nationality + birth + birthCheck + sex + expiry + expiryCheck + optional + optionalCheck
	composite := string(placeholderComposite)
	if o.checkDigits {
		composite = string(CheckDigit(line2[0:10] + line2[13:20] + line2[21:43]))
	}
	return line1 + line2 + composite
}

func formatTD1(issuing, nationality, name, number, birth, sex, expiry, optional string, o options) string {
	numberCheck, birthCheck, expiryCheck := string(placeholderDocumentNumber), string(placeholderBirthDate), string(placeholderExpiryDate)
	if o.checkDigits {
		numberCheck = string(CheckDigit(number))
		birthCheck = string(CheckDigit(birth))
		expiryCheck = string(CheckDigit(expiry))
	}

	line1 := "I<" + issuing + number + numberCheck + optional
	line2 := birth + birthCheck + sex + expiry + expiryCheck + nationality + strings.Repeat("<", 11)
	composite := string(placeholderComposite)
	if o.checkDigits {
		composite = string(CheckDigit(line1[5:30] + line2[0:7] + line2[8:15] + line2[18:29]))
	}
	return line1 + line2 + composite + name
}

// formatName lays out PRIMARY<<SECONDARY in a field of the given width. The
// secondary identifier is cut first when the names do not fit.
func formatName(lastName, firstName string, width int) (string, error) {
	last := normalizeName(lastName)
	first := normalizeName(firstName)
	if last == "" {
		return "", &FormatError{Field: "lastName", Reason: "empty after normalisation"}
	}

	if len(last) >= width-2 {
		return last[:min(len(last), width)] + strings.Repeat("<", max(0, width-len(last))), nil
	}

	name := last + "<<" + first
	if len(name) > width {
		name = name[:width]
	}
	return pad(name, width), nil
}

// normalizeName uppercases, drops accents and reduces the value to [A-Z<].
func normalizeName(value string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		stripped = value
	}
	upper := strings.ToUpper(strings.TrimSpace(stripped))
	upper = nameStrip.ReplaceAllString(upper, "")
	upper = strings.TrimSpace(upper)
	return whitespaceRuns.ReplaceAllString(upper, "<")
}

func formatCountry(field, value string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(value))
	if !countryCode.MatchString(code) {
		return "", &FormatError{Field: field, Reason: fmt.Sprintf("%q is not a 3-letter code", value)}
	}
	return pad(code, 3), nil
}

func formatSex(value string) string {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "M", "MALE":
		return "M"
	case "F", "FEMALE":
		return "F"
	default:
		return "<"
	}
}

func pad(value string, width int) string {
	if len(value) >= width {
		return value[:width]
	}
	return value + strings.Repeat("<", width-len(value))
}

// KindOf classifies an MRZ by length alone: 88 characters is a passport, anything
// else is treated as an identity card.
func KindOf(mrz string) Kind {
	if len(mrz) == PassportLength {
		return Passport
	}
	return IDCard
}

// Validate checks the length and alphabet of an MRZ string.
func Validate(mrz string) error {
	if len(mrz) != PassportLength && len(mrz) != IDCardLength {
		return &FormatError{Field: "mrz", Reason: fmt.Sprintf("length %d, expected %d or %d", len(mrz), PassportLength, IDCardLength)}
	}
	if !mrzAlphabet.MatchString(mrz) {
		return &FormatError{Field: "mrz", Reason: "contains characters outside [A-Z0-9<]"}
	}
	return nil
}

// Lines splits an MRZ into its physical lines.
func Lines(mrz string) []string {
	width := td3LineLength
	if KindOf(mrz) == IDCard {
		width = td1LineLength
	}
	var lines []string
	for start := 0; start < len(mrz); start += width {
		lines = append(lines, mrz[start:min(start+width, len(mrz))])
	}
	return lines
}

// CheckDigit computes the ICAO 9303 mod-10 check digit with weights 7, 3, 1.
func CheckDigit(value string) byte {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(value); i++ {
		c := value[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'A' && c <= 'Z':
			v = int(c-'A') + 10
		default:
			v = 0
		}
		sum += v * weights[i%3]
	}
	return byte('0' + sum%10)
}

// FormatDG1 wraps an MRZ in the DG1 template (tag 61) with the MRZ data object (tag 5F1F).
func FormatDG1(mrz string) []byte {
	header := []byte{0x61, 0x5B, 0x5F, 0x1F, 0x58}
	if len(mrz) != PassportLength {
		header = []byte{0x61, 0x5D, 0x5F, 0x1F, 0x5A}
	}
	out := make([]byte, 0, len(header)+len(mrz))
	out = append(out, header...)
	return append(out, mrz...)
}
