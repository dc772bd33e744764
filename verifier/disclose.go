package verifier

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Indices locates each value in an attestation's public signals.
type Indices struct {
	RevealedDataPacked           int
	ForbiddenCountriesListPacked int
	Nullifier                    int
	AttestationID                int
	MerkleRoot                   int
	CurrentDate                  int
	NamedobSmtRoot               int
	NameyobSmtRoot               int
	Scope                        int
	UserIdentifier               int
	PassportNoSmtRoot            int
}

var DiscloseIndices = map[AttestationID]Indices{
	Passport: {
		RevealedDataPacked:           0,
		ForbiddenCountriesListPacked: 3,
		Nullifier:                    7,
		AttestationID:                8,
		MerkleRoot:                   9,
		CurrentDate:                  10,
		NamedobSmtRoot:               17,
		NameyobSmtRoot:               18,
		Scope:                        19,
		UserIdentifier:               20,
		PassportNoSmtRoot:            16,
	},
	EUCard: {
		RevealedDataPacked:           0,
		ForbiddenCountriesListPacked: 4,
		Nullifier:                    8,
		AttestationID:                9,
		MerkleRoot:                   10,
		CurrentDate:                  11,
		NamedobSmtRoot:               17,
		NameyobSmtRoot:               18,
		Scope:                        19,
		UserIdentifier:               20,
		PassportNoSmtRoot:            99,
	},
	Aadhaar: {
		RevealedDataPacked:           2,
		ForbiddenCountriesListPacked: 6,
		Nullifier:                    0,
		AttestationID:                10,
		MerkleRoot:                   16,
		CurrentDate:                  11,
		NamedobSmtRoot:               14,
		NameyobSmtRoot:               15,
		Scope:                        17,
		UserIdentifier:               18,
		PassportNoSmtRoot:            99,
	},
}

const forbiddenCountriesSignals = 4

// byteRange is an inclusive byte range in the revealed data.
type byteRange struct{ start, end int }

func (s byteRange) of(b []byte) []byte { return b[s.start : s.end+1] }

type revealedLayout struct {
	issuingState byteRange
	name         byteRange
	idNumber     byteRange
	nationality  byteRange
	dateOfBirth  byteRange
	gender       byteRange
	expiryDate   byteRange
	olderThan    byteRange
	ofac         byteRange
	// bytes carried by each revealed-data signal, least significant first
	bytesCount []int
}

var revealedLayouts = map[AttestationID]revealedLayout{
	Passport: {
		issuingState: byteRange{2, 4},
		name:         byteRange{5, 43},
		idNumber:     byteRange{44, 52},
		nationality:  byteRange{54, 56},
		dateOfBirth:  byteRange{57, 62},
		gender:       byteRange{64, 64},
		expiryDate:   byteRange{65, 70},
		olderThan:    byteRange{88, 89},
		ofac:         byteRange{90, 92},
		bytesCount:   []int{31, 31, 31},
	},
	EUCard: {
		issuingState: byteRange{2, 4},
		name:         byteRange{60, 89},
		idNumber:     byteRange{5, 13},
		nationality:  byteRange{45, 47},
		dateOfBirth:  byteRange{30, 35},
		gender:       byteRange{37, 37},
		expiryDate:   byteRange{38, 43},
		olderThan:    byteRange{90, 91},
		ofac:         byteRange{92, 93},
		bytesCount:   []int{31, 31, 31, 1},
	},
	Aadhaar: {
		issuingState: byteRange{81, 111},
		name:         byteRange{9, 70},
		idNumber:     byteRange{71, 74},
		dateOfBirth:  byteRange{1, 8},
		gender:       byteRange{0, 0},
		olderThan:    byteRange{118, 118},
		ofac:         byteRange{116, 117},
		bytesCount:   []int{31, 31, 31, 26},
	},
}

// SignalCount is the length of the public-signal vector the proof verifier takes.
func SignalCount(id AttestationID) int {
	if id == Aadhaar {
		return 19
	}
	return 21
}

// ParseSignal parses a public signal, hex when prefixed with 0x and decimal otherwise.
func ParseSignal(signal string) (*big.Int, error) {
	n := new(big.Int)
	var ok bool
	if strings.HasPrefix(signal, "0x") {
		_, ok = n.SetString(signal, 0)
	} else {
		_, ok = n.SetString(signal, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid public signal %q", signal)
	}
	return n, nil
}

// NormalizeSignals prefixes hex-looking signals with 0x.
func NormalizeSignals(signals []string) []string {
	out := make([]string, len(signals))
	for i, signal := range signals {
		if signal != "" && !strings.HasPrefix(signal, "0x") && strings.ContainsAny(signal, "abcdefABCDEF") {
			out[i] = "0x" + signal
		} else {
			out[i] = signal
		}
	}
	return out
}

// unpackBytes splits each signal into count[i] bytes, least significant first.
// Signals beyond len(count) carry 31 bytes.
func unpackBytes(signals []string, count []int) ([]byte, error) {
	var out []byte
	mask := big.NewInt(0xff)
	for i, signal := range signals {
		n := 31
		if i < len(count) {
			n = count[i]
		}
		value, err := ParseSignal(signal)
		if err != nil {
			return nil, err
		}
		for j := 0; j < n; j++ {
			out = append(out, byte(new(big.Int).And(value, mask).Uint64()))
			value.Rsh(value, 8)
		}
	}
	return out, nil
}

// RevealedBytes unpacks the revealed-data signals of an attestation.
func RevealedBytes(id AttestationID, signals []string) ([]byte, error) {
	layout, ok := revealedLayouts[id]
	if !ok {
		return nil, fmt.Errorf("invalid attestation ID: %d", id)
	}
	start := DiscloseIndices[id].RevealedDataPacked
	end := start + len(layout.bytesCount)
	if len(signals) < end {
		return nil, fmt.Errorf("expected revealed data in signals %d-%d, got %d signals", start, end-1, len(signals))
	}
	return unpackBytes(signals[start:end], layout.bytesCount)
}

// UnpackForbiddenCountries decodes the packed excluded-country list into 3-letter codes.
func UnpackForbiddenCountries(packed []string) []string {
	raw, err := unpackBytes(packed, nil)
	if err != nil {
		return nil
	}
	joined := strings.ReplaceAll(string(raw), "\x00", "")

	var countries []string
	for i := 0; i+3 <= len(joined); i += 3 {
		countries = append(countries, joined[i:i+3])
	}
	return countries
}

var mrzFiller = regexp.MustCompile(`([A-Z])<+([A-Z])`)

func cleanName(raw string) string {
	name := mrzFiller.ReplaceAllString(raw, "$1 $2")
	name = strings.ReplaceAll(name, "<", "")
	return strings.TrimSpace(name)
}

// DecodeDisclosure decodes the revealed fields from normalized public signals.
func DecodeDisclosure(id AttestationID, signals []string) (DiscloseOutput, error) {
	layout, ok := revealedLayouts[id]
	if !ok {
		return DiscloseOutput{}, fmt.Errorf("invalid attestation ID: %d", id)
	}
	indices := DiscloseIndices[id]
	if len(signals) < SignalCount(id) {
		return DiscloseOutput{}, fmt.Errorf("expected %d public signals, got %d", SignalCount(id), len(signals))
	}
	revealed, err := RevealedBytes(id, signals)
	if err != nil {
		return DiscloseOutput{}, err
	}

	fc := indices.ForbiddenCountriesListPacked
	out := DiscloseOutput{
		Nullifier:                    signals[indices.Nullifier],
		ForbiddenCountriesListPacked: append([]string(nil), signals[fc:fc+forbiddenCountriesSignals]...),
		IssuingState:                 strings.ReplaceAll(string(layout.issuingState.of(revealed)), "\x00", ""),
		Name:                         strings.ReplaceAll(cleanName(string(layout.name.of(revealed))), "\x00", ""),
		IDNumber:                     string(layout.idNumber.of(revealed)),
		Gender:                       string(layout.gender.of(revealed)),
	}

	if id == Aadhaar {
		out.Nationality = "IND"
		var dob strings.Builder
		for _, b := range layout.dateOfBirth.of(revealed) {
			dob.WriteString(strconv.Itoa(int(b)))
		}
		out.DateOfBirth = dob.String()
		out.ExpiryDate = "UNAVAILABLE"
		out.MinimumAge = fmt.Sprintf("%02d", revealed[layout.olderThan.start])
	} else {
		out.Nationality = string(layout.nationality.of(revealed))
		out.DateOfBirth = string(layout.dateOfBirth.of(revealed))
		out.ExpiryDate = string(layout.expiryDate.of(revealed))
		out.MinimumAge = string(layout.olderThan.of(revealed))
	}

	// a zero byte means the holder is not on that list
	for _, b := range layout.ofac.of(revealed) {
		out.Ofac = append(out.Ofac, b == 0)
	}
	if len(out.Ofac) < 3 {
		out.Ofac = append([]bool{false}, out.Ofac...)
	}
	return out, nil
}

// DisclosedDate decodes the proof generation date. Passport and EU card proofs
// carry YYMMDD as six one-digit signals; Aadhaar proofs carry year, month and day
// as three signals.
func DisclosedDate(id AttestationID, signals []string) (time.Time, error) {
	indices, ok := DiscloseIndices[id]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid attestation ID: %d", id)
	}
	i := indices.CurrentDate

	var year, month, day int
	var err error
	if id == Aadhaar {
		if len(signals) < i+3 {
			return time.Time{}, fmt.Errorf("date signals out of range")
		}
		if year, err = digitsOf(signals[i]); err != nil {
			return time.Time{}, err
		}
		if month, err = digitsOf(signals[i+1]); err != nil {
			return time.Time{}, err
		}
		if day, err = digitsOf(signals[i+2]); err != nil {
			return time.Time{}, err
		}
	} else {
		if len(signals) < i+6 {
			return time.Time{}, fmt.Errorf("date signals out of range")
		}
		if year, err = digitsOf("20" + strings.Join(signals[i:i+2], "")); err != nil {
			return time.Time{}, err
		}
		if month, err = digitsOf(strings.Join(signals[i+2:i+4], "")); err != nil {
			return time.Time{}, err
		}
		if day, err = digitsOf(strings.Join(signals[i+4:i+6], "")); err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// digitsOf keeps the decimal digits of s and parses them.
func digitsOf(s string) (int, error) {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("no digits in date signal %q", s)
	}
	return strconv.Atoi(digits.String())
}
