// Package phoneval validates phone numbers fully offline.
//
// All checks run against embedded libphonenumber metadata — the validator
// never performs network I/O and is safe to call on the request hot path.
package phoneval

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NumberType classifies a parsed number.
type NumberType string

const (
	TypeMobile      NumberType = "mobile"
	TypeLandline    NumberType = "landline"
	TypeTollFree    NumberType = "toll_free"
	TypeVOIP        NumberType = "voip"
	TypePremiumRate NumberType = "premium_rate"
	TypeUnknown     NumberType = "unknown"
)

// Result is the outcome of validating a single phone number.
type Result struct {
	Raw              string     `json:"raw"`
	E164             string     `json:"e164,omitempty"`
	Valid            bool       `json:"valid"`
	Country          string     `json:"country,omitempty"`
	Region           string     `json:"region,omitempty"`
	Type             NumberType `json:"type"`
	Carrier          string     `json:"carrier,omitempty"`
	Suspicious       bool       `json:"suspicious"`
	SuspiciousReason string     `json:"suspicious_reason,omitempty"`
}

// Validator parses and validates numbers against a default region.
type Validator struct {
	defaultRegion string
}

// NewValidator creates a validator. An empty region defaults to US.
func NewValidator(defaultRegion string) *Validator {
	if defaultRegion == "" {
		defaultRegion = "US"
	}
	return &Validator{defaultRegion: defaultRegion}
}

// Validate parses raw against region (or the default region when empty),
// normalizes to E.164, and runs the suspicious-pattern checks.
func (v *Validator) Validate(raw, region string) Result {
	if region == "" {
		region = v.defaultRegion
	}

	res := Result{Raw: raw, Type: TypeUnknown}

	candidate := MapVanityLetters(raw)
	num, err := phonenumbers.Parse(candidate, region)
	if err != nil {
		res.Suspicious = true
		res.SuspiciousReason = "Invalid phone number format"
		return res
	}

	national := phonenumbers.GetNationalSignificantNumber(num)
	if len(national) < 7 {
		res.Suspicious = true
		res.SuspiciousReason = "Invalid phone number format"
		return res
	}

	res.Valid = phonenumbers.IsValidNumber(num)
	possible := phonenumbers.IsPossibleNumber(num)

	if res.Valid || possible {
		res.Country = phonenumbers.GetRegionCodeForNumber(num)
		res.Type = mapNumberType(phonenumbers.GetNumberType(num))

		if geo, err := phonenumbers.GetGeocodingForNumber(num, "en"); err == nil {
			res.Region = geo
		}
		if carrier, err := phonenumbers.GetCarrierForNumber(num, "en"); err == nil {
			res.Carrier = carrier
		}
	}

	if reason, bad := DetectSuspiciousPattern(national, res.Type); bad {
		res.Suspicious = true
		res.SuspiciousReason = reason
	}

	// E.164 is reported only for numbers downstream tools should act on:
	// valid ones and pattern-flagged ones. A merely possible number that
	// fails validation and trips no pattern stays unnormalized.
	if res.Valid || res.Suspicious {
		res.E164 = phonenumbers.Format(num, phonenumbers.E164)
	}

	if !res.Valid && !res.Suspicious && !possible {
		res.Suspicious = true
		res.SuspiciousReason = "Invalid phone number format"
	}

	return res
}

func mapNumberType(t phonenumbers.PhoneNumberType) NumberType {
	switch t {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
		return TypeMobile
	case phonenumbers.FIXED_LINE:
		return TypeLandline
	case phonenumbers.TOLL_FREE:
		return TypeTollFree
	case phonenumbers.VOIP:
		return TypeVOIP
	case phonenumbers.PREMIUM_RATE:
		return TypePremiumRate
	default:
		return TypeUnknown
	}
}

// vanityKeypad maps dial-pad letters to digits (A,B,C→2 ... W,X,Y,Z→9).
var vanityKeypad = map[rune]rune{
	'A': '2', 'B': '2', 'C': '2',
	'D': '3', 'E': '3', 'F': '3',
	'G': '4', 'H': '4', 'I': '4',
	'J': '5', 'K': '5', 'L': '5',
	'M': '6', 'N': '6', 'O': '6',
	'P': '7', 'Q': '7', 'R': '7', 'S': '7',
	'T': '8', 'U': '8', 'V': '8',
	'W': '9', 'X': '9', 'Y': '9', 'Z': '9',
}

// MapVanityLetters rewrites dial-pad letters (1-800-FLOWERS) to digits.
// Non-letter characters pass through untouched.
func MapVanityLetters(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
	}) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if d, ok := vanityKeypad[r]; ok {
			b.WriteRune(d)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContainsVanityLetters reports whether s has dial-pad letters that map to digits.
func ContainsVanityLetters(s string) bool {
	for _, r := range strings.ToUpper(s) {
		if _, ok := vanityKeypad[r]; ok {
			return true
		}
	}
	return false
}
