package phoneval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNormalizesToE164(t *testing.T) {
	v := NewValidator("US")

	res := v.Validate("+1 (650) 253-0000", "")
	require.True(t, res.Valid)
	assert.Equal(t, "+16502530000", res.E164)
	assert.Equal(t, "US", res.Country)
	assert.False(t, res.Suspicious)
}

func TestValidateIdempotentOnE164(t *testing.T) {
	v := NewValidator("US")

	first := v.Validate("(800) 555-0199", "")
	require.NotEmpty(t, first.E164)

	second := v.Validate(first.E164, "")
	assert.Equal(t, first.E164, second.E164)
	assert.Equal(t, first.Country, second.Country)
	assert.Equal(t, first.Type, second.Type)
}

func TestValidateAllZeros(t *testing.T) {
	v := NewValidator("US")

	res := v.Validate("1-800-000-0000", "")
	assert.True(t, res.Suspicious)
	assert.Contains(t, res.SuspiciousReason, "zero")
	// E.164 still present for pattern-suspicious numbers that parse.
	assert.Equal(t, "+18000000000", res.E164)
}

func TestValidatePossibleButInvalidOmitsE164(t *testing.T) {
	v := NewValidator("US")

	// 555 is not an assigned area code: the number has a plausible length
	// but fails validation and trips no digit pattern.
	res := v.Validate("555-019-2834", "")
	assert.False(t, res.Valid)
	assert.Empty(t, res.E164, "only valid or pattern-flagged numbers get normalized")
}

func TestValidateGarbage(t *testing.T) {
	v := NewValidator("US")

	res := v.Validate("not a number", "")
	assert.False(t, res.Valid)
	assert.True(t, res.Suspicious)
	assert.Equal(t, "Invalid phone number format", res.SuspiciousReason)
}

func TestVanityLetters(t *testing.T) {
	assert.Equal(t, "1-800-3569377", MapVanityLetters("1-800-FLOWERS"))
	assert.True(t, ContainsVanityLetters("1-800-FLOWERS"))
	assert.False(t, ContainsVanityLetters("+18005551234"))

	v := NewValidator("US")
	res := v.Validate("1-800-FLOWERS", "")
	assert.Equal(t, "+18003569377", res.E164)
}

func TestDetectSuspiciousPattern(t *testing.T) {
	tests := []struct {
		name   string
		digits string
		want   bool
	}{
		{"zero-dominated", "8000000000", true},
		{"pure zeros", "0000000", true},
		{"all same", "5555555555", true},
		{"ascending", "123456789", true},
		{"descending", "987654321", true},
		{"repeating block", "123123123123", true},
		{"dominant digit", "8008008000", true},
		{"normal", "6502530000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := DetectSuspiciousPattern(tt.digits, TypeUnknown)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectSuspiciousPatternPriority(t *testing.T) {
	// All-zeros must win over all-same-digit.
	reason, ok := DetectSuspiciousPattern("0000000000", TypeUnknown)
	require.True(t, ok)
	assert.Contains(t, reason, "zero")

	reason, ok = DetectSuspiciousPattern("6502530000", TypePremiumRate)
	require.True(t, ok)
	assert.Contains(t, reason, "Premium-rate")
}
