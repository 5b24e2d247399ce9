package domainrep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamshield/backend/internal/infra"
)

func newTestTool() *Tool {
	return &Tool{kv: infra.NewMemoryKV(), cfg: Config{CacheTTL: time.Hour}}
}

func TestCheckDomainYoungDomainInvalidSSL(t *testing.T) {
	tool := newTestTool()
	tool.ageCheck = func(ctx context.Context, domain string) (int, error) { return 3, nil }
	tool.sslCheck = func(ctx context.Context, domain string) (sslInfo, error) {
		return sslInfo{valid: false}, nil
	}

	res := tool.CheckDomain(context.Background(), "https://secure-bank-2025.tk/login")

	require.Equal(t, "secure-bank-2025.tk", res.Domain)
	require.NotNil(t, res.AgeDays)
	assert.Equal(t, 3, *res.AgeDays)
	assert.True(t, res.ChecksCompleted[CheckAge])
	assert.True(t, res.ChecksCompleted[CheckSSL])
	assert.False(t, res.ChecksCompleted[CheckVirusTotal], "no API key, never attempted")

	// Only age and SSL completed: raw 30+20 over a denominator of 50.
	assert.Equal(t, 100, res.RiskScore)
	assert.Equal(t, RiskHigh, res.RiskLevel)
}

func TestCheckDomainEstablishedBenign(t *testing.T) {
	tool := newTestTool()
	tool.ageCheck = func(ctx context.Context, domain string) (int, error) { return 6000, nil }
	tool.sslCheck = func(ctx context.Context, domain string) (sslInfo, error) {
		return sslInfo{valid: true, expiryDays: 200}, nil
	}
	tool.vtCheck = func(ctx context.Context, domain string) (vtInfo, error) {
		return vtInfo{malicious: 0, total: 90}, nil
	}
	tool.sbCheck = func(ctx context.Context, domain string) (sbInfo, error) {
		return sbInfo{flagged: false}, nil
	}

	res := tool.CheckDomain(context.Background(), "paypal.com")
	assert.Equal(t, 0, res.RiskScore)
	assert.Equal(t, RiskLow, res.RiskLevel)
	for name, done := range res.ChecksCompleted {
		assert.True(t, done, name)
	}
}

func TestCheckDomainAdaptiveDenominator(t *testing.T) {
	// Same signals, fewer completed checks: the score scales up because the
	// denominator only counts what ran.
	full := newTestTool()
	full.ageCheck = func(ctx context.Context, domain string) (int, error) { return 20, nil }
	full.sslCheck = func(ctx context.Context, domain string) (sslInfo, error) {
		return sslInfo{valid: true, expiryDays: 365}, nil
	}
	full.vtCheck = func(ctx context.Context, domain string) (vtInfo, error) {
		return vtInfo{malicious: 0, total: 90}, nil
	}
	full.sbCheck = func(ctx context.Context, domain string) (sbInfo, error) {
		return sbInfo{flagged: false}, nil
	}

	partial := newTestTool()
	partial.ageCheck = full.ageCheck
	partial.sslCheck = func(ctx context.Context, domain string) (sslInfo, error) {
		return sslInfo{}, errors.New("connection refused")
	}

	fullRes := full.CheckDomain(context.Background(), "example.com")
	partialRes := partial.CheckDomain(context.Background(), "example.com")

	// 20 points: /130 completed vs /30 completed.
	assert.Equal(t, 15, fullRes.RiskScore)
	assert.Equal(t, RiskLow, fullRes.RiskLevel)
	assert.Equal(t, 67, partialRes.RiskScore)
	assert.Equal(t, RiskMedium, partialRes.RiskLevel)
	assert.Contains(t, partialRes.Errors[CheckSSL], "connection refused")
}

func TestCheckDomainMaliciousVerdicts(t *testing.T) {
	tool := newTestTool()
	tool.ageCheck = func(ctx context.Context, domain string) (int, error) { return 10, nil }
	tool.sslCheck = func(ctx context.Context, domain string) (sslInfo, error) {
		return sslInfo{valid: true, expiryDays: 15}, nil
	}
	tool.vtCheck = func(ctx context.Context, domain string) (vtInfo, error) {
		return vtInfo{malicious: 45, total: 90}, nil
	}
	tool.sbCheck = func(ctx context.Context, domain string) (sbInfo, error) {
		return sbInfo{flagged: true, threatTypes: []string{"SOCIAL_ENGINEERING"}}, nil
	}

	res := tool.CheckDomain(context.Background(), "evil.example")
	// age 20 + ssl expiring 10 + vt 20 + sb 40 = 90 over 130.
	assert.Equal(t, 69, res.RiskScore)
	assert.Equal(t, RiskMedium, res.RiskLevel)
	assert.Equal(t, []string{"SOCIAL_ENGINEERING"}, res.ThreatTypes)
}

func TestCheckDomainAllChecksFail(t *testing.T) {
	tool := newTestTool()
	tool.ageCheck = func(ctx context.Context, domain string) (int, error) {
		return 0, errors.New("whois timeout")
	}
	tool.sslCheck = func(ctx context.Context, domain string) (sslInfo, error) {
		return sslInfo{}, errors.New("dial timeout")
	}

	res := tool.CheckDomain(context.Background(), "unreachable.example")
	assert.Equal(t, 0, res.RiskScore)
	assert.Equal(t, RiskUnknown, res.RiskLevel)
	assert.Len(t, res.Errors, 2)
}

func TestCheckDomainCaching(t *testing.T) {
	tool := newTestTool()
	ageCalls := 0
	tool.ageCheck = func(ctx context.Context, domain string) (int, error) {
		ageCalls++
		return 3, nil
	}
	tool.sslCheck = func(ctx context.Context, domain string) (sslInfo, error) {
		return sslInfo{valid: true, expiryDays: 100}, nil
	}

	first := tool.CheckDomain(context.Background(), "cached.example")
	second := tool.CheckDomain(context.Background(), "cached.example")

	assert.Equal(t, 1, ageCalls, "second call must come from cache")
	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.Equal(t, first.RiskLevel, second.RiskLevel)
}

func TestCheckDomainEmptyInput(t *testing.T) {
	tool := newTestTool()
	res := tool.CheckDomain(context.Background(), "")
	assert.Equal(t, RiskUnknown, res.RiskLevel)
	assert.Empty(t, res.Domain)
}

func TestParseWhoisDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-08-01T12:00:00Z", true},
		{"2025-08-01", true},
		{"01-Aug-2025", true},
		{"2025.08.01", true},
		{"", false},
		{"not a date", false},
	}
	for _, tc := range cases {
		_, err := parseWhoisDate(tc.in)
		if tc.ok {
			assert.NoError(t, err, tc.in)
		} else {
			assert.Error(t, err, tc.in)
		}
	}
}

func TestScoreSelfSignedCert(t *testing.T) {
	info := infoFromCerts(nil, true)
	assert.True(t, info.valid)

	res := &Result{ChecksCompleted: map[string]bool{CheckSSL: true}}
	invalid := false
	res.SSLValid = &invalid
	score, level := score(res)
	assert.Equal(t, 100, score)
	assert.Equal(t, RiskHigh, level)
}
