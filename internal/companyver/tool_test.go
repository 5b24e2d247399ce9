package companyver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPatterns(t *testing.T) {
	cases := []struct {
		name string
		want []string
	}{
		{"Apex Global Pte Ltd", nil},
		{"Refund Processing Department", []string{PatternDepartmentStyle, PatternTrustBait}},
		{"Secure Holdings 2025", []string{PatternYearSuffix}},
		{"PayPal Refund Center", []string{PatternDepartmentStyle, PatternBrandLookalike, PatternTrustBait}},
		{"PayPal Inc", nil},
		{"DBS Verification Unit", []string{PatternDepartmentStyle, PatternBrandLookalike, PatternTrustBait}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, detectPatterns(tc.name), tc.name)
	}
}

func TestCheckCompanyRegistryMiss(t *testing.T) {
	tool := &Tool{}
	tool.acraLookup = func(ctx context.Context, name string) (registryHit, error) {
		return registryHit{}, nil
	}

	res := tool.CheckCompany(context.Background(), "Apex Global Pte Ltd", "SG")
	require.True(t, res.RegistryChecked)
	assert.False(t, res.RegistryFound)
	assert.True(t, res.Suspicious, "hinted jurisdiction with no registration is suspicious")
	assert.Empty(t, res.SuspiciousPatterns)
}

func TestCheckCompanyRegistryHit(t *testing.T) {
	tool := &Tool{}
	tool.chLookup = func(ctx context.Context, name string) (registryHit, error) {
		return registryHit{found: true, status: "active"}, nil
	}

	res := tool.CheckCompany(context.Background(), "Apex Global Limited", "GB")
	require.True(t, res.RegistryChecked)
	assert.True(t, res.RegistryFound)
	assert.Equal(t, "active", res.RegistryStatus)
	assert.False(t, res.Suspicious)
}

func TestCheckCompanyRegistryError(t *testing.T) {
	tool := &Tool{}
	tool.acraLookup = func(ctx context.Context, name string) (registryHit, error) {
		return registryHit{}, errors.New("upstream down")
	}

	res := tool.CheckCompany(context.Background(), "Apex Global Pte Ltd", "SG")
	assert.False(t, res.RegistryChecked, "failed lookup is not a verdict")
	assert.False(t, res.Suspicious)
}

func TestCheckCompanyNoRegistryForCountry(t *testing.T) {
	tool := NewTool(Config{})
	res := tool.CheckCompany(context.Background(), "Refund Processing Department", "US")
	assert.False(t, res.RegistryChecked)
	assert.True(t, res.Suspicious, "heuristics apply without a registry")
}

func TestNormalizeCompanyName(t *testing.T) {
	assert.Equal(t, "apex global", normalizeCompanyName("Apex Global Pte. Ltd."))
	assert.Equal(t, "apex global", normalizeCompanyName("APEX GLOBAL PTE LTD"))
	assert.Equal(t, "apex global", normalizeCompanyName("Apex Global Limited"))
	assert.Equal(t, "", normalizeCompanyName("Ltd"))
}
