// Package companyver applies naming heuristics and optional corporate
// registry lookups to company names extracted from suspicious messages.
package companyver

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Pattern names reported in Result.SuspiciousPatterns.
const (
	PatternDepartmentStyle = "government_style_department"
	PatternYearSuffix      = "year_suffix"
	PatternBrandLookalike  = "brand_lookalike"
	PatternTrustBait       = "trust_bait_wording"
)

// Result is the verification outcome for one company name.
type Result struct {
	Name               string   `json:"name"`
	CountryHint        string   `json:"country_hint,omitempty"`
	SuspiciousPatterns []string `json:"suspicious_patterns,omitempty"`
	RegistryChecked    bool     `json:"registry_checked"`
	RegistryFound      bool     `json:"registry_found"`
	RegistryStatus     string   `json:"registry_status,omitempty"`
	RegistryError      string   `json:"registry_error,omitempty"`
	Suspicious         bool     `json:"suspicious"`
}

// RegistryOutcome is the registry sub-result reported as its own evidence
// item, so a skipped or failed lookup stays visible in the evidence trail.
type RegistryOutcome struct {
	Registry string `json:"registry"`
	Found    bool   `json:"found"`
	Status   string `json:"status,omitempty"`
}

// RegistryFor maps a country hint to the registry that serves it, or "".
func RegistryFor(countryHint string) string {
	switch countryHint {
	case "SG":
		return "acra"
	case "GB":
		return "companies_house"
	default:
		return ""
	}
}

// Config carries the optional registry API keys. ACRA data is served through
// data.gov.sg without a key; Companies House requires one.
type Config struct {
	CompaniesHouseKey string
	ACRAEnabled       bool
}

type registryHit struct {
	found  bool
	status string
}

// Tool runs heuristics always and a registry lookup when the country hint
// maps to a configured registry. Lookup funcs are fields so tests can
// substitute them.
type Tool struct {
	cfg Config

	acraLookup func(ctx context.Context, name string) (registryHit, error)
	chLookup   func(ctx context.Context, name string) (registryHit, error)
}

// NewTool wires the production registry clients.
func NewTool(cfg Config) *Tool {
	t := &Tool{cfg: cfg}
	if cfg.ACRAEnabled {
		t.acraLookup = acraSearch
	}
	if cfg.CompaniesHouseKey != "" {
		ch := newCompaniesHouseClient(cfg.CompaniesHouseKey)
		t.chLookup = ch.search
	}
	return t
}

// CheckCompany verifies one extracted company name. Registry failures leave
// RegistryChecked false; heuristics still apply.
func (t *Tool) CheckCompany(ctx context.Context, name, countryHint string) *Result {
	res := &Result{Name: name, CountryHint: countryHint}
	res.SuspiciousPatterns = detectPatterns(name)

	var lookup func(ctx context.Context, name string) (registryHit, error)
	switch countryHint {
	case "SG":
		lookup = t.acraLookup
	case "GB":
		lookup = t.chLookup
	}

	if lookup != nil {
		hit, err := lookup(ctx, name)
		if err != nil {
			res.RegistryError = err.Error()
			slog.Warn("[CompanyVer] Registry lookup failed", "name", name, "country", countryHint, "error", err)
		} else {
			res.RegistryChecked = true
			res.RegistryFound = hit.found
			res.RegistryStatus = hit.status
		}
	}

	// Patterns alone flag; a registry miss for a hinted jurisdiction does too.
	res.Suspicious = len(res.SuspiciousPatterns) > 0 ||
		(res.RegistryChecked && !res.RegistryFound)
	return res
}

var (
	deptWordRE   = regexp.MustCompile(`(?i)\b(Department|Division|Unit|Center|Centre|Bureau|Agency)\b`)
	yearSuffixRE = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	trustBaitRE  = regexp.MustCompile(`(?i)\b(official|refund|support|security|verification|helpdesk|recovery)\b`)
)

// knownBrands are names scammers commonly impersonate. A company name that
// contains one without being the brand's own corporate form is a look-alike.
var knownBrands = []string{
	"paypal", "apple", "microsoft", "amazon", "google", "netflix", "meta",
	"dbs", "ocbc", "uob", "hsbc", "citibank", "visa", "mastercard",
	"dhl", "fedex", "ups", "singpost",
}

func detectPatterns(name string) []string {
	var patterns []string
	lower := strings.ToLower(name)

	if deptWordRE.MatchString(name) {
		patterns = append(patterns, PatternDepartmentStyle)
	}
	if yearSuffixRE.MatchString(name) {
		patterns = append(patterns, PatternYearSuffix)
	}
	for _, brand := range knownBrands {
		if containsWord(lower, brand) && !isBrandProper(lower, brand) {
			patterns = append(patterns, PatternBrandLookalike)
			break
		}
	}
	if trustBaitRE.MatchString(name) {
		patterns = append(patterns, PatternTrustBait)
	}
	return patterns
}

func containsWord(lower, word string) bool {
	for _, f := range strings.Fields(lower) {
		if f == word {
			return true
		}
	}
	return false
}

// isBrandProper accepts the brand's plain corporate forms ("PayPal",
// "PayPal Inc") and rejects embellished variants ("PayPal Refund Center").
func isBrandProper(lower, brand string) bool {
	rest := strings.TrimPrefix(lower, brand)
	if rest == lower {
		return false
	}
	rest = strings.TrimSpace(strings.Trim(rest, " .,"))
	switch rest {
	case "", "inc", "inc.", "llc", "ltd", "limited", "corp", "corporation", "pte ltd":
		return true
	}
	return false
}
