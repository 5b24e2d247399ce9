// Package domainrep aggregates four independent domain signals — WHOIS age,
// TLS certificate state, VirusTotal verdicts, and Google Safe Browsing —
// into a single normalized risk score.
package domainrep

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/registry"
)

// Check names used in ChecksCompleted and Errors.
const (
	CheckAge          = "age"
	CheckSSL          = "ssl"
	CheckVirusTotal   = "virustotal"
	CheckSafeBrowsing = "safe_browsing"
)

// RiskLevel buckets the normalized score.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// Result is the aggregated reputation of one domain. Pointer fields are nil
// when the producing check did not complete.
type Result struct {
	Domain              string            `json:"domain"`
	AgeDays             *int              `json:"age_days,omitempty"`
	SSLValid            *bool             `json:"ssl_valid,omitempty"`
	SSLExpiryDays       *int              `json:"ssl_expiry_days,omitempty"`
	SelfSigned          *bool             `json:"self_signed,omitempty"`
	VTMalicious         *int              `json:"virustotal_malicious,omitempty"`
	VTTotal             *int              `json:"virustotal_total,omitempty"`
	SafeBrowsingFlagged *bool             `json:"safe_browsing_flagged,omitempty"`
	ThreatTypes         []string          `json:"threat_types,omitempty"`
	RiskScore           int               `json:"risk_score"`
	RiskLevel           RiskLevel         `json:"risk_level"`
	ChecksCompleted     map[string]bool   `json:"checks_completed"`
	Errors              map[string]string `json:"error_messages,omitempty"`
}

type sslInfo struct {
	valid      bool
	expiryDays int
	selfSigned bool
}

type vtInfo struct {
	malicious int
	total     int
}

type sbInfo struct {
	flagged     bool
	threatTypes []string
}

// Config carries the optional API keys. An empty key skips that check.
type Config struct {
	VirusTotalKey   string
	SafeBrowsingKey string
	CacheTTL        time.Duration
}

// Tool runs the four checks concurrently and aggregates. Check functions are
// fields so tests can substitute them.
type Tool struct {
	kv  infra.KV
	cfg Config

	ageCheck func(ctx context.Context, domain string) (int, error)
	sslCheck func(ctx context.Context, domain string) (sslInfo, error)
	vtCheck  func(ctx context.Context, domain string) (vtInfo, error)
	sbCheck  func(ctx context.Context, domain string) (sbInfo, error)
}

// NewTool wires the production checks.
func NewTool(kv infra.KV, cfg Config) *Tool {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 7 * 24 * time.Hour
	}
	t := &Tool{kv: kv, cfg: cfg}
	t.ageCheck = whoisAgeDays
	t.sslCheck = checkSSL
	if cfg.VirusTotalKey != "" {
		vt := newVirusTotalClient(cfg.VirusTotalKey)
		t.vtCheck = vt.check
	}
	if cfg.SafeBrowsingKey != "" {
		sb := newSafeBrowsingClient(cfg.SafeBrowsingKey)
		t.sbCheck = sb.check
	}
	return t
}

// Per-check timeouts.
const (
	ageTimeout = 3 * time.Second
	sslTimeout = 3 * time.Second
	vtTimeout  = 5 * time.Second
	sbTimeout  = 3 * time.Second
)

// CheckDomain normalizes rawURL to its registrable domain and aggregates the
// four signals. Never returns an error; individual check failures land in
// Result.Errors.
func (t *Tool) CheckDomain(ctx context.Context, rawURL string) *Result {
	domain := registry.RegistrableDomain(rawURL)
	res := &Result{
		Domain:          domain,
		RiskLevel:       RiskUnknown,
		ChecksCompleted: map[string]bool{CheckAge: false, CheckSSL: false, CheckVirusTotal: false, CheckSafeBrowsing: false},
		Errors:          map[string]string{},
	}
	if domain == "" {
		return res
	}

	cacheKey := "domainrep:" + domain
	if cached, err := t.kv.Get(ctx, cacheKey); err == nil && cached != nil {
		var stored Result
		if json.Unmarshal(cached, &stored) == nil {
			return &stored
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(name string, timeout time.Duration, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			err := fn(cctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[name] = err.Error()
				return
			}
			res.ChecksCompleted[name] = true
		}()
	}

	run(CheckAge, ageTimeout, func(cctx context.Context) error {
		days, err := t.ageCheck(cctx, domain)
		if err != nil {
			return err
		}
		mu.Lock()
		res.AgeDays = &days
		mu.Unlock()
		return nil
	})

	run(CheckSSL, sslTimeout, func(cctx context.Context) error {
		info, err := t.sslCheck(cctx, domain)
		if err != nil {
			return err
		}
		mu.Lock()
		res.SSLValid = &info.valid
		res.SSLExpiryDays = &info.expiryDays
		res.SelfSigned = &info.selfSigned
		mu.Unlock()
		return nil
	})

	// Missing API keys skip the check entirely: not a failure, just an
	// incomplete bit.
	if t.vtCheck != nil {
		run(CheckVirusTotal, vtTimeout, func(cctx context.Context) error {
			info, err := t.vtCheck(cctx, domain)
			if err != nil {
				return err
			}
			mu.Lock()
			res.VTMalicious = &info.malicious
			res.VTTotal = &info.total
			mu.Unlock()
			return nil
		})
	}
	if t.sbCheck != nil {
		run(CheckSafeBrowsing, sbTimeout, func(cctx context.Context) error {
			info, err := t.sbCheck(cctx, domain)
			if err != nil {
				return err
			}
			mu.Lock()
			res.SafeBrowsingFlagged = &info.flagged
			res.ThreatTypes = info.threatTypes
			mu.Unlock()
			return nil
		})
	}

	wg.Wait()

	res.RiskScore, res.RiskLevel = score(res)

	if data, err := json.Marshal(res); err == nil {
		if err := t.kv.Set(ctx, cacheKey, data, t.cfg.CacheTTL); err != nil {
			slog.Warn("[DomainRep] Cache write failed", "domain", domain, "error", err)
		}
	}
	return res
}

// Max points contributed per check; the normalization denominator is the sum
// over completed checks only, so a keyless deployment still spans 0–100.
const (
	maxAgePoints = 30
	maxSSLPoints = 20
	maxVTPoints  = 40
	maxSBPoints  = 40
)

func score(res *Result) (int, RiskLevel) {
	raw, denom := 0.0, 0.0

	if res.ChecksCompleted[CheckAge] && res.AgeDays != nil {
		denom += maxAgePoints
		switch age := *res.AgeDays; {
		case age < 7:
			raw += 30
		case age < 30:
			raw += 20
		case age < 90:
			raw += 10
		}
	}

	if res.ChecksCompleted[CheckSSL] && res.SSLValid != nil {
		denom += maxSSLPoints
		if !*res.SSLValid {
			raw += 20
		} else if res.SSLExpiryDays != nil && *res.SSLExpiryDays <= 30 {
			raw += 10
		}
	}

	if res.ChecksCompleted[CheckVirusTotal] && res.VTTotal != nil {
		denom += maxVTPoints
		if *res.VTTotal > 0 {
			raw += 40 * float64(*res.VTMalicious) / float64(*res.VTTotal)
		}
	}

	if res.ChecksCompleted[CheckSafeBrowsing] && res.SafeBrowsingFlagged != nil {
		denom += maxSBPoints
		if *res.SafeBrowsingFlagged {
			raw += 40
		}
	}

	if denom == 0 {
		return 0, RiskUnknown
	}

	normalized := int(raw*100/denom + 0.5)
	if normalized > 100 {
		normalized = 100
	}
	switch {
	case normalized >= 70:
		return normalized, RiskHigh
	case normalized >= 40:
		return normalized, RiskMedium
	default:
		return normalized, RiskLow
	}
}
