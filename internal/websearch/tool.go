package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/registry"
)

// Result is one processed search hit.
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Snippet       string  `json:"snippet"`
	PublishedDate string  `json:"published_date,omitempty"`
	Score         float64 `json:"score"`
	Domain        string  `json:"domain"`
}

// Response is the tool's answer for one entity. Failures of any kind produce
// an empty Results slice, never an error.
type Response struct {
	Results   []Result `json:"results"`
	QueryUsed string   `json:"query_used"`
	Cached    bool     `json:"cached"`
}

// Config tunes the tool.
type Config struct {
	APIKey         string
	BaseURL        string // test override
	MaxResults     int
	CacheTTL       time.Duration
	PricePerSearch float64
	DailyBudget    float64

	// BudgetRejections, when set, counts searches refused by the daily
	// budget. Satisfied by a Prometheus counter.
	BudgetRejections interface{ Inc() }
}

// Tool is the web-search evidence tool: query templating, result processing,
// shared cache, and daily budget enforcement.
type Tool struct {
	client *Client
	kv     infra.KV
	meter  *CostMeter
	cfg    Config

	mu              sync.Mutex
	rateLimitedTill time.Time
}

// NewTool creates the tool. An empty API key disables all network calls; the
// tool then always answers with empty results.
func NewTool(kv infra.KV, cfg Config) *Tool {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.PricePerSearch <= 0 {
		cfg.PricePerSearch = 0.005
	}
	if cfg.DailyBudget <= 0 {
		cfg.DailyBudget = 10
	}
	return &Tool{
		client: NewClient(cfg.APIKey, cfg.BaseURL),
		kv:     kv,
		meter:  NewCostMeter(kv, cfg.PricePerSearch, cfg.DailyBudget),
		cfg:    cfg,
	}
}

// Meter exposes the cost meter for health reporting.
func (t *Tool) Meter() *CostMeter { return t.meter }

// queryTemplates maps entity type to the scam-focused query shape.
var queryTemplates = map[string]string{
	"phone":   `"%s" scam complaints OR fraud reports OR "is this a scam"`,
	"url":     `"%s" phishing OR scam warning OR "is this site safe"`,
	"email":   `"%s" spam OR scam reports OR fraudulent`,
	"bitcoin": `"%s" scam OR fraud OR stolen`,
	"payment": `"%s" scam OR suspicious OR fraud`,
	"company": `"%s" scam OR fake company OR complaints`,
}

// trustedSources get a +0.3 score boost: consumer-protection and complaint
// aggregation sites whose hits are strong scam signals.
var trustedSources = map[string]bool{
	"reddit.com":          true,
	"bbb.org":             true,
	"ftc.gov":             true,
	"consumer.ftc.gov":    true,
	"reportfraud.ftc.gov": true,
	"trustpilot.com":      true,
	"consumeraffairs.com": true,
	"complaintsboard.com": true,
	"ripoffreport.com":    true,
	"ic3.gov":             true,
	"scamwarners.com":     true,
	"scamalert.sg":        true,
}

const (
	trustedBoost  = 0.3
	maxSnippetLen = 200
)

// Search runs the reconnaissance query for one entity. It never returns an
// error: cache misses with a down API, exhausted budget, and rate limiting
// all yield an empty response.
func (t *Tool) Search(ctx context.Context, value, entityType string) *Response {
	query := buildQuery(value, entityType)
	resp := &Response{Results: []Result{}, QueryUsed: query}

	if t.cfg.APIKey == "" {
		return resp
	}

	cacheKey := cacheKeyFor(entityType, value)
	if cached, err := t.kv.Get(ctx, cacheKey); err == nil && cached != nil {
		var stored []Result
		if json.Unmarshal(cached, &stored) == nil {
			resp.Results = stored
			resp.Cached = true
			return resp
		}
	}

	// Budget check happens before the call; the charge lands after a
	// successful call.
	if !t.meter.Allow(ctx) {
		slog.Warn("[WebSearch] Budget exhausted, skipping", "type", entityType)
		if t.cfg.BudgetRejections != nil {
			t.cfg.BudgetRejections.Inc()
		}
		return resp
	}

	t.mu.Lock()
	limited := time.Now().Before(t.rateLimitedTill)
	t.mu.Unlock()
	if limited {
		return resp
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	raw, err := t.client.search(callCtx, query, t.cfg.MaxResults)
	if err != nil {
		var rl *rateLimitError
		if errors.As(err, &rl) {
			t.mu.Lock()
			t.rateLimitedTill = time.Now().Add(rl.retryAfter)
			t.mu.Unlock()
		}
		slog.Warn("[WebSearch] Search failed", "type", entityType, "error", err)
		return resp
	}

	resp.Results = processResults(raw)

	if data, err := json.Marshal(resp.Results); err == nil {
		if err := t.kv.Set(ctx, cacheKey, data, t.cfg.CacheTTL); err != nil {
			slog.Warn("[WebSearch] Cache write failed", "error", err)
		}
	}
	if err := t.meter.Charge(ctx, entityType); err != nil {
		slog.Warn("[WebSearch] Cost charge failed", "error", err)
	}
	return resp
}

func buildQuery(value, entityType string) string {
	tmpl, ok := queryTemplates[entityType]
	if !ok {
		tmpl = queryTemplates["payment"]
	}
	return fmt.Sprintf(tmpl, value)
}

func cacheKeyFor(entityType, value string) string {
	sum := sha256.Sum256([]byte(entityType + "\x00" + strings.ToLower(strings.TrimSpace(value))))
	return "websearch:cache:" + hex.EncodeToString(sum[:])
}

// processResults dedupes by domain (keeping the highest raw score), applies
// the trusted-source boost, truncates snippets, and sorts by adjusted score.
func processResults(raw []rawResult) []Result {
	best := map[string]Result{}
	order := []string{}

	for _, r := range raw {
		domain := registry.RegistrableDomain(r.URL)
		if domain == "" {
			continue
		}
		res := Result{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       truncateSnippet(r.Text),
			PublishedDate: r.PublishedDate,
			Score:         r.Score,
			Domain:        domain,
		}
		cur, seen := best[domain]
		if !seen {
			order = append(order, domain)
			best[domain] = res
		} else if res.Score > cur.Score {
			best[domain] = res
		}
	}

	out := make([]Result, 0, len(order))
	for _, d := range order {
		r := best[d]
		if trustedSources[r.Domain] {
			r.Score += trustedBoost
			if r.Score > 1.0 {
				r.Score = 1.0
			}
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func truncateSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxSnippetLen {
		return s
	}
	cut := maxSnippetLen - 1
	// Avoid splitting a multi-byte rune.
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// TrustedSource reports whether a domain is in the curated trusted set.
// Used by the heuristic reasoner.
func TrustedSource(domain string) bool { return trustedSources[domain] }
