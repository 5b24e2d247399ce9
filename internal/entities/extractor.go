package entities

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"github.com/scamshield/backend/internal/phoneval"
)

// Options tunes a single extraction pass.
type Options struct {
	// DefaultRegion is the region used for phone parsing (default "US").
	DefaultRegion string
	// MaxTextLen truncates input before extraction, head-kept (default 5000).
	MaxTextLen int
	// FilterCommonDomains drops well-known legitimate domains from URL results.
	FilterCommonDomains bool
	// FilterCommonEmailProviders drops consumer mail providers from email results.
	FilterCommonEmailProviders bool
}

// Extractor turns raw text into an ExtractedEntities bundle.
type Extractor struct {
	opts      Options
	validator *phoneval.Validator
}

// NewExtractor creates an extractor with the given options.
func NewExtractor(opts Options) *Extractor {
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = "US"
	}
	if opts.MaxTextLen <= 0 {
		opts.MaxTextLen = 5000
	}
	return &Extractor{
		opts:      opts,
		validator: phoneval.NewValidator(opts.DefaultRegion),
	}
}

var (
	phoneRE  = regexp.MustCompile(`\+?\d[\d\s().-]{5,17}\d`)
	vanityRE = regexp.MustCompile(`(?i)\b(?:1[-.\s])?\(?8\d{2}\)?[-.\s][A-Z][A-Z0-9-]{5,12}\b`)

	schemeURLRE  = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"']+`)
	bareDomainRE = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:com|net|org|io|co|info|biz|us|uk|ca|au|de|fr|ru|xyz|top|site|online|shop|tk|ml|ga|cf|gq|click|link|app|dev|me|tv|cc|edu|gov)\b(?:/[^\s<>"']*)?`)

	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9](?:[a-z0-9.-]*[a-z0-9])?\.[a-z]{2,}\b`)

	bitcoinRE = regexp.MustCompile(`\b(?:bc1[ac-hj-np-z02-9]{25,62}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})\b`)
	accountRE = regexp.MustCompile(`(?i)\b(?:account|acct)\.?\s*(?:number|num|no\.?|#)?\s*[:\s]\s*(\d{6,17})\b`)
	routingRE = regexp.MustCompile(`(?i)\b(?:routing|aba)\s*(?:number|num|no\.?|#)?\s*[:\s]\s*(\d{9})\b`)
	cashtagRE = regexp.MustCompile(`(?:^|\s)\$([A-Za-z][A-Za-z0-9_]{1,20})\b`)
	venmoRE   = regexp.MustCompile(`(?i)\bvenmo\b[^@\n]{0,20}@([A-Za-z0-9_-]{3,30})\b`)
	wireRE    = regexp.MustCompile(`(?i)\b(?:wire\s+(?:transfer|payment|the\s+(?:money|funds))|western\s+union|moneygram)\b`)

	amountRE = regexp.MustCompile(`(?i)(?:([$€£¥])|(USD|EUR|GBP|SGD|AUD|CAD|JPY)\s?)([0-9][0-9.,]*)|([0-9][0-9.,]*)\s?(USD|EUR|GBP|SGD|AUD|CAD|JPY|dollars)\b`)

	companyRE = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&'.-]*(?:\s+[A-Z][A-Za-z0-9&'.-]*){0,4})\s+(Pte\.?\s*Ltd\.?|Incorporated|Inc\.?|Corporation|Corp\.?|Limited|Ltd\.?|LLC|Company)(?:\s|[.,;!?]|$)`)
	deptRE    = regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+){0,3})\s+(Department|Division|Unit|Center|Centre)\b`)

	trailingPunctRE = regexp.MustCompile(`[.,;:!?'")\]}>]+$`)
)

var shortenerDomains = map[string]bool{
	"bit.ly": true, "t.co": true, "tinyurl.com": true, "goo.gl": true,
	"ow.ly": true, "is.gd": true, "buff.ly": true, "rebrand.ly": true,
	"cutt.ly": true, "shorturl.at": true, "rb.gy": true, "tiny.cc": true,
}

var commonLegitDomains = map[string]bool{
	"google.com": true, "apple.com": true, "microsoft.com": true,
	"amazon.com": true, "facebook.com": true, "youtube.com": true,
	"wikipedia.org": true, "twitter.com": true, "x.com": true,
	"instagram.com": true, "linkedin.com": true, "github.com": true,
}

var commonEmailProviders = map[string]bool{
	"gmail.com": true, "yahoo.com": true, "hotmail.com": true,
	"outlook.com": true, "icloud.com": true, "aol.com": true,
	"proton.me": true, "protonmail.com": true, "live.com": true,
}

// Extract runs the full pipeline: truncate, deobfuscate, per-variant
// extraction, normalization, deduplication. It never fails; garbage input
// yields an empty bundle.
func (x *Extractor) Extract(text string) *ExtractedEntities {
	if len(text) > x.opts.MaxTextLen {
		cut := x.opts.MaxTextLen
		// Back the boundary up so it never splits a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	out := &ExtractedEntities{RawInput: text}
	if strings.TrimSpace(text) == "" {
		return out
	}

	scratch := Deobfuscate(text)

	out.Emails = x.extractEmails(scratch)
	out.URLs = x.extractURLs(scratch, out.Emails)
	out.Phones = x.extractPhones(scratch)
	out.Payments = x.extractPayments(scratch)
	out.Amounts = x.extractAmounts(scratch)
	out.Companies = x.extractCompanies(scratch)
	return out
}

func (x *Extractor) extractPhones(text string) []Phone {
	seen := map[string]bool{}
	var phones []Phone

	candidates := phoneRE.FindAllString(text, -1)
	candidates = append(candidates, vanityRE.FindAllString(text, -1)...)

	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		res := x.validator.Validate(raw, "")
		// Accept numbers that validate or trip a digit pattern (E.164
		// present); merely possible strays are noise.
		if res.E164 == "" {
			continue
		}
		if seen[res.E164] {
			continue
		}
		seen[res.E164] = true
		phones = append(phones, Phone{
			Raw:              raw,
			E164:             res.E164,
			Country:          res.Country,
			Region:           res.Region,
			Type:             res.Type,
			Carrier:          res.Carrier,
			Valid:            res.Valid,
			Suspicious:       res.Suspicious,
			SuspiciousReason: res.SuspiciousReason,
		})
	}
	return phones
}

func (x *Extractor) extractURLs(text string, emails []Email) []URL {
	emailSet := map[string]bool{}
	for _, e := range emails {
		emailSet[e.Domain] = true
	}

	seen := map[string]bool{}
	var urls []URL

	add := func(raw string, hadScheme bool) {
		raw = trailingPunctRE.ReplaceAllString(raw, "")
		candidate := raw
		if !hadScheme {
			candidate = "https://" + raw
		}
		u, err := url.Parse(candidate)
		if err != nil || u.Hostname() == "" {
			return
		}
		host := strings.ToLower(u.Hostname())
		if !strings.Contains(host, ".") {
			return
		}
		// Drop default ports.
		if p := u.Port(); p == "80" || p == "443" {
			u.Host = host
		} else if p != "" {
			u.Host = host + ":" + p
		} else {
			u.Host = host
		}
		u.Scheme = strings.ToLower(u.Scheme)

		domain, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err != nil {
			domain = host
		}
		if x.opts.FilterCommonDomains && commonLegitDomains[domain] {
			return
		}
		normalized := u.String()
		if seen[normalized] {
			return
		}
		seen[normalized] = true
		urls = append(urls, URL{
			Raw:         raw,
			Normalized:  normalized,
			Scheme:      u.Scheme,
			Domain:      domain,
			IsShortener: shortenerDomains[domain],
		})
	}

	matched := map[string]bool{}
	for _, m := range schemeURLRE.FindAllString(text, -1) {
		matched[trailingPunctRE.ReplaceAllString(m, "")] = true
		add(m, true)
	}
	for _, m := range bareDomainRE.FindAllString(text, -1) {
		m = trailingPunctRE.ReplaceAllString(m, "")
		// Skip bare domains already captured with a scheme, and domains that
		// are really the host part of an extracted e-mail address.
		already := false
		for s := range matched {
			if strings.Contains(s, m) {
				already = true
				break
			}
		}
		host := strings.ToLower(strings.SplitN(m, "/", 2)[0])
		if already || emailSet[host] {
			continue
		}
		add(m, false)
	}
	return urls
}

func (x *Extractor) extractEmails(text string) []Email {
	seen := map[string]bool{}
	var emails []Email
	for _, m := range emailRE.FindAllString(text, -1) {
		normalized := strings.ToLower(m)
		if seen[normalized] {
			continue
		}
		at := strings.LastIndex(normalized, "@")
		local, domain := normalized[:at], normalized[at+1:]
		if x.opts.FilterCommonEmailProviders && commonEmailProviders[domain] {
			continue
		}
		seen[normalized] = true
		emails = append(emails, Email{
			Raw:        m,
			Normalized: normalized,
			Local:      local,
			Domain:     domain,
		})
	}
	return emails
}

func (x *Extractor) extractPayments(text string) []Payment {
	seen := map[string]bool{}
	var payments []Payment

	add := func(kind PaymentKind, value string, pos int) {
		key := string(kind) + ":" + value
		if seen[key] {
			return
		}
		seen[key] = true
		payments = append(payments, Payment{
			Kind:    kind,
			Value:   value,
			Context: contextWindow(text, pos, len(value)),
		})
	}

	for _, loc := range bitcoinRE.FindAllStringIndex(text, -1) {
		v := text[loc[0]:loc[1]]
		if validBitcoinAddress(v) {
			add(PaymentBitcoin, v, loc[0])
		}
	}
	for _, loc := range accountRE.FindAllStringSubmatchIndex(text, -1) {
		add(PaymentAccount, text[loc[2]:loc[3]], loc[2])
	}
	for _, loc := range routingRE.FindAllStringSubmatchIndex(text, -1) {
		add(PaymentRouting, text[loc[2]:loc[3]], loc[2])
	}
	for _, loc := range cashtagRE.FindAllStringSubmatchIndex(text, -1) {
		v := text[loc[2]:loc[3]]
		// A cashtag that is all digits is an amount, not a handle.
		if strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			add(PaymentCashApp, "$"+v, loc[2])
		}
	}
	for _, loc := range venmoRE.FindAllStringSubmatchIndex(text, -1) {
		add(PaymentVenmo, "@"+text[loc[2]:loc[3]], loc[2])
	}
	for _, loc := range wireRE.FindAllStringIndex(text, -1) {
		add(PaymentWire, strings.ToLower(text[loc[0]:loc[1]]), loc[0])
	}
	return payments
}

func (x *Extractor) extractAmounts(text string) []Amount {
	seen := map[string]bool{}
	var amounts []Amount
	for _, m := range amountRE.FindAllStringSubmatch(text, -1) {
		var currency, number string
		switch {
		case m[1] != "":
			currency, number = symbolCurrency(m[1]), m[3]
		case m[2] != "":
			currency, number = strings.ToUpper(m[2]), m[3]
		default:
			currency, number = strings.ToUpper(m[5]), m[4]
			if currency == "DOLLARS" {
				currency = "USD"
			}
		}
		numeric, ok := parseLocaleNumber(number)
		if !ok {
			continue
		}
		key := currency + ":" + strconv.FormatFloat(numeric, 'f', -1, 64)
		if seen[key] {
			continue
		}
		seen[key] = true
		amounts = append(amounts, Amount{Numeric: numeric, Currency: currency, Raw: m[0]})
	}
	return amounts
}

func (x *Extractor) extractCompanies(text string) []Company {
	seen := map[string]bool{}
	var companies []Company

	add := func(raw string, dept bool) {
		normalized := strings.ToLower(strings.Join(strings.Fields(raw), " "))
		normalized = strings.Trim(normalized, ".,")
		if seen[normalized] {
			return
		}
		seen[normalized] = true
		companies = append(companies, Company{
			Raw:                 raw,
			Normalized:          normalized,
			CountryHint:         companyCountryHint(normalized),
			IsDepartmentVariant: dept,
		})
	}

	for _, m := range companyRE.FindAllStringSubmatch(text, -1) {
		add(strings.TrimSpace(m[1]+" "+m[2]), false)
	}
	for _, m := range deptRE.FindAllStringSubmatch(text, -1) {
		add(strings.TrimSpace(m[1]+" "+m[2]), true)
	}
	return companies
}

// contextWindow returns ±20 characters around a match.
func contextWindow(text string, pos, length int) string {
	start := pos - 20
	if start < 0 {
		start = 0
	}
	end := pos + length + 20
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func symbolCurrency(sym string) string {
	switch sym {
	case "$":
		return "USD"
	case "€":
		return "EUR"
	case "£":
		return "GBP"
	case "¥":
		return "JPY"
	}
	return "USD"
}

// parseLocaleNumber handles both 1,234.56 and 1.234,56 separator styles.
func parseLocaleNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// European style: dot thousands, comma decimal.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// A single trailing comma group of 2 digits is a decimal separator.
		if len(s)-lastComma-1 == 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func companyCountryHint(normalized string) string {
	switch {
	case strings.Contains(normalized, "pte ltd"), strings.Contains(normalized, "pte. ltd"):
		return "SG"
	case strings.HasSuffix(normalized, "limited"), strings.HasSuffix(normalized, "ltd"),
		strings.HasSuffix(normalized, "ltd."):
		return "GB"
	case strings.HasSuffix(normalized, "inc"), strings.HasSuffix(normalized, "inc."),
		strings.HasSuffix(normalized, "llc"), strings.HasSuffix(normalized, "corp"),
		strings.HasSuffix(normalized, "corp."), strings.HasSuffix(normalized, "corporation"),
		strings.HasSuffix(normalized, "incorporated"):
		return "US"
	}
	return ""
}

// base58Set covers the legacy Bitcoin address alphabet.
const base58Set = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// validBitcoinAddress applies cheap shape checks: length plus alphabet.
// Full checksum verification is deliberately out of scope — the registry and
// web search confirm real addresses.
func validBitcoinAddress(s string) bool {
	if strings.HasPrefix(s, "bc1") {
		if len(s) < 42 || len(s) > 62 {
			return false
		}
		for _, c := range s[3:] {
			if !strings.ContainsRune("acdefghjklmnpqrstuvwxyz023456789", c) {
				return false
			}
		}
		return true
	}
	if len(s) < 26 || len(s) > 35 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(base58Set, c) {
			return false
		}
	}
	return true
}
