package domainrep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

// whoisAgeDays resolves the domain's registration age via WHOIS. Registrars
// format creation dates inconsistently, so parsing tries several layouts.
func whoisAgeDays(ctx context.Context, domain string) (int, error) {
	type lookup struct {
		raw string
		err error
	}
	ch := make(chan lookup, 1)
	go func() {
		client := whois.NewClient()
		if deadline, ok := ctx.Deadline(); ok {
			client.SetTimeout(time.Until(deadline))
		}
		raw, err := client.Whois(domain)
		ch <- lookup{raw: raw, err: err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case l := <-ch:
		if l.err != nil {
			return 0, fmt.Errorf("whois lookup: %w", l.err)
		}
		raw = l.raw
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("whois parse: %w", err)
	}

	created, err := parseWhoisDate(parsed.Domain.CreatedDate)
	if err != nil {
		return 0, err
	}
	age := int(time.Since(created).Hours() / 24)
	if age < 0 {
		age = 0
	}
	return age, nil
}

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

func parseWhoisDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("whois record has no creation date")
	}
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable whois creation date %q", s)
}
