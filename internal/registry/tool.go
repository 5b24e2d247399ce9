package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/scamshield/backend/internal/entities"
	"github.com/scamshield/backend/internal/phoneval"
)

// Tool is the orchestrator-facing registry API. It owns normalization so
// callers can pass raw entity values.
type Tool struct {
	store     Store
	validator *phoneval.Validator
}

// NewTool wraps a store.
func NewTool(store Store, defaultRegion string) *Tool {
	return &Tool{store: store, validator: phoneval.NewValidator(defaultRegion)}
}

// BulkEntity is one input to CheckBulk.
type BulkEntity struct {
	Type  string
	Value string
}

func (t *Tool) CheckPhone(ctx context.Context, phone string) (*LookupResult, error) {
	key, err := t.normalizeKey(EntityPhone, phone)
	if err != nil {
		return nil, err
	}
	return t.lookup(ctx, key)
}

func (t *Tool) CheckURL(ctx context.Context, raw string) (*LookupResult, error) {
	key, err := t.normalizeKey(EntityURL, raw)
	if err != nil {
		return nil, err
	}
	return t.lookup(ctx, key)
}

func (t *Tool) CheckEmail(ctx context.Context, email string) (*LookupResult, error) {
	key, err := t.normalizeKey(EntityEmail, email)
	if err != nil {
		return nil, err
	}
	return t.lookup(ctx, key)
}

func (t *Tool) CheckPayment(ctx context.Context, value string, kind entities.PaymentKind) (*LookupResult, error) {
	key, err := t.normalizeKey(paymentEntityType(kind), value)
	if err != nil {
		return nil, err
	}
	return t.lookup(ctx, key)
}

// CheckBulk resolves many entities in a single store query and returns
// results aligned with the input order. Duplicate inputs share one lookup.
func (t *Tool) CheckBulk(ctx context.Context, batch []BulkEntity) ([]LookupResult, error) {
	keys := make([]Key, len(batch))
	unique := make([]Key, 0, len(batch))
	seen := map[Key]bool{}

	for i, in := range batch {
		key, err := t.normalizeKey(in.Type, in.Value)
		if err != nil {
			// Unnormalizable input stays a not-found result in its slot.
			key = Key{Type: in.Type, Value: in.Value}
		}
		keys[i] = key
		if !seen[key] {
			seen[key] = true
			unique = append(unique, key)
		}
	}

	found, err := t.store.LookupBulk(ctx, unique)
	if err != nil {
		return nil, err
	}

	out := make([]LookupResult, len(batch))
	for i, key := range keys {
		out[i] = toResult(key, found[key])
	}
	return out, nil
}

// AddReport upserts a report for the given entity. Normalization matches the
// check operations so reads and writes agree on keys.
func (t *Tool) AddReport(ctx context.Context, entityType, value, evidence, notes string) (*ScamReport, error) {
	key, err := t.normalizeKey(entityType, value)
	if err != nil {
		return nil, err
	}
	return t.store.Upsert(ctx, key, evidence, notes, false)
}

func (t *Tool) lookup(ctx context.Context, key Key) (*LookupResult, error) {
	r, err := t.store.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	res := toResult(key, r)
	return &res, nil
}

func toResult(key Key, r *ScamReport) LookupResult {
	if r == nil {
		return LookupResult{EntityType: key.Type, EntityValue: key.Value}
	}
	return LookupResult{
		Found:        true,
		EntityType:   r.EntityType,
		EntityValue:  r.EntityValue,
		ReportCount:  r.ReportCount,
		RiskScore:    r.RiskScore,
		Evidence:     r.Evidence,
		Verified:     r.Verified,
		FirstSeen:    r.FirstSeen,
		LastReported: r.LastReported,
		Notes:        r.Notes,
	}
}

func (t *Tool) normalizeKey(entityType, value string) (Key, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Key{}, fmt.Errorf("empty entity value")
	}

	switch entityType {
	case EntityPhone:
		res := t.validator.Validate(value, "")
		if res.E164 == "" {
			return Key{}, fmt.Errorf("unparseable phone %q", value)
		}
		return Key{Type: EntityPhone, Value: res.E164}, nil

	case EntityURL:
		return Key{Type: EntityURL, Value: RegistrableDomain(value)}, nil

	case EntityEmail:
		return Key{Type: EntityEmail, Value: strings.ToLower(value)}, nil

	default:
		return Key{Type: entityType, Value: value}, nil
	}
}

func paymentEntityType(kind entities.PaymentKind) string {
	if kind == entities.PaymentBitcoin {
		return EntityBitcoin
	}
	return EntityPayment
}

// RegistrableDomain extracts the eTLD+1 from a URL or bare host, lowercased.
// Falls back to the raw host when the public suffix list has no answer.
func RegistrableDomain(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
	} else {
		host = strings.SplitN(host, "/", 2)[0]
		host = strings.SplitN(host, ":", 2)[0]
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}
