// Package entities extracts normalized, deduplicated entities from raw text.
//
// Extraction is pure CPU: no network, no disk, no shared state. The same
// input always yields the same bundle.
package entities

import (
	"strings"

	"github.com/scamshield/backend/internal/phoneval"
)

// EntityType tags the variant of an extracted entity.
type EntityType string

const (
	TypePhone   EntityType = "phone"
	TypeURL     EntityType = "url"
	TypeEmail   EntityType = "email"
	TypePayment EntityType = "payment"
	TypeAmount  EntityType = "amount"
	TypeCompany EntityType = "company"
)

// Phone is an extracted phone number with offline validation attached.
type Phone struct {
	Raw              string              `json:"raw"`
	E164             string              `json:"e164,omitempty"`
	Country          string              `json:"country,omitempty"`
	Region           string              `json:"region,omitempty"`
	Type             phoneval.NumberType `json:"type"`
	Carrier          string              `json:"carrier,omitempty"`
	Valid            bool                `json:"valid"`
	Suspicious       bool                `json:"suspicious"`
	SuspiciousReason string              `json:"suspicious_reason,omitempty"`
}

// URL is an extracted and normalized web address.
type URL struct {
	Raw         string `json:"raw"`
	Normalized  string `json:"normalized"`
	Scheme      string `json:"scheme"`
	Domain      string `json:"domain"`
	IsShortener bool   `json:"is_shortener"`
}

// Email is an extracted e-mail address, lowercased.
type Email struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Local      string `json:"local"`
	Domain     string `json:"domain"`
}

// PaymentKind classifies an extracted payment identifier.
type PaymentKind string

const (
	PaymentAccount PaymentKind = "account"
	PaymentRouting PaymentKind = "routing"
	PaymentBitcoin PaymentKind = "bitcoin"
	PaymentVenmo   PaymentKind = "venmo"
	PaymentCashApp PaymentKind = "cashapp"
	PaymentWire    PaymentKind = "wire"
	PaymentGeneric PaymentKind = "generic"
)

// Payment is an extracted payment identifier with surrounding context.
type Payment struct {
	Kind    PaymentKind `json:"kind"`
	Value   string      `json:"value"`
	Context string      `json:"context"`
}

// Amount is an extracted monetary amount.
type Amount struct {
	Numeric  float64 `json:"numeric"`
	Currency string  `json:"currency"`
	Raw      string  `json:"raw"`
}

// Company is an extracted organization name.
type Company struct {
	Raw                 string `json:"raw"`
	Normalized          string `json:"normalized"`
	CountryHint         string `json:"country_hint,omitempty"`
	IsDepartmentVariant bool   `json:"is_department_variant"`
}

// ExtractedEntities is the immutable bundle produced by a single extraction.
type ExtractedEntities struct {
	RawInput  string    `json:"raw_input"`
	Phones    []Phone   `json:"phones,omitempty"`
	URLs      []URL     `json:"urls,omitempty"`
	Emails    []Email   `json:"emails,omitempty"`
	Payments  []Payment `json:"payments,omitempty"`
	Amounts   []Amount  `json:"amounts,omitempty"`
	Companies []Company `json:"companies,omitempty"`
}

// HasEntities reports whether any investigable entity was found. Amounts
// alone do not count — they only feed the risk indicators.
func (e *ExtractedEntities) HasEntities() bool {
	return len(e.Phones)+len(e.URLs)+len(e.Emails)+len(e.Payments)+len(e.Companies) > 0
}

// Count returns the number of investigable entities.
func (e *ExtractedEntities) Count() int {
	return len(e.Phones) + len(e.URLs) + len(e.Emails) + len(e.Payments) + len(e.Companies)
}

// largeAmountThreshold is the USD-equivalent figure above which an amount
// combined with urgency language counts as a high-risk indicator.
const largeAmountThreshold = 500

var urgencyPhrases = []string{
	"urgent", "immediately", "right now", "act now", "expires", "final notice",
	"last chance", "within 24 hours", "account suspended", "verify now",
}

// HasHighRiskIndicators reports whether the bundle carries signals that are
// high-risk on their own: bitcoin addresses, wire-transfer requests, or a
// large amount paired with urgency language.
func (e *ExtractedEntities) HasHighRiskIndicators() bool {
	for _, p := range e.Payments {
		if p.Kind == PaymentBitcoin || p.Kind == PaymentWire {
			return true
		}
	}
	lower := strings.ToLower(e.RawInput)
	for _, a := range e.Amounts {
		if a.Numeric >= largeAmountThreshold {
			for _, phrase := range urgencyPhrases {
				if strings.Contains(lower, phrase) {
					return true
				}
			}
		}
	}
	return false
}
