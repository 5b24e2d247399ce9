package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// Classification is the fast-path verdict returned without tool execution.
type Classification struct {
	RiskLevel   string  `json:"risk_level"`
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category"`
	Explanation string  `json:"explanation"`
}

const classifierSystemPrompt = `You are a scam-detection classifier. Given a message, respond with strict JSON:
{"risk_level": "low"|"medium"|"high", "confidence": 0-100, "category": "phishing"|"payment_scam"|"prize_scam"|"impersonation"|"unknown", "explanation": "one or two sentences"}
Respond with the JSON object only.`

const classifyTimeout = 5 * time.Second

// Classifier is the single-call text classifier used on the fast path.
type Classifier struct {
	client *Client
}

// NewClassifier wraps a client; a nil client means keyword-only operation.
func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

// Classify returns a verdict for the raw text. LLM failures of any kind fall
// back to the deterministic keyword classifier.
func (c *Classifier) Classify(ctx context.Context, text string) Classification {
	if c.client == nil {
		return keywordClassify(text)
	}

	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	raw, err := c.client.Complete(cctx, classifierSystemPrompt, truncate(text, 2000), 0.1)
	if err != nil {
		slog.Warn("[Classifier] LLM call failed, using keyword fallback", "error", err)
		return keywordClassify(text)
	}

	data, err := ExtractJSON(raw)
	if err != nil {
		slog.Warn("[Classifier] Unparseable LLM response, using keyword fallback", "error", err)
		return keywordClassify(text)
	}

	var out Classification
	if json.Unmarshal(data, &out) != nil || !validRiskLevel(out.RiskLevel) {
		return keywordClassify(text)
	}
	out.Confidence = clampConfidence(out.Confidence)
	if out.Category == "" {
		out.Category = "unknown"
	}
	if len(out.Explanation) < 10 {
		out.Explanation = "Classified from message content."
	}
	return out
}

func validRiskLevel(s string) bool {
	return s == "low" || s == "medium" || s == "high"
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// scamKeywords maps trigger phrases to a category. Matches accumulate toward
// the risk level; the first matched category wins.
var scamKeywords = []struct {
	phrase   string
	category string
}{
	{"verify your account", "phishing"},
	{"account suspended", "phishing"},
	{"confirm your password", "phishing"},
	{"click here immediately", "phishing"},
	{"unusual activity", "phishing"},
	{"gift card", "payment_scam"},
	{"wire transfer", "payment_scam"},
	{"bitcoin", "payment_scam"},
	{"western union", "payment_scam"},
	{"processing fee", "payment_scam"},
	{"you have won", "prize_scam"},
	{"lottery", "prize_scam"},
	{"claim your prize", "prize_scam"},
	{"tax refund", "impersonation"},
	{"internal revenue", "impersonation"},
	{"police", "impersonation"},
	{"arrest warrant", "impersonation"},
	{"urgent", ""},
	{"act now", ""},
	{"final notice", ""},
}

// keywordClassify is the deterministic fallback: no network, no key needed.
func keywordClassify(text string) Classification {
	lower := strings.ToLower(text)
	hits := 0
	category := "unknown"
	var matched []string
	for _, kw := range scamKeywords {
		if strings.Contains(lower, kw.phrase) {
			hits++
			matched = append(matched, kw.phrase)
			if category == "unknown" && kw.category != "" {
				category = kw.category
			}
		}
	}

	out := Classification{Category: category}
	switch {
	case hits >= 3:
		out.RiskLevel = "high"
		out.Confidence = 80
	case hits >= 1:
		out.RiskLevel = "medium"
		out.Confidence = 50
	default:
		out.RiskLevel = "low"
		out.Confidence = 30
	}
	if hits > 0 {
		out.Explanation = "Matched scam indicators: " + strings.Join(matched, ", ") + "."
	} else {
		out.Explanation = "No known scam indicators in message."
	}
	return out
}
