package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONPlain(t *testing.T) {
	data, err := ExtractJSON(`{"risk_level":"high","confidence":90}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"risk_level":"high","confidence":90}`, string(data))
}

func TestExtractJSONFenced(t *testing.T) {
	in := "Here is my analysis:\n```json\n{\"risk_level\": \"medium\"}\n```\nLet me know."
	data, err := ExtractJSON(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"risk_level":"medium"}`, string(data))
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	in := `Based on the evidence, {"risk_level":"low","note":"contains } in string"} is my verdict.`
	data, err := ExtractJSON(in)
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "low", out["risk_level"])
	assert.Equal(t, "contains } in string", out["note"])
}

func TestExtractJSONNested(t *testing.T) {
	in := `{"a":{"b":{"c":1}},"d":[1,2]}`
	data, err := ExtractJSON(in)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(data))
}

func TestExtractJSONErrors(t *testing.T) {
	_, err := ExtractJSON("no json here")
	assert.Error(t, err)

	_, err = ExtractJSON(`{"unterminated": true`)
	assert.Error(t, err)
}

func TestKeywordClassifyEscalation(t *testing.T) {
	benign := keywordClassify("Hi Mom, dinner at 7?")
	assert.Equal(t, "low", benign.RiskLevel)
	assert.Equal(t, "unknown", benign.Category)

	single := keywordClassify("URGENT: please respond")
	assert.Equal(t, "medium", single.RiskLevel)

	loaded := keywordClassify("URGENT: you have won the lottery, claim your prize now")
	assert.Equal(t, "high", loaded.RiskLevel)
	assert.Equal(t, "prize_scam", loaded.Category)
	assert.Contains(t, loaded.Explanation, "lottery")
}

func TestKeywordClassifyCategoryPriority(t *testing.T) {
	c := keywordClassify("verify your account or pay by gift card")
	assert.Equal(t, "phishing", c.Category, "first matched category wins")
}

func TestClassifierNoClientUsesFallback(t *testing.T) {
	c := NewClassifier(nil)
	out := c.Classify(context.Background(), "wire transfer needed urgent final notice")
	assert.Equal(t, "high", out.RiskLevel)
	assert.Equal(t, "payment_scam", out.Category)
	assert.NotEmpty(t, out.Explanation)
}

func TestNewClientDisabledWithoutKey(t *testing.T) {
	assert.Nil(t, NewClient(Config{}))
	assert.NotNil(t, NewClient(Config{APIKey: "k"}))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, clampConfidence(-5))
	assert.Equal(t, 100.0, clampConfidence(250))
	assert.Equal(t, 42.0, clampConfidence(42))
}
