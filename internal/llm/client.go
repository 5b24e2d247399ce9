// Package llm wraps the OpenAI-compatible chat API used by the reasoner and
// the fast-path classifier. Gemini is reached through its OpenAI-compatible
// endpoint by overriding the base URL.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Config selects the provider. An empty APIKey disables the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

const defaultModel = openai.GPT4oMini

// Client is a thin chat-completion wrapper.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds a client, or returns nil when no key is configured so
// callers can branch to deterministic fallbacks.
func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{api: openai.NewClientWithConfig(oc), model: model}
}

// Complete runs one system+user chat turn and returns the raw text.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
