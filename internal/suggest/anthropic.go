package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Defaults for the Anthropic completer.
const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 2000
)

// AnthropicCompleter sends prompts to the Anthropic Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicOption configures an AnthropicCompleter.
type AnthropicOption func(*anthropicSettings)

type anthropicSettings struct {
	model     string
	maxTokens int64
	requests  []option.RequestOption
}

// WithModel sets the model name.
func WithModel(model string) AnthropicOption {
	return func(s *anthropicSettings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) AnthropicOption {
	return func(s *anthropicSettings) {
		if n > 0 {
			s.maxTokens = int64(n)
		}
	}
}

// WithRequestOptions passes options through to the SDK client.
func WithRequestOptions(opts ...option.RequestOption) AnthropicOption {
	return func(s *anthropicSettings) {
		s.requests = append(s.requests, opts...)
	}
}

// NewAnthropicCompleter builds a completer authenticated with apiKey.
func NewAnthropicCompleter(apiKey string, opts ...AnthropicOption) *AnthropicCompleter {
	s := &anthropicSettings{model: DefaultModel, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(s)
	}
	requests := append([]option.RequestOption{option.WithAPIKey(apiKey)}, s.requests...)
	return &AnthropicCompleter{
		client:    anthropic.NewClient(requests...),
		model:     s.model,
		maxTokens: s.maxTokens,
	}
}

// Model returns the configured model name.
func (c *AnthropicCompleter) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the text blocks
// of the reply.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: messages: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic: response has no text content")
	}
	return b.String(), nil
}

var _ Completer = (*AnthropicCompleter)(nil)
