// Package genai wraps the OpenAI chat-completion API used as the generation,
// classification, and extraction oracle for conversation turns.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientInterface abstracts the oracle so flow components can be tested with
// deterministic fakes.
type ClientInterface interface {
	// GeneratePromptWithContext runs a single system+user completion and
	// returns the raw assistant text.
	GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// GenerateWithMessages runs a completion over a full message sequence.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Opts holds configuration for the OpenAI client.
type Opts struct {
	APIKey      string
	Model       openai.ChatModel
	Temperature float64
}

// Option configures the OpenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly instead of reading the
// OPENAI_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = openai.ChatModel(model) }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// Client calls the OpenAI chat-completion endpoint.
type Client struct {
	client      openai.Client
	model       openai.ChatModel
	temperature float64
}

// NewClient creates an OpenAI-backed oracle client. The API key falls back to
// the OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	slog.Debug("genai.NewClient: creating OpenAI client", "model", cfg.Model, "temperature", cfg.Temperature)
	return &Client{
		client:      openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// GeneratePromptWithContext runs a single system+user completion.
func (c *Client) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}
	return c.GenerateWithMessages(ctx, messages)
}

// GenerateWithMessages runs a completion over the provided message sequence
// and returns the first choice's content.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		slog.Error("genai.GenerateWithMessages: completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.GenerateWithMessages: no choices returned", "model", c.model)
		return "", fmt.Errorf("no choices returned")
	}
	content := resp.Choices[0].Message.Content
	slog.Debug("genai.GenerateWithMessages: completion succeeded", "model", c.model, "responseLength", len(content))
	return content, nil
}
