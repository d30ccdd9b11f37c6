package llm

import (
	"context"
	"fmt"

	"report_worker/pkg/httputil"
	"report_worker/pkg/resilience"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

// Client sends one chat completion per call. It satisfies out.Completer.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	breaker     *resilience.CircuitBreaker
	usage       *UsageTracker
	log         zerolog.Logger
}

type ClientConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	BaseURL     string // empty means the public endpoint
}

func NewClient(apiKey string) *Client {
	return NewClientWithConfig(ClientConfig{APIKey: apiKey}, nil, zerolog.Nop())
}

// NewClientWithConfig builds a client. breaker may be nil.
func NewClientWithConfig(cfg ClientConfig, breaker *resilience.CircuitBreaker, log zerolog.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.HTTPClient = httputil.NewClient(httputil.OpenAIClientConfig())
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		breaker:     breaker,
		usage:       NewUsageTracker(),
		log:         log.With().Str("component", "llm").Str("model", model).Logger(),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Usage returns the token and cost tracker for this client.
func (c *Client) Usage() *UsageTracker {
	return c.usage
}

// Complete sends a system and a user message and returns the first choice's text.
// An empty choice list yields an empty string; errors are transport failures.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := resilience.Execute(c.breaker, func() (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
		})
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	cost := c.usage.Track(c.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	c.log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Float64("cost_usd", cost).
		Msg("completion received")

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
