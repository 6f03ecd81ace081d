// Package llmclient sends agent ticks to an LLM provider behind a single
// opaque send operation, so the rest of the core never sees a provider SDK
// type. Grounded on teradata-labs-loom/pkg/llm/bedrock/client_sdk.go's
// client-construction and message-call pattern.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
)

// Provider is the opaque interface the scheduler drives: model and
// instructions in, rendered text and a response id out. previousResponseID,
// when non-empty, resumes a prior turn's conversation state.
type Provider interface {
	Send(ctx context.Context, model, instructions, input, previousResponseID string) (text, responseID string, tokensUsed int, err error)
}

// Client is the Anthropic-backed Provider. Anthropic's Messages API has no
// server-side previous_response_id of its own, so the client keeps a small
// local turn history keyed by the response id it hands back, and replays it
// as prior messages on the next call. This is an adaptation, not an
// Anthropic API feature.
type Client struct {
	api anthropic.Client

	maxTokens   int64
	maxAttempts uint64
	baseDelay   time.Duration
	maxDelay    time.Duration

	mu      sync.Mutex
	history map[string][]anthropic.MessageParam

	temperatureSupported func(model string) bool
}

// Config configures retry behavior and request defaults.
type Config struct {
	APIKey      string
	MaxTokens   int64
	MaxAttempts uint64
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// TemperatureSupported overrides the built-in extended-thinking denylist,
	// e.g. with an operator-configured models.temperature_unsupported list.
	TemperatureSupported func(model string) bool
}

// New builds a Client. Zero-valued Config fields fall back to sane defaults.
func New(cfg Config) *Client {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 5
	}
	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = 500 * time.Millisecond
	}
	maxDelay := cfg.MaxDelay
	if maxDelay == 0 {
		maxDelay = 30 * time.Second
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	temperatureSupported := cfg.TemperatureSupported
	if temperatureSupported == nil {
		temperatureSupported = modelSupportsTemperature
	}

	return &Client{
		api:                  anthropic.NewClient(opts...),
		maxTokens:            maxTokens,
		maxAttempts:          maxAttempts,
		baseDelay:            baseDelay,
		maxDelay:             maxDelay,
		history:              make(map[string][]anthropic.MessageParam),
		temperatureSupported: temperatureSupported,
	}
}

// Send issues one model turn, retrying on rate-limit (429) errors with
// exponential backoff, and returns the rendered text, a response id for
// chaining the next turn, and the total tokens the call consumed.
func (c *Client) Send(ctx context.Context, model, instructions, input, previousResponseID string) (string, string, int, error) {
	priorTurns := c.loadHistory(previousResponseID)
	messages := append(append([]anthropic.MessageParam{}, priorTurns...), anthropic.NewUserMessage(anthropic.NewTextBlock(input)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: c.maxTokens,
	}
	if instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: instructions}}
	}
	if c.temperatureSupported(model) {
		params.Temperature = anthropic.Float(1.0)
	}

	var message *anthropic.Message
	op := func() error {
		var sendErr error
		message, sendErr = c.api.Messages.New(ctx, params)
		if sendErr != nil && isRateLimitErr(sendErr) {
			return sendErr
		}
		if sendErr != nil {
			return backoff.Permanent(sendErr)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(c.backoffPolicy(), c.maxAttempts-1)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return "", "", 0, fmt.Errorf("llmclient: send: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	tokensUsed := int(message.Usage.InputTokens + message.Usage.OutputTokens)

	assistantTurn := anthropic.NewAssistantMessage(anthropic.NewTextBlock(text.String()))
	c.saveHistory(message.ID, append(append([]anthropic.MessageParam{}, messages...), assistantTurn))

	return text.String(), message.ID, tokensUsed, nil
}

func (c *Client) backoffPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.MaxInterval = c.maxDelay
	return b
}

func (c *Client) loadHistory(responseID string) []anthropic.MessageParam {
	if responseID == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history[responseID]
}

func (c *Client) saveHistory(responseID string, turns []anthropic.MessageParam) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[responseID] = turns
}

// extendedThinkingModels reject the temperature field outright; everything
// else accepts it.
var extendedThinkingModels = map[string]bool{
	"claude-opus-4-5-thinking":   true,
	"claude-sonnet-4-5-thinking": true,
}

func modelSupportsTemperature(model string) bool {
	return !extendedThinkingModels[model]
}

func isRateLimitErr(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
