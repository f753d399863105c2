// Package anthropic provides a backend.Backend implementation using the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/choruschat/chorus/backend"
	"github.com/choruschat/chorus/core"
)

// Options configures the Anthropic backend adapter (model id, temperature,
// max tokens, API key, pricing). Extend via functional options to preserve
// stability.
type Options struct {
	Key         string
	DisplayName string
	Model       anthropic.Model
	Instruction string
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Pricing     backend.Pricing
}

// Backend wraps the Anthropic Messages API behind the generic
// backend.Backend interface.
type Backend struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Backend{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic backend from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Key:         "anthropic",
		DisplayName: "Anthropic",
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   3000,
		Pricing:     backend.Pricing{InputPerK: 0.003, OutputPerK: 0.015},
	}
}

// Key implements backend.Backend.
func (b *Backend) Key() string { return b.opts.Key }

// DisplayName implements backend.Backend.
func (b *Backend) DisplayName() string { return b.opts.DisplayName }

// Model implements backend.Backend.
func (b *Backend) Model() string { return string(b.opts.Model) }

// Pricing implements backend.Backend.
func (b *Backend) Pricing() backend.Pricing { return b.opts.Pricing }

// Respond implements backend.Backend using a non-streaming message request.
func (b *Backend) Respond(ctx context.Context, window []core.Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       b.opts.Model,
		Messages:    b.buildMessages(window),
		MaxTokens:   b.opts.MaxTokens,
		Temperature: anthropic.Float(b.opts.Temperature),
	}
	if b.opts.Instruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: b.opts.Instruction}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content returned")
	}
	return sb.String(), nil
}

// buildMessages converts the message window into Anthropic message params.
func (b *Backend) buildMessages(window []core.Message) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(window))
	for _, msg := range window {
		if msg.Content == "" {
			continue
		}
		block := anthropic.NewTextBlock(msg.Content)
		switch msg.Role {
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return messages
}
