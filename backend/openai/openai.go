// Package openai provides a backend.Backend implementation using the OpenAI
// Chat Completions API. It adapts the trimmed message window into the SDK's
// message format and returns the first choice's text.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/choruschat/chorus/backend"
	"github.com/choruschat/chorus/core"
)

// Options configure the OpenAI backend adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Key                 string
	DisplayName         string
	Model               string
	Instruction         string
	Temperature         float64
	MaxCompletionTokens int64
	Pricing             backend.Pricing
}

// Backend wraps the OpenAI Chat Completions API behind the generic
// backend.Backend interface.
type Backend struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI backend using the official client, which reads its
// API key from the environment.
func New(optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI backend from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Key:                 "openai",
		DisplayName:         "OpenAI",
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 3000,
		Pricing:             backend.Pricing{InputPerK: 0.00015, OutputPerK: 0.0006},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

// Key implements backend.Backend.
func (b *Backend) Key() string { return b.opts.Key }

// DisplayName implements backend.Backend.
func (b *Backend) DisplayName() string { return b.opts.DisplayName }

// Model implements backend.Backend.
func (b *Backend) Model() string { return b.opts.Model }

// Pricing implements backend.Backend.
func (b *Backend) Pricing() backend.Pricing { return b.opts.Pricing }

// Respond implements backend.Backend using a non-streaming completion.
func (b *Backend) Respond(ctx context.Context, window []core.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            b.buildMessages(window),
		Model:               b.opts.Model,
		Temperature:         openai.Float(b.opts.Temperature),
		MaxCompletionTokens: openai.Int(b.opts.MaxCompletionTokens),
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages converts the message window into OpenAI chat messages,
// prefixing the configured instruction as a system message when present.
func (b *Backend) buildMessages(window []core.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(window)+1)
	if b.opts.Instruction != "" {
		messages = append(messages, openai.SystemMessage(b.opts.Instruction))
	}
	for _, msg := range window {
		switch msg.Role {
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}
