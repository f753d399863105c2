// Package backend defines the provider backend contract consumed by the
// orchestrator, plus a deterministic mock implementation for tests and
// examples. Concrete provider adapters live in sub-packages (openai,
// anthropic) so callers only link the SDKs they actually use.
package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/choruschat/chorus/core"
)

// Pricing is a backend's price per 1K tokens in USD.
type Pricing struct {
	InputPerK  float64 `json:"input_per_1k"`
	OutputPerK float64 `json:"output_per_1k"`
}

// Backend is one external response-generating provider addressed by a stable
// key. Respond receives the trimmed, ordered context window for a single
// generation and returns the provider's text.
//
// Implementations must be safely callable from concurrent goroutines with no
// shared mutable state between calls. Respond should honor ctx cancellation
// on network I/O; the orchestrator itself never cancels in-flight calls.
type Backend interface {
	Key() string
	DisplayName() string
	Model() string
	Pricing() Pricing
	Respond(ctx context.Context, window []core.Message) (string, error)
}

// Info builds the BackendInfo descriptor for a backend.
func Info(b Backend) core.BackendInfo {
	return core.BackendInfo{Key: b.Key(), DisplayName: b.DisplayName(), Model: b.Model()}
}

// MockBackend is a lightweight in-memory Backend useful for tests & examples.
// It returns canned responses keyed by the last user message, optionally
// after a fixed delay, and can be scripted to fail.
type MockBackend struct {
	mu        sync.Mutex
	key       string
	name      string
	pricing   Pricing
	responses map[string]string
	delay     time.Duration
	err       error
	windows   [][]core.Message
}

// NewMockBackend constructs a MockBackend with the given key and display name.
func NewMockBackend(key, displayName string) *MockBackend {
	return &MockBackend{
		key:       key,
		name:      displayName,
		pricing:   Pricing{InputPerK: 0.001, OutputPerK: 0.002},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned response for a user prompt.
func (m *MockBackend) AddResponse(prompt, response string) { m.responses[prompt] = response }

// SetDelay makes Respond sleep for d before returning, simulating latency.
func (m *MockBackend) SetDelay(d time.Duration) { m.delay = d }

// SetError makes every subsequent Respond call fail with err.
func (m *MockBackend) SetError(err error) { m.err = err }

// SetPricing overrides the default mock pricing profile.
func (m *MockBackend) SetPricing(p Pricing) { m.pricing = p }

// Windows returns the context windows received by Respond, in call order.
func (m *MockBackend) Windows() [][]core.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]core.Message, len(m.windows))
	copy(out, m.windows)
	return out
}

// Key implements Backend.
func (m *MockBackend) Key() string { return m.key }

// DisplayName implements Backend.
func (m *MockBackend) DisplayName() string { return m.name }

// Model implements Backend.
func (m *MockBackend) Model() string { return "mock" }

// Pricing implements Backend.
func (m *MockBackend) Pricing() Pricing { return m.pricing }

// Respond implements Backend; replays the canned response for the last user
// message or a generic echo when none is registered.
func (m *MockBackend) Respond(ctx context.Context, window []core.Message) (string, error) {
	m.mu.Lock()
	snapshot := make([]core.Message, len(window))
	copy(snapshot, window)
	m.windows = append(m.windows, snapshot)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.err != nil {
		return "", m.err
	}

	var prompt string
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Role == core.RoleUser {
			prompt = window[i].Content
			break
		}
	}
	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}
