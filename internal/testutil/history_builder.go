package testutil

import (
	"fmt"
	"time"

	"github.com/choruschat/chorus/core"
)

// HistoryBuilder constructs ordered message histories with deterministic ids
// and strictly increasing timestamps for tests.
// Example:
//
//	history := NewHistoryBuilder("sess-1").
//		User("req-1", "What is Go?").
//		Assistant("req-1", "a", "A programming language.").
//		User("req-2", "And Rust?").
//		Build()
type HistoryBuilder struct {
	sessionID string
	base      time.Time
	messages  []core.Message
}

// NewHistoryBuilder creates a builder for the given session. Timestamps start
// at a fixed base and advance one second per appended message.
func NewHistoryBuilder(sessionID string) *HistoryBuilder {
	return &HistoryBuilder{
		sessionID: sessionID,
		base:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// User appends a user message bound to the given request id (chainable).
func (b *HistoryBuilder) User(requestID, content string) *HistoryBuilder {
	b.messages = append(b.messages, core.Message{
		ID:        fmt.Sprintf("msg-%d", len(b.messages)),
		Role:      core.RoleUser,
		Content:   content,
		SessionID: b.sessionID,
		RequestID: requestID,
		Timestamp: b.base.Add(time.Duration(len(b.messages)) * time.Second),
	})
	return b
}

// Assistant appends a backend reply for the given request id (chainable).
func (b *HistoryBuilder) Assistant(requestID, backendKey, content string) *HistoryBuilder {
	b.messages = append(b.messages, core.Message{
		ID:         fmt.Sprintf("msg-%d", len(b.messages)),
		Role:       core.RoleAssistant,
		Content:    content,
		SessionID:  b.sessionID,
		RequestID:  requestID,
		BackendKey: backendKey,
		Timestamp:  b.base.Add(time.Duration(len(b.messages)) * time.Second),
	})
	return b
}

// Build returns the accumulated ordered history.
func (b *HistoryBuilder) Build() []core.Message {
	out := make([]core.Message, len(b.messages))
	copy(out, b.messages)
	return out
}
