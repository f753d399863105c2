package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author side of a conversation message.
type Role string

const (
	// RoleUser marks a message authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by a provider backend.
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry. Messages are ordered, append-only
// per session and treated as immutable once written. RequestID ties a message
// to the fan-out request that carried (user) or produced (assistant) it;
// BackendKey is set only on assistant messages and names the backend that
// generated the response.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	SessionID  string    `json:"session_id"`
	RequestID  string    `json:"request_id,omitempty"`
	BackendKey string    `json:"backend_key,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewUserMessage creates a user-authored message bound to a request.
func NewUserMessage(sessionID, requestID, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		SessionID: sessionID,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssistantMessage creates a backend-authored message bound to the request
// it answers and the backend that produced it.
func NewAssistantMessage(sessionID, requestID, backendKey, content string) Message {
	return Message{
		ID:         uuid.NewString(),
		Role:       RoleAssistant,
		Content:    content,
		SessionID:  sessionID,
		RequestID:  requestID,
		BackendKey: backendKey,
		Timestamp:  time.Now().UTC(),
	}
}
