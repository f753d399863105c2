package core

import "time"

// User carries the session identity attached to a fan-out request. It is a
// plain value object; durable user records are an external concern.
type User struct {
	SessionID    string    `json:"session_id"`
	Name         string    `json:"name"`
	ProjectTitle string    `json:"project_title,omitempty"`
	Created      time.Time `json:"created,omitempty"`
}

// NewUser creates a user bound to a session with the creation time set.
func NewUser(sessionID, name, projectTitle string) User {
	return User{
		SessionID:    sessionID,
		Name:         name,
		ProjectTitle: projectTitle,
		Created:      time.Now().UTC(),
	}
}
