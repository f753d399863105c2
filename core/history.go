package core

// HistoryStore persists the ordered, append-only message history of a
// session. Implementations must support concurrent Append calls targeting the
// same session without lost writes; append order across concurrent writers is
// whatever the interleaving produces. GetAll returns a snapshot that callers
// may read without further synchronization.
type HistoryStore interface {
	Append(sessionID string, msg Message) error
	GetAll(sessionID string) ([]Message, error)
	Clear(sessionID string) error
}
