package core

import "time"

// Status describes the lifecycle phase of a fan-out request. The transition
// is monotonic: once a request reports StatusCompleted it never reverts.
type Status string

const (
	// StatusProcessing indicates at least one backend has not yet reported.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates every requested backend has reported.
	StatusCompleted Status = "completed"
)

// BackendInfo identifies one provider backend participating in a request.
// The set of backends is fixed when the request is created.
type BackendInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Model       string `json:"model,omitempty"`
}

// BackendMetadata captures per-backend response metrics. Error is true when
// the response text is a synthesized failure message rather than provider
// output; in that case CostUSD is always zero.
type BackendMetadata struct {
	Model          string  `json:"model,omitempty"`
	DisplayName    string  `json:"display_name"`
	ProcessingTime float64 `json:"processing_time_seconds"`
	CostUSD        float64 `json:"cost_usd"`
	Error          bool    `json:"error"`
}

// BackendResult pairs a backend's response text with its metadata. It is the
// unit delivered to completion observers.
type BackendResult struct {
	Response string          `json:"response"`
	Metadata BackendMetadata `json:"metadata"`
}

// RequestRecord is a point-in-time snapshot of one fan-out request.
//
// Invariants maintained by the tracker:
//   - CompletedBackends holds only keys named in Backends and never exceeds
//     TotalBackends entries
//   - Responses and Metadata keys always equal the completed set
//   - Status becomes StatusCompleted exactly when the completed set reaches
//     TotalBackends, and CompletionTime is set once at that transition
//
// Snapshots are deep copies; mutating one never affects tracker state.
type RequestRecord struct {
	ID                string                     `json:"id"`
	Status            Status                     `json:"status"`
	TotalBackends     int                        `json:"total_backends"`
	CompletedBackends map[string]bool            `json:"completed_backends"`
	Responses         map[string]string          `json:"responses"`
	Metadata          map[string]BackendMetadata `json:"metadata"`
	UserInfo          User                       `json:"user_info"`
	Backends          []BackendInfo              `json:"backend_info"`
	CompletionTime    time.Time                  `json:"completion_time,omitempty"`
}

// Completed reports whether every backend has reported.
func (r RequestRecord) Completed() bool { return r.Status == StatusCompleted }

// CompletionObserver is invoked after each individual backend completion with
// the owning request id, the backend key and the recorded result. Observers
// are best-effort: panics are recovered and logged, never propagated.
type CompletionObserver func(requestID, backendKey string, result BackendResult)
