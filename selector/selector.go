// Package selector implements the context window policy: given the full
// message history of a session it produces the trimmed ordered subsequence
// submitted to a backend, balancing relevance against size.
package selector

import (
	"sort"
	"strings"

	"github.com/choruschat/chorus/core"
)

// DefaultImportanceCues are the self-introduction phrases that mark a user
// message as important enough to survive the recency window. The list is
// heuristic; override it via Options when the defaults don't fit.
var DefaultImportanceCues = []string{
	"my name is",
	"my name's",
	"i am called",
	"i'm called",
	"call me",
}

// Options tune the selection policy. The defaults mirror the thresholds the
// policy was calibrated with; they are policy knobs, not invariants.
type Options struct {
	// RecentWindow is the number of trailing history messages considered
	// recent before filtering.
	RecentWindow int
	// MaxRecent caps how many filtered recent messages make it into the
	// selected window.
	MaxRecent int
	// ImportanceCues are lowercase substrings marking a user message as
	// important regardless of age.
	ImportanceCues []string
}

// Selector selects the context window for one backend generation.
//
// Policy:
//  1. User messages containing an importance cue are always kept.
//  2. Of the last RecentWindow messages, user messages belonging to an
//     already-answered request are dropped (unless they carry the current
//     request id), and assistant messages from other requests are dropped.
//  3. The important set plus the last MaxRecent filtered recent messages are
//     deduplicated and ordered by original timestamp.
//
// The selector never reorders messages relative to their timestamps and
// always retains the message bearing the current request id when present.
type Selector struct {
	opts Options
}

// New creates a Selector with default thresholds, optionally overridden.
func New(optFns ...func(o *Options)) *Selector {
	opts := Options{
		RecentWindow:   12,
		MaxRecent:      6,
		ImportanceCues: DefaultImportanceCues,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Selector{opts: opts}
}

// Select returns the context window for the given request. An empty history
// yields an empty window. If nothing matches the current request the
// best-effort filtered set is still returned; the caller is responsible for
// falling back to the last user message when the result is empty.
func (s *Selector) Select(history []core.Message, currentRequestID string) []core.Message {
	if len(history) == 0 {
		return nil
	}

	important := make([]core.Message, 0, 4)
	for _, msg := range history {
		if msg.Role == core.RoleUser && s.isImportant(msg.Content) {
			important = append(important, msg)
		}
	}

	recent := history
	if len(recent) > s.opts.RecentWindow {
		recent = recent[len(recent)-s.opts.RecentWindow:]
	}

	answered := answeredRequests(history)

	filtered := make([]core.Message, 0, len(recent))
	for _, msg := range recent {
		switch msg.Role {
		case core.RoleUser:
			if answered[msg.RequestID] && msg.RequestID != currentRequestID {
				continue
			}
		case core.RoleAssistant:
			if msg.RequestID != currentRequestID {
				continue
			}
		}
		filtered = append(filtered, msg)
	}
	if len(filtered) > s.opts.MaxRecent {
		filtered = filtered[len(filtered)-s.opts.MaxRecent:]
	}

	selected := make([]core.Message, 0, len(important)+len(filtered))
	seen := make(map[string]bool, len(important)+len(filtered))
	for _, msg := range append(important, filtered...) {
		if seen[msg.ID] {
			continue
		}
		seen[msg.ID] = true
		selected = append(selected, msg)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})
	return selected
}

// isImportant reports whether the content contains an importance cue.
func (s *Selector) isImportant(content string) bool {
	lower := strings.ToLower(content)
	for _, cue := range s.opts.ImportanceCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// answeredRequests collects the request ids that already produced at least
// one assistant reply.
func answeredRequests(history []core.Message) map[string]bool {
	answered := make(map[string]bool)
	for _, msg := range history {
		if msg.Role == core.RoleAssistant && msg.RequestID != "" {
			answered[msg.RequestID] = true
		}
	}
	return answered
}
