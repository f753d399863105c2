package selector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/choruschat/chorus/core"
	"github.com/choruschat/chorus/internal/testutil"
)

func TestSelector_EmptyHistory(t *testing.T) {
	s := New()
	assert.Empty(t, s.Select(nil, "req-1"))
	assert.Empty(t, s.Select([]core.Message{}, "req-1"))
}

func TestSelector_IncludesCurrentRequestMessage(t *testing.T) {
	history := testutil.NewHistoryBuilder("s1").
		User("req-1", "What is Go?").
		Assistant("req-1", "a", "A programming language.").
		User("req-2", "And generics?").
		Build()

	window := New().Select(history, "req-2")

	assert.NotEmpty(t, window)
	assert.Equal(t, "And generics?", window[len(window)-1].Content)
}

func TestSelector_ExcludesAnsweredRequests(t *testing.T) {
	// Q1 was already answered; neither Q1 nor A1 belongs in req-2's window.
	history := testutil.NewHistoryBuilder("s1").
		User("req-1", "What is Go?").
		Assistant("req-1", "a", "A programming language.").
		User("req-2", "And generics?").
		Build()

	window := New().Select(history, "req-2")

	for _, msg := range window {
		assert.NotEqualf(t, "req-1", msg.RequestID, "answered request leaked into window: %q", msg.Content)
	}
}

func TestSelector_DropsForeignAssistantReplies(t *testing.T) {
	history := testutil.NewHistoryBuilder("s1").
		User("req-1", "First question").
		Assistant("req-1", "a", "First answer").
		User("req-2", "Second question").
		Assistant("req-2", "a", "Second answer").
		User("req-3", "Third question").
		Build()

	window := New().Select(history, "req-3")

	for _, msg := range window {
		if msg.Role == core.RoleAssistant {
			assert.Equal(t, "req-3", msg.RequestID)
		}
	}
}

func TestSelector_ImportantMessagePersists(t *testing.T) {
	// A name disclosure at turn 1 must survive far past the recency window.
	b := testutil.NewHistoryBuilder("s1").
		User("req-0", "Hello! My name is Alice.").
		Assistant("req-0", "a", "Hi Alice!")
	for i := 1; i <= 10; i++ {
		req := fmt.Sprintf("req-%d", i)
		b.User(req, "filler question")
		b.Assistant(req, "a", "filler answer")
	}
	b.User("req-final", "What is my name?")
	history := b.Build()

	window := New().Select(history, "req-final")

	var foundName, foundCurrent bool
	for _, msg := range window {
		if msg.Content == "Hello! My name is Alice." {
			foundName = true
		}
		if msg.Content == "What is my name?" {
			foundCurrent = true
		}
	}
	assert.True(t, foundName, "important message fell out of the window")
	assert.True(t, foundCurrent)
}

func TestSelector_NeverReorders(t *testing.T) {
	history := testutil.NewHistoryBuilder("s1").
		User("req-0", "my name is Bob").
		User("req-1", "first").
		User("req-2", "second").
		User("req-3", "third").
		Build()

	window := New().Select(history, "req-3")

	for i := 1; i < len(window); i++ {
		assert.False(t, window[i].Timestamp.Before(window[i-1].Timestamp), "window out of chronological order")
	}
}

func TestSelector_DeduplicatesImportantRecentOverlap(t *testing.T) {
	// The current message is both important and recent; it must appear once.
	history := testutil.NewHistoryBuilder("s1").
		User("req-1", "My name is Carol, nice to meet you").
		Build()

	window := New().Select(history, "req-1")

	assert.Len(t, window, 1)
}

func TestSelector_RecentWindowBounded(t *testing.T) {
	b := testutil.NewHistoryBuilder("s1")
	for i := 0; i < 30; i++ {
		b.User("req-x", "unanswered question")
	}
	b.User("req-cur", "current")
	history := b.Build()

	window := New().Select(history, "req-cur")

	// No importance cues fire, so the window is capped at MaxRecent.
	assert.LessOrEqual(t, len(window), 6)
}

func TestSelector_CustomThresholds(t *testing.T) {
	s := New(func(o *Options) {
		o.RecentWindow = 2
		o.MaxRecent = 1
		o.ImportanceCues = []string{"remember this"}
	})

	history := testutil.NewHistoryBuilder("s1").
		User("req-1", "remember this: blue").
		User("req-2", "one").
		User("req-3", "two").
		User("req-4", "three").
		Build()

	window := s.Select(history, "req-4")

	assert.Len(t, window, 2)
	assert.Equal(t, "remember this: blue", window[0].Content)
	assert.Equal(t, "three", window[1].Content)
}
