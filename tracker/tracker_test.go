package tracker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choruschat/chorus/core"
)

func testUser() core.User {
	return core.User{SessionID: "sess-1", Name: "Alice", ProjectTitle: "demo"}
}

func testBackends(n int) []core.BackendInfo {
	infos := make([]core.BackendInfo, n)
	for i := range infos {
		infos[i] = core.BackendInfo{Key: fmt.Sprintf("b%d", i), DisplayName: fmt.Sprintf("Backend %d", i)}
	}
	return infos
}

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("req-1", 2, testUser(), testBackends(2)))

	rec, err := s.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", rec.ID)
	assert.Equal(t, core.StatusProcessing, rec.Status)
	assert.Equal(t, 2, rec.TotalBackends)
	assert.Empty(t, rec.CompletedBackends)
	assert.Empty(t, rec.Responses)
	assert.Equal(t, "Alice", rec.UserInfo.Name)
	assert.Len(t, rec.Backends, 2)
}

func TestStore_CreateDuplicate(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("req-1", 1, testUser(), testBackends(1)))
	assert.Error(t, s.Create("req-1", 1, testUser(), testBackends(1)))
}

func TestStore_CreateDuplicateBackendKey(t *testing.T) {
	s := NewStore()
	infos := []core.BackendInfo{
		{Key: "same", DisplayName: "First"},
		{Key: "same", DisplayName: "Second"},
	}
	err := s.Create("req-1", 2, testUser(), infos)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate backend key")
	assert.Equal(t, 0, s.Len())
}

func TestStore_Delete(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("req-1", 1, testUser(), testBackends(1)))

	s.Delete("req-1")
	_, err := s.Get("req-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())

	// Unknown ids are a no-op.
	s.Delete("req-1")
}

func TestStore_GetUnknown(t *testing.T) {
	s := NewStore()
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordCompletionUnknown(t *testing.T) {
	s := NewStore()
	err := s.RecordCompletion("nope", "b0", "resp", core.BackendMetadata{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ProgressiveCompletion(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("req-1", 2, testUser(), testBackends(2)))

	require.NoError(t, s.RecordCompletion("req-1", "b0", "fast answer", core.BackendMetadata{DisplayName: "Backend 0"}))

	rec, err := s.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, rec.Status, "one of two backends done, still processing")
	assert.Len(t, rec.CompletedBackends, 1)
	assert.Equal(t, "fast answer", rec.Responses["b0"])
	assert.True(t, rec.CompletionTime.IsZero())

	require.NoError(t, s.RecordCompletion("req-1", "b1", "slow answer", core.BackendMetadata{DisplayName: "Backend 1"}))

	rec, err = s.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, rec.Status)
	assert.Len(t, rec.CompletedBackends, 2)
	assert.Len(t, rec.Responses, 2)
	assert.Len(t, rec.Metadata, 2)
	assert.False(t, rec.CompletionTime.IsZero())
}

func TestStore_RecordCompletionIdempotentPerKey(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("req-1", 2, testUser(), testBackends(2)))

	require.NoError(t, s.RecordCompletion("req-1", "b0", "first", core.BackendMetadata{}))
	require.NoError(t, s.RecordCompletion("req-1", "b0", "second", core.BackendMetadata{}))

	rec, err := s.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, rec.Status, "duplicate key must not count twice")
	assert.Len(t, rec.CompletedBackends, 1)
	assert.Equal(t, "second", rec.Responses["b0"], "last write wins")
}

func TestStore_ConcurrentCompletions(t *testing.T) {
	const n = 50
	s := NewStore()
	require.NoError(t, s.Create("req-1", n, testUser(), testBackends(n)))

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("b%d", i)
			assert.NoError(t, s.RecordCompletion("req-1", key, "resp "+key, core.BackendMetadata{}))
		}(i)
	}
	wg.Wait()

	rec, err := s.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, rec.Status)
	assert.Len(t, rec.CompletedBackends, n, "no lost updates")
	assert.Len(t, rec.Responses, n)
	assert.False(t, rec.CompletionTime.IsZero())
}

func TestStore_CompletionTimeSetOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore(func(o *Options) { o.Clock = func() time.Time { return now } })
	require.NoError(t, s.Create("req-1", 1, testUser(), testBackends(1)))
	require.NoError(t, s.RecordCompletion("req-1", "b0", "a", core.BackendMetadata{}))

	rec, err := s.Get("req-1")
	require.NoError(t, err)
	first := rec.CompletionTime

	// A redundant completion after the transition must not re-stamp.
	now = now.Add(time.Minute)
	require.NoError(t, s.RecordCompletion("req-1", "b0", "b", core.BackendMetadata{}))
	rec, err = s.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, first, rec.CompletionTime)
}

func TestStore_StaleExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore(func(o *Options) { o.Clock = func() time.Time { return now } })
	require.NoError(t, s.Create("req-1", 1, testUser(), testBackends(1)))
	require.NoError(t, s.RecordCompletion("req-1", "b0", "done", core.BackendMetadata{}))

	// Younger than the TTL: still present.
	now = now.Add(299 * time.Second)
	_, err := s.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	// Older than the TTL: expired on read.
	now = now.Add(2 * time.Second)
	_, err = s.Get("req-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ProcessingNeverExpires(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore(func(o *Options) { o.Clock = func() time.Time { return now } })
	require.NoError(t, s.Create("req-1", 2, testUser(), testBackends(2)))
	require.NoError(t, s.RecordCompletion("req-1", "b0", "half done", core.BackendMetadata{}))

	now = now.Add(time.Hour)
	rec, err := s.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, rec.Status)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("req-1", 1, testUser(), testBackends(1)))

	rec, err := s.Get("req-1")
	require.NoError(t, err)
	rec.Responses["b0"] = "tampered"
	rec.CompletedBackends["b0"] = true

	fresh, err := s.Get("req-1")
	require.NoError(t, err)
	assert.Empty(t, fresh.Responses)
	assert.Empty(t, fresh.CompletedBackends)
}
