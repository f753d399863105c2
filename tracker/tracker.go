// Package tracker implements the process-wide in-memory store of in-flight
// and recently completed fan-out requests. It owns the single serializable
// update path for a record's structural fields (completed-set size check and
// the status transition) so that concurrent backend completions can never
// race the completion flag.
package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/choruschat/chorus/core"
)

// ErrNotFound is returned when a request id is unknown or already expired.
var ErrNotFound = errors.New("request not found")

// DefaultTTL is how long a completed record is retained before passive
// expiry. Expiry is cooperative: it happens on the next read, not on a timer.
const DefaultTTL = 300 * time.Second

// Options configure a Store.
type Options struct {
	// TTL is the retention period for completed records. Zero means
	// DefaultTTL; negative disables expiry.
	TTL time.Duration
	// Clock overrides the time source, used by tests to force expiry.
	Clock func() time.Time
}

// Store is a concurrency-safe map of request id to tracking record. The
// store-level mutex guards only the map; each record carries its own mutex so
// completions for different requests never contend.
type Store struct {
	mu       sync.RWMutex
	requests map[string]*record
	ttl      time.Duration
	now      func() time.Time
}

// record is the mutable tracker state for one request. All fields are guarded
// by mu. Concurrent backend tasks write disjoint response/metadata keys, but
// the completed-set check and status transition must be serialized.
type record struct {
	mu             sync.Mutex
	id             string
	status         core.Status
	total          int
	completed      map[string]bool
	responses      map[string]string
	metadata       map[string]core.BackendMetadata
	user           core.User
	backends       []core.BackendInfo
	completionTime time.Time
}

// NewStore constructs an empty tracker store.
func NewStore(optFns ...func(o *Options)) *Store {
	opts := Options{TTL: DefaultTTL, Clock: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		requests: make(map[string]*record),
		ttl:      opts.TTL,
		now:      opts.Clock,
	}
}

// Create inserts a new record in StatusProcessing with the backend set fixed
// at totalBackends. Creating an id that already exists is a programming
// error and is reported rather than silently overwriting in-flight state.
// Backend keys must be unique: two tasks sharing a key would write the same
// response entry and the completed set could never reach the total.
func (s *Store) Create(id string, totalBackends int, user core.User, backends []core.BackendInfo) error {
	keys := make(map[string]bool, len(backends))
	for _, info := range backends {
		if keys[info.Key] {
			return fmt.Errorf("duplicate backend key %q", info.Key)
		}
		keys[info.Key] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[id]; exists {
		return fmt.Errorf("request %s already tracked", id)
	}
	infos := make([]core.BackendInfo, len(backends))
	copy(infos, backends)
	s.requests[id] = &record{
		id:        id,
		status:    core.StatusProcessing,
		total:     totalBackends,
		completed: make(map[string]bool, totalBackends),
		responses: make(map[string]string, totalBackends),
		metadata:  make(map[string]core.BackendMetadata, totalBackends),
		user:      user,
		backends:  infos,
	}
	return nil
}

// RecordCompletion stores one backend's result. It is idempotent per backend
// key: a second call for the same key overwrites (last write wins) without
// growing the completed set. When the completed set reaches the total the
// status transitions to StatusCompleted exactly once and the completion time
// is stamped.
func (s *Store) RecordCompletion(id, backendKey, response string, md core.BackendMetadata) error {
	s.mu.RLock()
	rec, ok := s.requests[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.responses[backendKey] = response
	rec.metadata[backendKey] = md
	rec.completed[backendKey] = true
	if rec.status == core.StatusProcessing && len(rec.completed) >= rec.total {
		rec.status = core.StatusCompleted
		rec.completionTime = s.now()
	}
	return nil
}

// Get returns a deep-copy snapshot of the record, expiring it first if it
// completed longer than the TTL ago.
func (s *Store) Get(id string) (core.RequestRecord, error) {
	s.mu.RLock()
	rec, ok := s.requests[id]
	s.mu.RUnlock()
	if !ok {
		return core.RequestRecord{}, ErrNotFound
	}

	rec.mu.Lock()
	stale := s.ttl > 0 &&
		rec.status == core.StatusCompleted &&
		s.now().Sub(rec.completionTime) > s.ttl
	snapshot := rec.snapshotLocked()
	rec.mu.Unlock()

	if stale {
		s.mu.Lock()
		delete(s.requests, id)
		s.mu.Unlock()
		return core.RequestRecord{}, ErrNotFound
	}
	return snapshot, nil
}

// Delete removes a record regardless of status. It exists for callers that
// created a record and then failed before any backend task could run; deleting
// an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, id)
}

// Len reports the number of tracked records, including completed ones that
// have not yet expired.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

// snapshotLocked deep-copies the record; caller must hold rec.mu.
func (r *record) snapshotLocked() core.RequestRecord {
	completed := make(map[string]bool, len(r.completed))
	for k, v := range r.completed {
		completed[k] = v
	}
	responses := make(map[string]string, len(r.responses))
	for k, v := range r.responses {
		responses[k] = v
	}
	metadata := make(map[string]core.BackendMetadata, len(r.metadata))
	for k, v := range r.metadata {
		metadata[k] = v
	}
	backends := make([]core.BackendInfo, len(r.backends))
	copy(backends, r.backends)
	return core.RequestRecord{
		ID:                r.id,
		Status:            r.status,
		TotalBackends:     r.total,
		CompletedBackends: completed,
		Responses:         responses,
		Metadata:          metadata,
		UserInfo:          r.user,
		Backends:          backends,
		CompletionTime:    r.completionTime,
	}
}
