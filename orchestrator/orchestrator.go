// Package orchestrator owns the fan-out/fan-in lifecycle of a multi-backend
// request: it appends the inbound message to history, launches one goroutine
// per backend, reflects each completion in the tracker as it arrives and
// notifies registered observers. Callers observe progress by polling
// GetStatus or by blocking on WaitForCompletion.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/choruschat/chorus/backend"
	"github.com/choruschat/chorus/core"
	"github.com/choruschat/chorus/cost"
	"github.com/choruschat/chorus/logging"
	"github.com/choruschat/chorus/selector"
	"github.com/choruschat/chorus/tracker"
)

// Default polling parameters for WaitForCompletion.
const (
	DefaultMaxWait      = 60 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// Options configures an Orchestrator instance using the functional options
// pattern. All services have in-memory or no-op defaults except History,
// which callers normally supply; a volatile fallback is used when absent so
// tests and demos work out of the box.
type Options struct {
	// Tracker stores per-request fan-out state. Defaults to a fresh
	// in-memory store with the standard 300s completed-record TTL.
	Tracker *tracker.Store

	// Selector produces the per-backend context window. Defaults to the
	// standard policy thresholds.
	Selector *selector.Selector

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger

	// MaxWait bounds WaitForCompletion. Defaults to 60s.
	MaxWait time.Duration

	// PollInterval is the WaitForCompletion poll cadence. Defaults to 500ms.
	PollInterval time.Duration
}

// Orchestrator coordinates concurrent response generation across provider
// backends for one request at a time and any number of requests overall.
//
// Concurrency model:
//   - StartProcessing never blocks on backend completion; it returns after
//     the user message is persisted and the goroutines are scheduled
//   - one goroutine per backend per request; within a task the steps
//     (select -> respond -> persist -> record -> notify) run sequentially
//   - no ordering guarantee between backends; each result is visible in the
//     tracker as soon as its task records it
//   - observers run outside the tracker's critical section; panics are
//     recovered and logged
type Orchestrator struct {
	history  core.HistoryStore
	tracker  *tracker.Store
	selector *selector.Selector
	logger   logging.Logger

	maxWait      time.Duration
	pollInterval time.Duration

	mu        sync.RWMutex
	observers []core.CompletionObserver
}

// WaitResult is the outcome of WaitForCompletion: the most recent record
// snapshot plus a flag marking that the wait gave up before completion.
// A timed-out wait is a valid terminal outcome, not an error; the underlying
// backend tasks keep running and later polls may observe their results.
type WaitResult struct {
	Record   core.RequestRecord `json:"record"`
	TimedOut bool               `json:"timeout,omitempty"`
}

// New creates an Orchestrator persisting conversation history to the given
// store, with optional overrides.
func New(history core.HistoryStore, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Tracker:      tracker.NewStore(),
		Selector:     selector.New(),
		Logger:       logging.NoOpLogger{},
		MaxWait:      DefaultMaxWait,
		PollInterval: DefaultPollInterval,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Tracker == nil {
		opts.Tracker = tracker.NewStore()
	}
	if opts.Selector == nil {
		opts.Selector = selector.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Orchestrator{
		history:      history,
		tracker:      opts.Tracker,
		selector:     opts.Selector,
		logger:       opts.Logger,
		maxWait:      opts.MaxWait,
		pollInterval: opts.PollInterval,
	}
}

// AddCompletionObserver registers a callback notified after each individual
// backend completion. Observers are best-effort: panics are recovered and
// logged, never propagated to sibling backends or tracker state.
func (o *Orchestrator) AddCompletionObserver(observer core.CompletionObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, observer)
}

// StartProcessing fans the message out to the given backends and returns the
// allocated request id immediately.
//
// The user message is appended to history synchronously before any backend
// task starts, so every task observes it in its context snapshot. Each task
// then independently selects a context window, calls its backend, estimates
// cost, persists the answer and records completion. A failing backend yields
// an error-flagged result for its key only; siblings are unaffected.
func (o *Orchestrator) StartProcessing(ctx context.Context, user core.User, backends []backend.Backend, message string) (string, error) {
	if len(backends) == 0 {
		return "", fmt.Errorf("no backends provided")
	}
	seen := make(map[string]bool, len(backends))
	for _, b := range backends {
		if seen[b.Key()] {
			return "", fmt.Errorf("duplicate backend key %q", b.Key())
		}
		seen[b.Key()] = true
	}

	requestID := uuid.NewString()

	userMsg := core.NewUserMessage(user.SessionID, requestID, message)
	if err := o.history.Append(user.SessionID, userMsg); err != nil {
		return "", fmt.Errorf("failed to append user message: %w", err)
	}

	infos := make([]core.BackendInfo, len(backends))
	for i, b := range backends {
		infos[i] = backend.Info(b)
	}
	if err := o.tracker.Create(requestID, len(backends), user, infos); err != nil {
		return "", fmt.Errorf("failed to track request: %w", err)
	}

	// Snapshot taken after the synchronous append so every task sees the
	// current user message regardless of concurrent writers.
	history, err := o.history.GetAll(user.SessionID)
	if err != nil {
		// No task will ever complete this record; remove it rather than
		// leaving a processing entry that can never expire.
		o.tracker.Delete(requestID)
		return "", fmt.Errorf("failed to read history: %w", err)
	}

	for _, b := range backends {
		go o.runBackend(ctx, requestID, user, b, history)
	}

	o.logger.Debug("orchestrator started request request_id=%s session_id=%s backends=%d", requestID, user.SessionID, len(backends))
	return requestID, nil
}

// GetStatus returns a snapshot of the request's current state, expiring the
// record first when it completed longer than the retention TTL ago. An
// unknown id yields tracker.ErrNotFound.
func (o *Orchestrator) GetStatus(requestID string) (core.RequestRecord, error) {
	return o.tracker.Get(requestID)
}

// WaitForCompletion polls GetStatus until the request completes, the
// configured MaxWait elapses, or ctx is cancelled. On timeout it returns the
// partial record with TimedOut set; the backend tasks continue running and
// later polls still observe their results.
func (o *Orchestrator) WaitForCompletion(ctx context.Context, requestID string) (WaitResult, error) {
	deadline := time.Now().Add(o.maxWait)
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		rec, err := o.tracker.Get(requestID)
		if err != nil {
			return WaitResult{}, err
		}
		if rec.Completed() {
			return WaitResult{Record: rec}, nil
		}
		if time.Now().After(deadline) {
			return WaitResult{Record: rec, TimedOut: true}, nil
		}
		select {
		case <-ctx.Done():
			return WaitResult{Record: rec}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// runBackend executes one backend task: context selection, generation, cost
// estimation, history persistence, completion recording and observer
// notification. Any failure is converted into an error-flagged result so the
// request still ends with one entry per requested backend.
func (o *Orchestrator) runBackend(ctx context.Context, requestID string, user core.User, b backend.Backend, history []core.Message) {
	start := time.Now()

	window := o.selector.Select(history, requestID)
	if len(window) == 0 {
		window = lastUserMessage(history)
	}

	response, err := b.Respond(ctx, window)
	elapsed := time.Since(start)

	var result core.BackendResult
	if err != nil {
		o.logger.Error("backend %s failed for request %s: %v", b.Key(), requestID, err)
		o.logBackendCall(b.Key(), elapsed, 0, false, err)
		result = core.BackendResult{
			Response: fmt.Sprintf("Error generating response: %v", err),
			Metadata: core.BackendMetadata{
				Model:          b.Model(),
				DisplayName:    b.DisplayName(),
				ProcessingTime: roundSeconds(elapsed),
				CostUSD:        0,
				Error:          true,
			},
		}
	} else {
		usd := cost.Estimate(b.Pricing(), response)
		o.logBackendCall(b.Key(), elapsed, usd, true, nil)
		result = core.BackendResult{
			Response: response,
			Metadata: core.BackendMetadata{
				Model:          b.Model(),
				DisplayName:    b.DisplayName(),
				ProcessingTime: roundSeconds(elapsed),
				CostUSD:        usd,
			},
		}

		assistantMsg := core.NewAssistantMessage(user.SessionID, requestID, b.Key(), response)
		if appendErr := o.history.Append(user.SessionID, assistantMsg); appendErr != nil {
			// The response is still recorded; history just misses this entry.
			o.logger.Warn("failed to persist response from %s for request %s: %v", b.Key(), requestID, appendErr)
		}
	}

	if recErr := o.tracker.RecordCompletion(requestID, b.Key(), result.Response, result.Metadata); recErr != nil {
		o.logger.Error("failed to record completion for %s on request %s: %v", b.Key(), requestID, recErr)
		return
	}

	o.logger.Debug("backend %s completed request %s in %.3fs", b.Key(), requestID, result.Metadata.ProcessingTime)
	o.notifyObservers(requestID, b.Key(), result)
}

// backendCallLogger is implemented by loggers that record per-call backend
// metrics, such as logging.ChorusLogger.
type backendCallLogger interface {
	LogBackendCall(backendKey string, dur time.Duration, costUSD float64, success bool, err error)
}

// logBackendCall emits the per-call metrics entry when the configured logger
// supports it.
func (o *Orchestrator) logBackendCall(backendKey string, dur time.Duration, costUSD float64, success bool, err error) {
	if bl, ok := o.logger.(backendCallLogger); ok {
		bl.LogBackendCall(backendKey, dur, costUSD, success, err)
	}
}

// notifyObservers invokes every registered observer outside the tracker's
// critical section. Observer panics are recovered and logged.
func (o *Orchestrator) notifyObservers(requestID, backendKey string, result core.BackendResult) {
	o.mu.RLock()
	observers := make([]core.CompletionObserver, len(o.observers))
	copy(observers, o.observers)
	o.mu.RUnlock()

	for _, observer := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("completion observer panicked for request %s backend %s: %v", requestID, backendKey, r)
				}
			}()
			observer(requestID, backendKey, result)
		}()
	}
}

// lastUserMessage is the fallback context window: the most recent user
// message only, or nothing when the history has none.
func lastUserMessage(history []core.Message) []core.Message {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == core.RoleUser {
			return []core.Message{history[i]}
		}
	}
	return nil
}

// roundSeconds converts a duration to seconds at millisecond precision.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
