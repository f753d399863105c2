// Package chorus provides a high-level façade over the orchestrator and
// service abstractions (history, tracking, context selection & logging)
// enabling rapid construction of multi-provider response systems. Most
// applications interact with this package by:
//  1. Creating a Chorus via New() (optionally overriding default in-memory services)
//  2. Building backends directly or from configuration (BackendsFromConfig)
//  3. Fanning a message out (StartProcessing) and polling GetStatus, or
//     blocking via WaitForCompletion
//
// The façade delegates coordination to orchestrator.Orchestrator while
// keeping setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// history store and a structured logger.
package chorus

import (
	"context"
	"fmt"
	"time"

	"github.com/choruschat/chorus/backend"
	"github.com/choruschat/chorus/backend/anthropic"
	"github.com/choruschat/chorus/backend/openai"
	"github.com/choruschat/chorus/config"
	"github.com/choruschat/chorus/core"
	"github.com/choruschat/chorus/history"
	"github.com/choruschat/chorus/history/gormstore"
	"github.com/choruschat/chorus/logging"
	"github.com/choruschat/chorus/orchestrator"
	"github.com/choruschat/chorus/selector"
	"github.com/choruschat/chorus/tracker"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
)

// Options configures the Chorus instance.
type Options struct {
	// HistoryStore persists conversation history (defaults to in-memory).
	HistoryStore core.HistoryStore

	// Selector overrides the context selection policy.
	Selector *selector.Selector

	// TrackerTTL is the retention period for completed request records.
	// Zero keeps the standard 300s.
	TrackerTTL time.Duration

	// MaxWait and PollInterval tune WaitForCompletion.
	MaxWait      time.Duration
	PollInterval time.Duration

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Chorus is the high-level façade aggregating the orchestrator and its services.
type Chorus struct {
	opts    Options
	history core.HistoryStore
	orch    *orchestrator.Orchestrator
}

// New creates a new Chorus instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Chorus {
	opts := Options{
		HistoryStore: history.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	orch := orchestrator.New(opts.HistoryStore, func(o *orchestrator.Options) {
		o.Logger = opts.Logger
		if opts.Selector != nil {
			o.Selector = opts.Selector
		}
		if opts.TrackerTTL != 0 {
			o.Tracker = tracker.NewStore(func(to *tracker.Options) { to.TTL = opts.TrackerTTL })
		}
		o.MaxWait = opts.MaxWait
		o.PollInterval = opts.PollInterval
	})

	return &Chorus{opts: opts, history: opts.HistoryStore, orch: orch}
}

// FromConfig builds a Chorus plus its backends from loaded configuration.
func FromConfig(cfg config.Config) (*Chorus, []backend.Backend, error) {
	store, err := historyFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	c := New(func(o *Options) {
		o.HistoryStore = store
		o.Logger = logging.NewSlogLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)
		o.Selector = selector.New(func(so *selector.Options) {
			so.RecentWindow = cfg.Selector.RecentWindow
			so.MaxRecent = cfg.Selector.MaxRecent
			if len(cfg.Selector.ImportanceCues) > 0 {
				so.ImportanceCues = cfg.Selector.ImportanceCues
			}
		})
		o.TrackerTTL = cfg.TTL()
		o.MaxWait = cfg.MaxWait()
		o.PollInterval = cfg.PollInterval()
	})

	backends, err := BackendsFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return c, backends, nil
}

// BackendsFromConfig constructs the closed set of provider backends declared
// in the configuration. Providers are resolved here, at startup, rather than
// dispatched through a runtime registry.
func BackendsFromConfig(cfg config.Config) ([]backend.Backend, error) {
	backends := make([]backend.Backend, 0, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		switch bc.Provider {
		case config.ProviderOpenAI:
			backends = append(backends, openai.New(func(o *openai.Options) {
				o.Key = bc.Key
				o.DisplayName = bc.DisplayName
				if bc.Model != "" {
					o.Model = bc.Model
				}
				o.Instruction = bc.Instruction
				if bc.Temperature != nil {
					o.Temperature = *bc.Temperature
				}
				o.MaxCompletionTokens = bc.MaxTokens
				o.Pricing = backend.Pricing{InputPerK: bc.InputPricePerK, OutputPerK: bc.OutputPricePerK}
			}))
		case config.ProviderAnthropic:
			backends = append(backends, anthropic.New(func(o *anthropic.Options) {
				o.Key = bc.Key
				o.DisplayName = bc.DisplayName
				if bc.Model != "" {
					o.Model = anthropicsdk.Model(bc.Model)
				}
				o.Instruction = bc.Instruction
				if bc.Temperature != nil {
					o.Temperature = *bc.Temperature
				}
				o.MaxTokens = bc.MaxTokens
				o.Pricing = backend.Pricing{InputPerK: bc.InputPricePerK, OutputPerK: bc.OutputPricePerK}
			}))
		case config.ProviderMock:
			mock := backend.NewMockBackend(bc.Key, bc.DisplayName)
			mock.SetPricing(backend.Pricing{InputPerK: bc.InputPricePerK, OutputPerK: bc.OutputPricePerK})
			backends = append(backends, mock)
		default:
			return nil, fmt.Errorf("unknown provider %q for backend %q", bc.Provider, bc.Key)
		}
	}
	return backends, nil
}

func historyFromConfig(cfg config.Config) (core.HistoryStore, error) {
	switch cfg.History.Driver {
	case "sqlite":
		return gormstore.Open(cfg.History.Path)
	default:
		return history.NewInMemoryStore(), nil
	}
}

// StartProcessing fans message out to the given backends, returning the
// request id for polling. It never blocks on backend completion.
func (c *Chorus) StartProcessing(ctx context.Context, user core.User, backends []backend.Backend, message string) (string, error) {
	return c.orch.StartProcessing(ctx, user, backends, message)
}

// GetStatus returns a snapshot of the request's current state.
func (c *Chorus) GetStatus(requestID string) (core.RequestRecord, error) {
	return c.orch.GetStatus(requestID)
}

// WaitForCompletion is a synchronous helper that polls until the request
// completes or the configured wait bound elapses.
func (c *Chorus) WaitForCompletion(ctx context.Context, requestID string) (orchestrator.WaitResult, error) {
	return c.orch.WaitForCompletion(ctx, requestID)
}

// AddCompletionObserver registers a callback invoked after each individual
// backend completion.
func (c *Chorus) AddCompletionObserver(observer core.CompletionObserver) {
	c.orch.AddCompletionObserver(observer)
}

// GetConversationHistory returns the ordered message history of a session.
func (c *Chorus) GetConversationHistory(sessionID string) ([]core.Message, error) {
	return c.history.GetAll(sessionID)
}

// ClearSession removes a session's conversation history.
func (c *Chorus) ClearSession(sessionID string) error {
	return c.history.Clear(sessionID)
}
