// Package notify delivers batches of graph.Change records to the callbacks
// subscribed to a watched container.
//
// Two strategies satisfy Notifier:
//   - Native attaches one graph hook per watched container and passes every
//     batch straight through, synchronously, inside the mutating call.
//   - Poller keeps a shallow shadow copy of every watched container and
//     synthesizes records by diffing it against the current state on a fixed
//     interval.
//
// Both keep their subscriptions in a Registry keyed by container identity.
package notify

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rip-projects/pants-observe/graph"
)

// ErrNotObservable is returned when a value cannot be watched by the
// selected strategy.
var ErrNotObservable = errors.New("notify: value is not observable")

// Callback receives one batch of change records.
type Callback func(changes []graph.Change)

// SubscriptionID identifies one subscription inside a Notifier.
type SubscriptionID uint64

// Notifier is the per-object subscription surface shared by all strategies.
type Notifier interface {
	// Subscribe registers fn for changes of obj.
	Subscribe(obj any, fn Callback) (SubscriptionID, error)
	// Unsubscribe removes a subscription. It reports whether one was removed.
	Unsubscribe(obj any, id SubscriptionID) bool
	// Notifier returns the manual delivery handle for obj, or nil when obj
	// has no identity.
	Notifier(obj any) *ObjectNotifier
	// Len returns the number of watched objects.
	Len() int
	// Close drops every subscription and stops background work.
	Close()
}

// Strategy names accepted by New.
const (
	StrategyPoll   = "poll"
	StrategyNative = "native"
)

// New builds the Notifier named by strategy. An empty name selects the
// poller.
func New(strategy string, opts ...Option) (Notifier, error) {
	switch strategy {
	case "", StrategyPoll:
		return NewPoller(opts...), nil
	case StrategyNative:
		return NewNative(opts...), nil
	}
	return nil, errors.New("notify: unknown strategy " + strategy)
}

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = 300 * time.Millisecond

// Option configures a strategy.
type Option func(*config)

type config struct {
	interval time.Duration
	logger   Logger
	manual   bool
}

func newConfig(opts []Option) config {
	cfg := config{
		interval: DefaultInterval,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithInterval sets the polling period. Non-positive values keep the
// default. Native ignores it.
func WithInterval(interval time.Duration) Option {
	return func(cfg *config) {
		if interval > 0 {
			cfg.interval = interval
		}
	}
}

// WithLogger attaches a logger for sweep and delivery events.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithManualTicks disables the background schedule. Sweeps only run when
// Poller.Tick is called.
func WithManualTicks() Option {
	return func(cfg *config) {
		cfg.manual = true
	}
}

// LogEvent describes one notifier operation.
type LogEvent struct {
	Strategy string
	Op       string
	Objects  int
	Records  int
	Duration time.Duration
	Err      error
}

// Logger records notifier events.
type Logger interface {
	LogEvent(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvent implements Logger.
func (f LoggerFunc) LogEvent(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvent(LogEvent) {}

// Stats is a point-in-time view of a strategy's counters.
type Stats struct {
	Objects int
	Sweeps  uint64
	Batches uint64
	Records uint64
}

type counters struct {
	sweeps  atomic.Uint64
	batches atomic.Uint64
	records atomic.Uint64
}

func (c *counters) delivered(records int) {
	c.batches.Add(1)
	c.records.Add(uint64(records))
}

func (c *counters) snapshot(objects int) Stats {
	return Stats{
		Objects: objects,
		Sweeps:  c.sweeps.Load(),
		Batches: c.batches.Load(),
		Records: c.records.Load(),
	}
}

// ObjectNotifier pushes records to the current subscribers of one object.
// A nil ObjectNotifier ignores every call.
type ObjectNotifier struct {
	reg   *Registry
	obj   any
	stats *counters
}

// Notify delivers a single record.
func (n *ObjectNotifier) Notify(change graph.Change) {
	n.NotifyBatch([]graph.Change{change})
}

// NotifyBatch delivers changes as one batch, synchronously. Objects nobody
// watches are ignored.
func (n *ObjectNotifier) NotifyBatch(changes []graph.Change) {
	if n == nil || len(changes) == 0 {
		return
	}
	e := n.reg.lookup(n.obj)
	if e == nil {
		return
	}
	if n.reg.deliver(e, changes) && n.stats != nil {
		n.stats.delivered(len(changes))
	}
}

func objectNotifier(reg *Registry, obj any, stats *counters) *ObjectNotifier {
	if _, ok := graph.Identity(obj); !ok {
		return nil
	}
	return &ObjectNotifier{reg: reg, obj: obj, stats: stats}
}
