package observe

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rip-projects/pants-observe/graph"
	"github.com/rip-projects/pants-observe/keypath"
	"github.com/rip-projects/pants-observe/notify"
	"github.com/rip-projects/pants-observe/pkg/activity"
)

var (
	// ErrClosed is returned by Observe once the Context has been closed.
	ErrClosed = errors.New("observe: context closed")
	// ErrNilCallback is returned when Observe is called without a callback.
	ErrNilCallback = errors.New("observe: callback must not be nil")
)

// Context owns everything a set of registrations shares: the notifier, the
// path compiler and the index of live registrations. Independent Contexts
// never see each other's registrations.
type Context struct {
	cfg      config
	notifier notify.Notifier
	owned    bool
	compiler *keypath.Compiler
	logger   Logger
	emitter  *activity.Emitter
	newID    func() string
	strategy string

	evalMu    sync.Mutex
	evaluator Evaluator

	mu      sync.Mutex
	handles map[string]*Handle
	order   []*Handle
	closed  bool
}

// New constructs a Context.
func New(opts ...Option) *Context {
	cfg := applyOptions(opts)
	logger := cfg.loggerOrNoop()
	if cfg.programCache == nil {
		if cache, err := NewLRUProgramCache(DefaultProgramCacheSize); err == nil {
			cfg.programCache = cache
		}
	}

	c := &Context{
		cfg:     cfg,
		logger:  logger,
		emitter: newEmitter(cfg),
		newID:   cfg.newID,
		handles: map[string]*Handle{},
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}

	c.compiler = cfg.compiler
	if c.compiler == nil {
		if cfg.getter != nil {
			c.compiler = keypath.NewCompiler(keypath.WithGetter(cfg.getter))
		} else {
			c.compiler = keypath.Default
		}
	}

	c.notifier = cfg.notifier
	if c.notifier == nil {
		c.notifier = c.buildNotifier()
		c.owned = true
	}
	c.strategy = strategyName(c.notifier)
	return c
}

func (c *Context) buildNotifier() notify.Notifier {
	notifyOpts := []notify.Option{
		notify.WithInterval(c.cfg.interval),
		notify.WithLogger(notify.LoggerFunc(func(event notify.LogEvent) {
			c.logger.LogEvent(LogEvent{
				Op:       OpNotify,
				Strategy: event.Strategy,
				Detail:   event.Op,
				Records:  event.Records,
				Duration: event.Duration,
				Err:      event.Err,
			})
		})),
	}
	if c.cfg.manualTicks {
		notifyOpts = append(notifyOpts, notify.WithManualTicks())
	}
	n, err := notify.New(c.cfg.strategy, notifyOpts...)
	if err != nil {
		c.logger.LogEvent(LogEvent{Op: OpNotify, Err: err})
		return notify.NewPoller(notifyOpts...)
	}
	return n
}

func strategyName(n notify.Notifier) string {
	switch n.(type) {
	case *notify.Poller:
		return notify.StrategyPoll
	case *notify.Native:
		return notify.StrategyNative
	}
	return "custom"
}

// WithNotifier makes the Context use n instead of building its own. A
// supplied notifier is not closed by Context.Close.
func WithNotifier(n notify.Notifier) Option {
	return func(cfg *config) {
		cfg.notifier = n
	}
}

// WithStrategy selects the notifier strategy built by New: "poll" (the
// default) or "native".
func WithStrategy(strategy string) Option {
	return func(cfg *config) {
		cfg.strategy = strategy
	}
}

// WithInterval sets the polling period of the built notifier.
func WithInterval(interval time.Duration) Option {
	return func(cfg *config) {
		cfg.interval = interval
	}
}

// WithManualTicks disables the background polling schedule; sweeps run only
// through Context.Tick.
func WithManualTicks() Option {
	return func(cfg *config) {
		cfg.manualTicks = true
	}
}

// WithCompiler sets the path compiler. The process-wide keypath.Default is
// used otherwise.
func WithCompiler(compiler *keypath.Compiler) Option {
	return func(cfg *config) {
		cfg.compiler = compiler
	}
}

// WithGetter builds a private compiler using getter as its read strategy.
// It is ignored when WithCompiler is also given.
func WithGetter(getter keypath.Getter) Option {
	return func(cfg *config) {
		cfg.getter = getter
	}
}

// WithIDGenerator replaces the registration ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(cfg *config) {
		cfg.newID = fn
	}
}

// Observe registers fn for changes at path inside root. path may be a string,
// a key slice or a *keypath.Path. The returned Handle stays connected until
// Disconnect or Close.
//
// Before Observe returns, fn receives a synthetic add record for the value
// currently at path, and the chain of intermediate objects is subscribed.
// A malformed path yields a connected handle that never delivers anything.
func (c *Context) Observe(root any, path any, fn Callback, opts ...ObserveOption) (*Handle, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	reg := applyObserveOptions(opts)
	p := c.compiler.Get(path)

	h := &Handle{
		ctx:      c,
		id:       c.newID(),
		path:     p,
		rootObj:  root,
		fn:       fn,
		args:     reg.args,
		metadata: reg.metadata,
		actor:    reg.actor,
	}
	filter, err := c.compileFilter(reg.filter)
	if err != nil {
		return nil, err
	}
	h.filter = filter

	var out batch
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if !p.Valid() {
		out.log(LogEvent{Op: OpInvalidPath, ID: h.id, Path: fmt.Sprint(path)})
	} else {
		h.root = newNode(h, root, p, 0)
		if err := h.root.connect(); err != nil {
			c.mu.Unlock()
			c.logger.LogEvent(LogEvent{Op: OpConnect, ID: h.id, Path: p.String(), Err: err})
			return nil, fmt.Errorf("observe: connect %q: %w", p.String(), err)
		}
		if p.Len() > 0 {
			h.root.process([]graph.Change{graph.AddChange(root, p.Key(0))}, &out)
		}
	}
	h.connected = true
	c.handles[h.id] = h
	c.order = append(c.order, h)
	c.mu.Unlock()

	c.logAll(out.logs)
	c.logger.LogEvent(LogEvent{Op: OpConnect, ID: h.id, Path: p.String()})
	c.emit(append([]activity.Event{c.lifecycleEvent(activity.BuildConnectedEvent, h, "", 0)}, out.events...))
	c.flush(out.deliveries)
	return h, nil
}

// Handle returns the live registration with the given ID.
func (c *Context) Handle(id string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[id]
	return h, ok
}

// Len returns the number of live registrations.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Notifier returns the notifier backing this Context.
func (c *Context) Notifier() notify.Notifier {
	return c.notifier
}

// Compiler returns the path compiler used by this Context.
func (c *Context) Compiler() *keypath.Compiler {
	return c.compiler
}

// Tick runs one polling sweep when the notifier is a *notify.Poller and
// returns the number of records it produced. Other strategies report 0.
func (c *Context) Tick() int {
	if p, ok := c.notifier.(*notify.Poller); ok {
		return p.Tick()
	}
	return 0
}

// Update runs fn serialized against polling sweeps. With other strategies fn
// simply runs.
func (c *Context) Update(fn func()) {
	if p, ok := c.notifier.(*notify.Poller); ok {
		p.Update(fn)
		return
	}
	if fn != nil {
		fn()
	}
}

// Close disconnects every registration and, when the Context built its own
// notifier, closes it. Further Observe calls fail with ErrClosed.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	handles := append([]*Handle(nil), c.order...)
	c.mu.Unlock()

	for _, h := range handles {
		h.Disconnect()
	}
	if c.owned {
		c.notifier.Close()
	}
}

func (c *Context) unindex(h *Handle) {
	delete(c.handles, h.id)
	for i, candidate := range c.order {
		if candidate == h {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Context) logAll(events []LogEvent) {
	for _, event := range events {
		c.logger.LogEvent(event)
	}
}

// flush hands pending batches to callbacks, outside the lock. A registration
// disconnected by an earlier callback receives nothing further.
func (c *Context) flush(deliveries []delivery) {
	for _, d := range deliveries {
		if !d.handle.Connected() {
			continue
		}
		changes := c.applyFilter(d.handle, d.changes)
		if len(changes) == 0 {
			continue
		}
		d.handle.fn(changes)
	}
}
