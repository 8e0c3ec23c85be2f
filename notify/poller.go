package notify

import (
	"sync"
	"time"
)

// Poller synthesizes change records by comparing every watched object with
// the shadow copy taken on the previous sweep.
//
// Sweeps run on a timer goroutine that is started by the first subscription
// and stops once nothing is watched. Mutations made from other goroutines
// must go through Update so they never overlap a sweep; callbacks already
// run inside a sweep and may mutate directly, but must not call Update.
type Poller struct {
	reg      *Registry
	logger   Logger
	interval time.Duration
	manual   bool
	stats    counters

	sweepMu sync.Mutex

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

var _ Notifier = (*Poller)(nil)

// NewPoller constructs a Poller.
func NewPoller(opts ...Option) *Poller {
	cfg := newConfig(opts)
	return &Poller{
		reg:      NewRegistry(),
		logger:   cfg.logger,
		interval: cfg.interval,
		manual:   cfg.manual,
	}
}

// Subscribe implements Notifier. The shadow copy is captured when the object
// is first watched; further subscriptions to the same object share it.
func (p *Poller) Subscribe(obj any, fn Callback) (SubscriptionID, error) {
	id, err := p.reg.add(obj, fn, func(e *entry) error {
		e.shadow = capture(e.kind, e.object)
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.schedule()
	return id, nil
}

// Unsubscribe implements Notifier. Removing the last watched object stops
// the schedule.
func (p *Poller) Unsubscribe(obj any, id SubscriptionID) bool {
	removed, _ := p.reg.remove(obj, id)
	if removed && p.reg.Len() == 0 {
		p.stop()
	}
	return removed
}

// Notifier implements Notifier.
func (p *Poller) Notifier(obj any) *ObjectNotifier {
	return objectNotifier(p.reg, obj, &p.stats)
}

// Len implements Notifier.
func (p *Poller) Len() int {
	return p.reg.Len()
}

// Registry exposes the subscription registry.
func (p *Poller) Registry() *Registry {
	return p.reg
}

// Interval returns the sweep period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Running reports whether a sweep is scheduled.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// Stats returns the sweep and delivery counters.
func (p *Poller) Stats() Stats {
	return p.stats.snapshot(p.reg.Len())
}

// Update runs fn serialized against sweeps.
func (p *Poller) Update(fn func()) {
	if fn == nil {
		return
	}
	p.sweepMu.Lock()
	defer p.sweepMu.Unlock()
	fn()
}

// Tick runs one sweep synchronously and returns the number of records
// delivered.
func (p *Poller) Tick() int {
	p.sweepMu.Lock()
	defer p.sweepMu.Unlock()
	return p.sweep()
}

// Close implements Notifier.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	p.reg.clear()
}

func (p *Poller) sweep() int {
	start := time.Now()
	entries := p.reg.snapshot()
	records := 0
	for _, e := range entries {
		if !p.reg.live(e) {
			continue
		}
		next := capture(e.kind, e.object)
		changes := diff(e.kind, e.object, e.shadow, next)
		e.shadow = next
		if len(changes) == 0 {
			continue
		}
		if p.reg.deliver(e, changes) {
			p.stats.delivered(len(changes))
			records += len(changes)
		}
	}
	p.stats.sweeps.Add(1)
	p.logger.LogEvent(LogEvent{
		Strategy: StrategyPoll,
		Op:       "sweep",
		Objects:  len(entries),
		Records:  records,
		Duration: time.Since(start),
	})
	return records
}

func (p *Poller) schedule() {
	if p.manual {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.timer != nil {
		return
	}
	p.timer = time.AfterFunc(p.interval, p.run)
}

func (p *Poller) run() {
	p.Tick()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer == nil || p.closed {
		return
	}
	if p.reg.Len() == 0 {
		p.timer = nil
		return
	}
	p.timer.Reset(p.interval)
}

func (p *Poller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
