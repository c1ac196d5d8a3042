package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Throttle runs fn at most once per interval. The first Trigger schedules a
// run one interval later; triggers arriving before that run are absorbed.
// When the timer fires, the run waits for the Idler before starting.
type Throttle struct {
	interval time.Duration
	fn       func(ctx context.Context)
	clock    Clock
	idle     Idler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   Timer
	running bool
	runs    int
}

// ThrottleOption configures a Throttle.
type ThrottleOption func(*Throttle)

// WithClock sets the time source.
func WithClock(c Clock) ThrottleOption {
	return func(t *Throttle) { t.clock = c }
}

// WithIdler delays each run until the idler reports idle.
func WithIdler(i Idler) ThrottleOption {
	return func(t *Throttle) { t.idle = i }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ThrottleOption {
	return func(t *Throttle) { t.logger = l }
}

// NewThrottle creates a Throttle for fn.
func NewThrottle(interval time.Duration, fn func(ctx context.Context), opts ...ThrottleOption) *Throttle {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Throttle{
		interval: interval,
		fn:       fn,
		clock:    RealClock(),
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trigger requests a run. It never blocks.
func (t *Throttle) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil || t.running || t.ctx.Err() != nil {
		return
	}
	t.timer = t.clock.AfterFunc(t.interval, t.fire)
}

// Scheduled reports whether a run is waiting for its timer.
func (t *Throttle) Scheduled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Runs returns how many times fn has completed.
func (t *Throttle) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// Stop cancels any scheduled run and prevents new ones.
func (t *Throttle) Stop() {
	t.cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Throttle) fire() {
	t.mu.Lock()
	t.timer = nil
	t.running = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	if t.idle != nil {
		if err := t.idle.WaitIdle(t.ctx); err != nil {
			t.logger.Debug("throttled run abandoned", "error", err)
			return
		}
	}
	if t.ctx.Err() != nil {
		return
	}

	t.fn(t.ctx)

	t.mu.Lock()
	t.runs++
	t.mu.Unlock()
}
