package scheduler

import (
	"context"
	"sync"
)

// Idler reports when foreground work has drained.
type Idler interface {
	WaitIdle(ctx context.Context) error
}

// Activity counts in-flight foreground operations.
type Activity struct {
	mu      sync.Mutex
	active  int
	waiters []chan struct{}
}

// NewActivity creates an idle tracker.
func NewActivity() *Activity {
	return &Activity{}
}

// Begin marks an operation as started. The returned func marks it done and
// must be called exactly once.
func (a *Activity) Begin() (done func()) {
	a.mu.Lock()
	a.active++
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(a.end)
	}
}

func (a *Activity) end() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.active--
	if a.active > 0 {
		return
	}
	for _, ch := range a.waiters {
		close(ch)
	}
	a.waiters = nil
}

// Idle reports whether no operation is in flight.
func (a *Activity) Idle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active == 0
}

// WaitIdle blocks until no operation is in flight or ctx is done.
func (a *Activity) WaitIdle(ctx context.Context) error {
	a.mu.Lock()
	if a.active == 0 {
		a.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	a.waiters = append(a.waiters, ch)
	a.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
