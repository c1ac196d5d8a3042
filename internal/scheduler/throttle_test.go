package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestThrottle_LeadingEdgeSuppressed(t *testing.T) {
	clock := NewFakeClock(start)
	var calls atomic.Int32
	th := NewThrottle(time.Hour, func(context.Context) { calls.Add(1) }, WithClock(clock))

	th.Trigger()
	assert.Equal(t, int32(0), calls.Load(), "first trigger does not run immediately")
	assert.True(t, th.Scheduled())

	clock.Advance(59 * time.Minute)
	assert.Equal(t, int32(0), calls.Load())

	clock.Advance(time.Minute)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, th.Scheduled())
}

func TestThrottle_AtMostOncePerInterval(t *testing.T) {
	clock := NewFakeClock(start)
	var calls atomic.Int32
	th := NewThrottle(time.Hour, func(context.Context) { calls.Add(1) }, WithClock(clock))

	for i := 0; i < 10; i++ {
		th.Trigger()
		clock.Advance(time.Minute)
	}
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Hour)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, clock.Pending())

	th.Trigger()
	clock.Advance(30 * time.Minute)
	assert.Equal(t, int32(1), calls.Load())
	clock.Advance(30 * time.Minute)
	assert.Equal(t, int32(2), calls.Load())
}

func TestThrottle_WaitsForIdle(t *testing.T) {
	clock := NewFakeClock(start)
	activity := NewActivity()
	var calls atomic.Int32
	th := NewThrottle(time.Hour, func(context.Context) { calls.Add(1) },
		WithClock(clock), WithIdler(activity))

	done := activity.Begin()
	th.Trigger()

	advanced := make(chan struct{})
	go func() {
		clock.Advance(time.Hour)
		close(advanced)
	}()

	assert.Never(t, func() bool { return calls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	done()
	<-advanced
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, th.Runs())
}

func TestThrottle_StopCancelsScheduledRun(t *testing.T) {
	clock := NewFakeClock(start)
	var calls atomic.Int32
	th := NewThrottle(time.Hour, func(context.Context) { calls.Add(1) }, WithClock(clock))

	th.Trigger()
	th.Stop()
	clock.Advance(2 * time.Hour)
	assert.Equal(t, int32(0), calls.Load())

	th.Trigger()
	assert.False(t, th.Scheduled(), "stopped throttle ignores triggers")
}

func TestActivity_WaitIdle(t *testing.T) {
	a := NewActivity()
	require.True(t, a.Idle())
	require.NoError(t, a.WaitIdle(context.Background()))

	done1 := a.Begin()
	done2 := a.Begin()
	assert.False(t, a.Idle())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.WaitIdle(ctx), context.DeadlineExceeded)

	done1()
	done1()
	assert.False(t, a.Idle(), "done is idempotent")
	done2()
	assert.True(t, a.Idle())
}
