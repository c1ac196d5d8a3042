package timerange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryRangeSet_CoverageMonotonic(t *testing.T) {
	set := NewMemoryRangeSet()
	r := rng(0, 3600)

	assert.False(t, set.HasCoverage(r))
	set.Add(r)

	assert.True(t, set.HasCoverage(r))
	assert.True(t, set.HasCoverage(rng(0, 1)))
	assert.True(t, set.HasCoverage(rng(100, 200)))
	assert.True(t, set.HasCoverage(rng(3599, 3600)))
	assert.False(t, set.HasCoverage(rng(3599, 3601)))
}

func TestMemoryRangeSet_AddCompresses(t *testing.T) {
	set := NewMemoryRangeSet()
	set.Add(rng(0, 10))
	set.Add(rng(10, 20))
	set.Add(rng(30, 40))

	assert.Equal(t, []DateRange{rng(0, 20), rng(30, 40)}, set.Ranges())
	assert.True(t, set.HasCoverage(rng(5, 15)), "adjacent ranges merge into one covering range")
	assert.False(t, set.HasCoverage(rng(15, 35)), "gap is not covered")
}

func TestMemoryRangeSet_Clear(t *testing.T) {
	set := NewMemoryRangeSet(rng(0, 10))
	assert.True(t, set.HasCoverage(rng(1, 2)))

	set.Clear()
	assert.False(t, set.HasCoverage(rng(1, 2)))
}

func TestExpiringMemoryRangeSet_ExpiredImmediately(t *testing.T) {
	now := base
	set := NewExpiringMemoryRangeSet().WithClock(func() time.Time { return now })

	set.Add(ExpiringRange{DateRange: rng(0, 100), Expires: now.Add(-time.Millisecond)})
	assert.False(t, set.HasCoverage(rng(10, 20)))
}

func TestExpiringMemoryRangeSet_ExpiresOverTime(t *testing.T) {
	now := base
	set := NewExpiringMemoryRangeSet().WithClock(func() time.Time { return now })

	set.Add(ExpiringRange{DateRange: rng(0, 100), Expires: now.Add(time.Minute)})
	assert.True(t, set.HasCoverage(rng(10, 20)))

	now = now.Add(time.Minute)
	assert.False(t, set.HasCoverage(rng(10, 20)), "coverage ends exactly at expiry")
}

func TestExpiringMemoryRangeSet_AddPurgesExpired(t *testing.T) {
	now := base
	set := NewExpiringMemoryRangeSet().WithClock(func() time.Time { return now })

	set.Add(ExpiringRange{DateRange: rng(0, 10), Expires: now.Add(time.Second)})
	set.Add(ExpiringRange{DateRange: rng(20, 30), Expires: now.Add(time.Hour)})
	assert.Equal(t, 2, set.Len())

	now = now.Add(2 * time.Second)
	set.Add(ExpiringRange{DateRange: rng(40, 50), Expires: now.Add(time.Hour)})
	assert.Equal(t, 2, set.Len())
}

func TestExpiringMemoryRangeSet_EntriesStayDiscrete(t *testing.T) {
	now := base
	set := NewExpiringMemoryRangeSet().WithClock(func() time.Time { return now })

	set.Add(ExpiringRange{DateRange: rng(0, 10), Expires: now.Add(time.Hour)})
	set.Add(ExpiringRange{DateRange: rng(10, 20), Expires: now.Add(time.Hour)})

	assert.True(t, set.HasCoverage(rng(0, 10)))
	assert.False(t, set.HasCoverage(rng(5, 15)), "adjacent entries are not merged")
}
