package timerange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return base.Add(time.Duration(seconds) * time.Second)
}

func rng(start, end int) DateRange {
	return DateRange{Start: at(start), End: at(end)}
}

func TestIsEntirelyContained(t *testing.T) {
	tests := []struct {
		name    string
		bigger  DateRange
		smaller DateRange
		want    bool
	}{
		{"inside", rng(0, 100), rng(10, 20), true},
		{"identical", rng(0, 100), rng(0, 100), true},
		{"shares start", rng(0, 100), rng(0, 50), true},
		{"starts before", rng(0, 100), rng(-1, 50), false},
		{"ends after", rng(0, 100), rng(50, 101), false},
		{"disjoint", rng(0, 100), rng(200, 300), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsEntirelyContained(tc.bigger, tc.smaller))
		})
	}
}

func TestOverlaps_Symmetric(t *testing.T) {
	ranges := []DateRange{
		rng(0, 10), rng(5, 15), rng(10, 20), rng(11, 12),
		rng(-5, 30), rng(40, 50), rng(0, 0), rng(20, 20),
	}

	for _, a := range ranges {
		for _, b := range ranges {
			assert.Equal(t, Overlaps(a, b), Overlaps(b, a), "a=%v b=%v", a, b)
		}
	}
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps(rng(0, 10), rng(5, 15)))
	assert.True(t, Overlaps(rng(0, 10), rng(10, 15)), "touching endpoints share an instant")
	assert.True(t, Overlaps(rng(0, 100), rng(10, 20)), "enclosing")
	assert.True(t, Overlaps(rng(10, 20), rng(0, 100)), "enclosed")
	assert.False(t, Overlaps(rng(0, 10), rng(11, 20)))
}

func TestCompress(t *testing.T) {
	got := Compress([]DateRange{rng(50, 60), rng(0, 10), rng(5, 20), rng(20, 30)}, 0)
	assert.Equal(t, []DateRange{rng(0, 30), rng(50, 60)}, got)
}

func TestCompress_KeepsLongerEnd(t *testing.T) {
	got := Compress([]DateRange{rng(0, 100), rng(10, 20)}, 0)
	assert.Equal(t, []DateRange{rng(0, 100)}, got)
}

func TestCompress_Empty(t *testing.T) {
	assert.Nil(t, Compress(nil, time.Minute))
}

func TestCompress_DoesNotModifyInput(t *testing.T) {
	input := []DateRange{rng(20, 30), rng(0, 10)}
	Compress(input, time.Hour)
	assert.Equal(t, []DateRange{rng(20, 30), rng(0, 10)}, input)
}

func TestCompress_Idempotent(t *testing.T) {
	inputs := [][]DateRange{
		{rng(0, 10), rng(12, 20), rng(30, 40), rng(35, 36)},
		{rng(100, 200), rng(0, 50), rng(40, 120)},
		{rng(0, 1)},
	}

	for _, input := range inputs {
		for _, tolerance := range []time.Duration{0, time.Second, 5 * time.Second} {
			once := Compress(input, tolerance)
			assert.Equal(t, once, Compress(once, tolerance))
		}
	}
}

func TestCompress_ToleranceBoundary(t *testing.T) {
	tolerance := 10 * time.Second
	current := rng(0, 100)

	merged := Compress([]DateRange{
		current,
		{Start: current.End.Add(tolerance), End: at(200)},
	}, tolerance)
	require.Len(t, merged, 1)
	assert.Equal(t, rng(0, 200), merged[0])

	separate := Compress([]DateRange{
		current,
		{Start: current.End.Add(tolerance + time.Millisecond), End: at(200)},
	}, tolerance)
	assert.Len(t, separate, 2)
}

func TestDateRange_Valid(t *testing.T) {
	assert.True(t, rng(0, 0).Valid())
	assert.True(t, rng(0, 1).Valid())
	assert.False(t, rng(1, 0).Valid())
}
