// Package timerange provides closed date ranges and the range-set
// containers used to track which windows have already been fetched.
package timerange

import (
	"sort"
	"time"
)

// DateRange is a span of time. Start must not be after End.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ExpiringRange is a DateRange that stops counting as covered at Expires.
type ExpiringRange struct {
	DateRange
	Expires time.Time `json:"expires"`
}

// Valid reports whether Start <= End.
func (r DateRange) Valid() bool {
	return !r.Start.After(r.End)
}

// Duration returns End - Start.
func (r DateRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// IsEntirelyContained reports whether smaller lies completely inside bigger.
func IsEntirelyContained(bigger, smaller DateRange) bool {
	return !smaller.Start.Before(bigger.Start) && !smaller.End.After(bigger.End)
}

// Overlaps reports whether a and b share any instant.
func Overlaps(a, b DateRange) bool {
	return contains(b, a.Start) || contains(b, a.End) ||
		(a.Start.Before(b.Start) && a.End.After(b.End))
}

func contains(r DateRange, t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Compress sorts ranges by start and merges neighbours whose gap is at most
// tolerance. The input slice is not modified.
func Compress(ranges []DateRange, tolerance time.Duration) []DateRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]DateRange, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	compressed := make([]DateRange, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if !current.End.Add(tolerance).Before(next.Start) {
			if next.End.After(current.End) {
				current.End = next.End
			}
			continue
		}
		compressed = append(compressed, current)
		current = next
	}
	return append(compressed, current)
}
