package timerange

import (
	"slices"
	"sync"
	"time"
)

// MemoryRangeSet tracks permanently covered ranges. Stored ranges are kept
// compressed.
type MemoryRangeSet struct {
	mu     sync.RWMutex
	ranges []DateRange
}

// NewMemoryRangeSet creates an empty set, optionally seeded with ranges.
func NewMemoryRangeSet(ranges ...DateRange) *MemoryRangeSet {
	return &MemoryRangeSet{ranges: Compress(ranges, 0)}
}

// HasCoverage reports whether a single stored range contains r.
func (s *MemoryRangeSet) HasCoverage(r DateRange) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stored := range s.ranges {
		if IsEntirelyContained(stored, r) {
			return true
		}
	}
	return false
}

// Add marks r as covered.
func (s *MemoryRangeSet) Add(r DateRange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ranges = Compress(append(s.ranges, r), 0)
}

// Ranges returns a copy of the stored ranges in ascending order.
func (s *MemoryRangeSet) Ranges() []DateRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ranges)
}

// Clear removes all coverage.
func (s *MemoryRangeSet) Clear() {
	s.mu.Lock()
	s.ranges = nil
	s.mu.Unlock()
}

// ExpiringMemoryRangeSet tracks covered ranges that each expire on their own
// schedule. Entries are never merged since every entry keeps its own expiry.
type ExpiringMemoryRangeSet struct {
	mu     sync.Mutex
	ranges []ExpiringRange
	now    func() time.Time
}

// NewExpiringMemoryRangeSet creates an empty set using the wall clock.
func NewExpiringMemoryRangeSet() *ExpiringMemoryRangeSet {
	return &ExpiringMemoryRangeSet{now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *ExpiringMemoryRangeSet) WithClock(now func() time.Time) *ExpiringMemoryRangeSet {
	s.now = now
	return s
}

// HasCoverage reports whether an unexpired stored range contains r.
func (s *ExpiringMemoryRangeSet) HasCoverage(r DateRange) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, stored := range s.ranges {
		if now.Before(stored.Expires) && IsEntirelyContained(stored.DateRange, r) {
			return true
		}
	}
	return false
}

// Add purges expired entries and stores r.
func (s *ExpiringMemoryRangeSet) Add(r ExpiringRange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	s.ranges = append(s.ranges, r)
}

// Len returns the number of unexpired entries.
func (s *ExpiringMemoryRangeSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return len(s.ranges)
}

// Clear removes all entries.
func (s *ExpiringMemoryRangeSet) Clear() {
	s.mu.Lock()
	s.ranges = nil
	s.mu.Unlock()
}

func (s *ExpiringMemoryRangeSet) expireLocked() {
	now := s.now()
	s.ranges = slices.DeleteFunc(s.ranges, func(r ExpiringRange) bool {
		return !now.Before(r.Expires)
	})
}
