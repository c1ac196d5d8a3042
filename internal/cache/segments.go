package cache

import (
	"cmp"
	"slices"
	"sync"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/metrics"
	"github.com/mmcdole/argus/internal/timerange"
)

type cameraSegments struct {
	segments map[string]domain.RecordingSegment
	coverage *timerange.MemoryRangeSet
}

// RecordingSegmentsCache stores recording segments per camera together with
// the ranges that have been fetched. Segments are keyed by ID so repeated
// fetches of overlapping ranges do not duplicate them.
type RecordingSegmentsCache struct {
	mu      sync.RWMutex
	cameras map[string]*cameraSegments
	metrics *metrics.Metrics
}

// NewRecordingSegmentsCache creates an empty cache.
func NewRecordingSegmentsCache() *RecordingSegmentsCache {
	return &RecordingSegmentsCache{
		cameras: make(map[string]*cameraSegments),
		metrics: metrics.Get(),
	}
}

// Get returns the segments of cameraID overlapping r, sorted by start time.
// It reports false when r has not been fully fetched before.
func (c *RecordingSegmentsCache) Get(cameraID string, r timerange.DateRange) ([]domain.RecordingSegment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cam, ok := c.cameras[cameraID]
	hit := ok && cam.coverage.HasCoverage(r)
	c.metrics.CacheHit("segments", hit)
	if !hit {
		return nil, false
	}

	out := make([]domain.RecordingSegment, 0)
	for _, seg := range cam.segments {
		if timerange.Overlaps(seg.Range(), r) {
			out = append(out, seg)
		}
	}
	sortSegments(out)
	return out, true
}

// Add stores segments for cameraID and marks r as covered. An empty or
// inverted r stores the segments without marking any coverage.
func (c *RecordingSegmentsCache) Add(cameraID string, r timerange.DateRange, segments []domain.RecordingSegment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cam := c.cameraLocked(cameraID)
	for _, seg := range segments {
		cam.segments[seg.ID] = seg
	}
	if r.End.After(r.Start) {
		cam.coverage.Add(r)
	}
	c.metrics.CachedSegments.WithLabelValues(cameraID).Set(float64(len(cam.segments)))
}

// ExpireMatches removes every segment of cameraID for which expire returns
// true and returns how many were removed. Coverage is left untouched.
func (c *RecordingSegmentsCache) ExpireMatches(cameraID string, expire func(domain.RecordingSegment) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cam, ok := c.cameras[cameraID]
	if !ok {
		return 0
	}

	removed := 0
	for id, seg := range cam.segments {
		if expire(seg) {
			delete(cam.segments, id)
			removed++
		}
	}
	c.metrics.CachedSegments.WithLabelValues(cameraID).Set(float64(len(cam.segments)))
	return removed
}

// CameraIDs returns the cameras with cached data, sorted.
func (c *RecordingSegmentsCache) CameraIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.cameras))
	for id := range c.cameras {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Size returns the number of segments cached for cameraID.
func (c *RecordingSegmentsCache) Size(cameraID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if cam, ok := c.cameras[cameraID]; ok {
		return len(cam.segments)
	}
	return 0
}

// Clear drops all cameras.
func (c *RecordingSegmentsCache) Clear() {
	c.mu.Lock()
	c.cameras = make(map[string]*cameraSegments)
	c.mu.Unlock()
}

// Snapshot returns the cache contents for persistence.
func (c *RecordingSegmentsCache) Snapshot() map[string]domain.SegmentSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]domain.SegmentSnapshot, len(c.cameras))
	for id, cam := range c.cameras {
		segments := make([]domain.RecordingSegment, 0, len(cam.segments))
		for _, seg := range cam.segments {
			segments = append(segments, seg)
		}
		sortSegments(segments)
		out[id] = domain.SegmentSnapshot{Ranges: cam.coverage.Ranges(), Segments: segments}
	}
	return out
}

// Restore loads persisted contents, merging them into the cache.
func (c *RecordingSegmentsCache) Restore(snapshot map[string]domain.SegmentSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, snap := range snapshot {
		cam := c.cameraLocked(id)
		for _, seg := range snap.Segments {
			cam.segments[seg.ID] = seg
		}
		for _, r := range snap.Ranges {
			cam.coverage.Add(r)
		}
		c.metrics.CachedSegments.WithLabelValues(id).Set(float64(len(cam.segments)))
	}
}

func (c *RecordingSegmentsCache) cameraLocked(cameraID string) *cameraSegments {
	cam, ok := c.cameras[cameraID]
	if !ok {
		cam = &cameraSegments{
			segments: make(map[string]domain.RecordingSegment),
			coverage: timerange.NewMemoryRangeSet(),
		}
		c.cameras[cameraID] = cam
	}
	return cam
}

func sortSegments(segments []domain.RecordingSegment) {
	slices.SortFunc(segments, func(a, b domain.RecordingSegment) int {
		if n := cmp.Compare(a.StartTime, b.StartTime); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
