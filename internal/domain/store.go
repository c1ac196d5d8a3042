package domain

import "github.com/mmcdole/argus/internal/timerange"

// SegmentSnapshot is the persisted state of one camera's segment cache
type SegmentSnapshot struct {
	Ranges   []timerange.DateRange `json:"ranges"`
	Segments []RecordingSegment    `json:"segments"`
}

// Store persists registry entries and recording segments between runs (BoltDB + memory).
type Store interface {
	// === Entity registry ===
	GetEntity(entityID string) (Entity, bool)
	SaveEntities(entities []Entity) error

	// === Recording segments ===
	LoadSegments() (map[string]SegmentSnapshot, error)
	SaveSegments(snapshot map[string]SegmentSnapshot) error

	// === Invalidation ===
	InvalidateAll()

	Close() error
}
