package engine

import (
	"time"

	"github.com/mmcdole/argus/internal/domain"
)

// ResultsBase is carried by every query result
type ResultsBase struct {
	Engine domain.EngineKind `json:"engine"`
	Type   QueryType         `json:"type"`
	Cached bool              `json:"cached"`
	Expiry time.Time         `json:"expiry,omitempty"`
}

// Results is implemented by every engine's result types.
type Results interface {
	Base() ResultsBase
}

// QueryResult pairs a concrete sub-query with what it returned.
type QueryResult struct {
	Query   Query
	Results Results
}

// ResultsMap holds the results of a fanned-out query, keyed by the per-instance
// or per-camera sub-query that produced them.
type ResultsMap []QueryResult

// Get returns the results of the sub-query structurally equal to q.
func (m ResultsMap) Get(q Query) (Results, bool) {
	key := q.CacheKey()
	for _, r := range m {
		if r.Query.CacheKey() == key {
			return r.Results, true
		}
	}
	return nil, false
}

// Queries returns the sub-queries in order.
func (m ResultsMap) Queries() []Query {
	out := make([]Query, len(m))
	for i, r := range m {
		out[i] = r.Query
	}
	return out
}

// AllCached reports whether every result came from a cache.
func (m ResultsMap) AllCached() bool {
	for _, r := range m {
		if !r.Results.Base().Cached {
			return false
		}
	}
	return len(m) > 0
}

// Options tune a single engine call. The zero value uses caches.
type Options struct {
	BypassCache bool
}

// SegmentsResults is implemented by recording segment results.
type SegmentsResults interface {
	Results
	RecordingSegments() []domain.RecordingSegment
}

// MetadataResults is implemented by media metadata results.
type MetadataResults interface {
	Results
	MediaMetadata() domain.MediaMetadata
}
