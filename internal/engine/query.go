package engine

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/timerange"
)

// QueryType identifies the kind of data a query asks for
type QueryType string

const (
	QueryEvent             QueryType = "event-query"
	QueryRecording         QueryType = "recording-query"
	QueryRecordingSegments QueryType = "recording-segments-query"
	QueryMediaMetadata     QueryType = "media-metadata-query"
)

// Query is the engine-independent query model. CameraIDs, What, Where and
// Tags are sets: order and duplicates do not change the query's identity.
// Zero Start/End and Limit mean unset.
type Query struct {
	Type      QueryType
	CameraIDs []string
	Start     time.Time
	End       time.Time
	Limit     int

	What  []string
	Where []string
	Tags  []string

	HasClip     *bool
	HasSnapshot *bool
	Favorite    *bool
}

// Bool returns a pointer to b, for the optional query flags.
func Bool(b bool) *bool { return &b }

// Normalized returns a copy with every set sorted and de-duplicated.
func (q Query) Normalized() Query {
	q.CameraIDs = normalizeSet(q.CameraIDs)
	q.What = normalizeSet(q.What)
	q.Where = normalizeSet(q.Where)
	q.Tags = normalizeSet(q.Tags)
	q.HasClip = cloneBool(q.HasClip)
	q.HasSnapshot = cloneBool(q.HasSnapshot)
	q.Favorite = cloneBool(q.Favorite)
	return q
}

// WithCameraIDs returns a copy scoped to ids.
func (q Query) WithCameraIDs(ids ...string) Query {
	out := q.Normalized()
	out.CameraIDs = normalizeSet(ids)
	return out
}

// WithType returns a copy with the given type.
func (q Query) WithType(t QueryType) Query {
	out := q.Normalized()
	out.Type = t
	return out
}

// HasRange reports whether both ends of the window are set.
func (q Query) HasRange() bool {
	return !q.Start.IsZero() && !q.End.IsZero()
}

// Range returns the query window.
func (q Query) Range() timerange.DateRange {
	return timerange.DateRange{Start: q.Start, End: q.End}
}

// Validate checks the query can be dispatched to an engine.
func (q Query) Validate() error {
	if len(q.CameraIDs) == 0 {
		return fmt.Errorf("%w: no cameras", domain.ErrInvalidQuery)
	}
	if q.HasRange() && !q.Range().Valid() {
		return fmt.Errorf("%w: start %s is after end %s", domain.ErrInvalidQuery, q.Start, q.End)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", domain.ErrInvalidQuery)
	}
	return nil
}

// queryKey is the canonical serialized form of a normalized query
type queryKey struct {
	Type        QueryType `json:"type"`
	CameraIDs   []string  `json:"cameraIDs"`
	Start       *int64    `json:"start,omitempty"`
	End         *int64    `json:"end,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	What        []string  `json:"what,omitempty"`
	Where       []string  `json:"where,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	HasClip     *bool     `json:"hasClip,omitempty"`
	HasSnapshot *bool     `json:"hasSnapshot,omitempty"`
	Favorite    *bool     `json:"favorite,omitempty"`
}

// CacheKey returns a key equal for structurally equal queries.
func (q Query) CacheKey() string {
	n := q.Normalized()
	key := queryKey{
		Type:        n.Type,
		CameraIDs:   n.CameraIDs,
		Limit:       n.Limit,
		What:        n.What,
		Where:       n.Where,
		Tags:        n.Tags,
		HasClip:     n.HasClip,
		HasSnapshot: n.HasSnapshot,
		Favorite:    n.Favorite,
	}
	if !n.Start.IsZero() {
		ms := n.Start.UnixMilli()
		key.Start = &ms
	}
	if !n.End.IsZero() {
		ms := n.End.UnixMilli()
		key.End = &ms
	}

	data, err := json.Marshal(key)
	if err != nil {
		// queryKey holds only strings, ints and bools
		panic(err)
	}
	return string(data)
}

// Equal reports whether q and other are structurally equal.
func (q Query) Equal(other Query) bool {
	return q.CacheKey() == other.CacheKey()
}

// normalizeSet sorts and de-duplicates s, mapping empty sets to nil.
func normalizeSet(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := slices.Clone(s)
	slices.Sort(out)
	return slices.Compact(out)
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// SameSet reports whether a and b hold the same elements, treating nil and empty as equal.
func SameSet(a, b []string) bool {
	return slices.Equal(normalizeSet(a), normalizeSet(b))
}
