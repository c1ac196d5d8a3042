package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// MediaKind distinguishes event media from recording media
type MediaKind string

const (
	MediaKindEvent     MediaKind = "event"
	MediaKindRecording MediaKind = "recording"
)

// ViewMediaType is the playable form of a media item
type ViewMediaType string

const (
	ViewMediaClip      ViewMediaType = "clip"
	ViewMediaSnapshot  ViewMediaType = "snapshot"
	ViewMediaRecording ViewMediaType = "recording"
)

// MediaAttributes is the full description of a ViewMedia. Engines fill it in
// and pass it to NewViewMedia.
type MediaAttributes struct {
	Kind      MediaKind
	MediaType ViewMediaType
	Engine    EngineKind
	ID        string
	CameraID  string

	// Backend coordinates used to address the media natively
	InstanceID    string
	BackendCamera string

	StartTime  time.Time
	EndTime    time.Time // zero while in progress
	InProgress bool

	ContentID string
	Thumbnail string
	Title     string
	Favorite  bool

	What  []string
	Where []string
	Tags  []string

	Score      float64
	HasScore   bool
	EventCount int
}

// ViewMedia is the engine-agnostic representation of a viewable media item.
// It is a value: changes produce a new ViewMedia.
type ViewMedia struct {
	attrs MediaAttributes
}

// NewViewMedia builds a ViewMedia, copying the slices it is given.
func NewViewMedia(attrs MediaAttributes) ViewMedia {
	attrs.What = slices.Clone(attrs.What)
	attrs.Where = slices.Clone(attrs.Where)
	attrs.Tags = slices.Clone(attrs.Tags)
	return ViewMedia{attrs: attrs}
}

func (m ViewMedia) Kind() MediaKind          { return m.attrs.Kind }
func (m ViewMedia) MediaType() ViewMediaType { return m.attrs.MediaType }
func (m ViewMedia) Engine() EngineKind       { return m.attrs.Engine }
func (m ViewMedia) ID() string               { return m.attrs.ID }
func (m ViewMedia) CameraID() string         { return m.attrs.CameraID }
func (m ViewMedia) InstanceID() string       { return m.attrs.InstanceID }
func (m ViewMedia) BackendCamera() string    { return m.attrs.BackendCamera }
func (m ViewMedia) StartTime() time.Time     { return m.attrs.StartTime }
func (m ViewMedia) InProgress() bool         { return m.attrs.InProgress }
func (m ViewMedia) ContentID() string        { return m.attrs.ContentID }
func (m ViewMedia) Thumbnail() string        { return m.attrs.Thumbnail }
func (m ViewMedia) Title() string            { return m.attrs.Title }
func (m ViewMedia) Favorite() bool           { return m.attrs.Favorite }
func (m ViewMedia) EventCount() int          { return m.attrs.EventCount }
func (m ViewMedia) What() []string           { return slices.Clone(m.attrs.What) }
func (m ViewMedia) Where() []string          { return slices.Clone(m.attrs.Where) }
func (m ViewMedia) Tags() []string           { return slices.Clone(m.attrs.Tags) }

// EndTime returns the end of the media and false while it is still in progress.
func (m ViewMedia) EndTime() (time.Time, bool) {
	if m.attrs.InProgress || m.attrs.EndTime.IsZero() {
		return time.Time{}, false
	}
	return m.attrs.EndTime, true
}

// Score returns the detection score when the backend reported one.
func (m ViewMedia) Score() (float64, bool) {
	return m.attrs.Score, m.attrs.HasScore
}

// IsEvent reports whether the media wraps a backend event.
func (m ViewMedia) IsEvent() bool { return m.attrs.Kind == MediaKindEvent }

// IsRecording reports whether the media wraps a recording.
func (m ViewMedia) IsRecording() bool { return m.attrs.Kind == MediaKindRecording }

// IsZero reports whether m was never constructed.
func (m ViewMedia) IsZero() bool { return m.attrs.ID == "" && m.attrs.Kind == "" }

// Attributes returns a copy of the underlying attributes.
func (m ViewMedia) Attributes() MediaAttributes {
	return NewViewMedia(m.attrs).attrs
}

// WithFavorite returns a copy of m with the favorite flag set.
func (m ViewMedia) WithFavorite(favorite bool) ViewMedia {
	out := NewViewMedia(m.attrs)
	out.attrs.Favorite = favorite
	return out
}

// viewMediaJSON is the serialized form of ViewMedia
type viewMediaJSON struct {
	Kind       MediaKind     `json:"kind"`
	MediaType  ViewMediaType `json:"media_type"`
	Engine     EngineKind    `json:"engine,omitempty"`
	ID         string        `json:"id"`
	CameraID   string        `json:"camera_id"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
	InProgress bool          `json:"in_progress,omitempty"`
	ContentID  string        `json:"content_id,omitempty"`
	Thumbnail  string        `json:"thumbnail,omitempty"`
	Title      string        `json:"title"`
	Favorite   bool          `json:"favorite"`
	What       []string      `json:"what,omitempty"`
	Where      []string      `json:"where,omitempty"`
	Tags       []string      `json:"tags,omitempty"`
	Score      *float64      `json:"score,omitempty"`
	EventCount int           `json:"event_count,omitempty"`
}

func (m ViewMedia) MarshalJSON() ([]byte, error) {
	out := viewMediaJSON{
		Kind:       m.attrs.Kind,
		MediaType:  m.attrs.MediaType,
		Engine:     m.attrs.Engine,
		ID:         m.attrs.ID,
		CameraID:   m.attrs.CameraID,
		StartTime:  m.attrs.StartTime,
		InProgress: m.attrs.InProgress,
		ContentID:  m.attrs.ContentID,
		Thumbnail:  m.attrs.Thumbnail,
		Title:      m.attrs.Title,
		Favorite:   m.attrs.Favorite,
		What:       m.attrs.What,
		Where:      m.attrs.Where,
		Tags:       m.attrs.Tags,
		EventCount: m.attrs.EventCount,
	}
	if end, ok := m.EndTime(); ok {
		out.EndTime = &end
	}
	if m.attrs.HasScore {
		score := m.attrs.Score
		out.Score = &score
	}
	return json.Marshal(out)
}
