package frigate

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
)

// Event matches a Frigate event as returned by the Home Assistant integration
type Event struct {
	ID                 string   `json:"id"`
	Camera             string   `json:"camera"`
	Label              string   `json:"label"`
	Zones              []string `json:"zones"`
	StartTime          float64  `json:"start_time"`
	EndTime            *float64 `json:"end_time"` // nil while in progress
	HasClip            bool     `json:"has_clip"`
	HasSnapshot        bool     `json:"has_snapshot"`
	TopScore           *float64 `json:"top_score"`
	SubLabel           SubLabel `json:"sub_label"`
	RetainIndefinitely bool     `json:"retain_indefinitely"`
}

// SubLabel holds an event's sub-labels. Frigate sends either a
// comma-joined string or a [label, score] pair.
type SubLabel []string

func (s *SubLabel) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*s = nil
	case string:
		*s = splitSubLabels(v)
	case []any:
		if len(v) > 0 {
			if label, ok := v[0].(string); ok {
				*s = splitSubLabels(label)
				return nil
			}
		}
		*s = nil
	default:
		*s = nil
	}
	return nil
}

func (s SubLabel) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(strings.Join(s, ","))
}

func splitSubLabels(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// flexInt decodes numbers that may arrive as JSON strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// RecordingSummary is one day of the recordings summary
type RecordingSummary struct {
	Day    string              `json:"day"` // yyyy-MM-dd in the requested time zone
	Events int                 `json:"events"`
	Hours  []RecordingHourInfo `json:"hours"`
}

// RecordingHourInfo is one hour bucket of a recording summary day
type RecordingHourInfo struct {
	Hour     flexInt `json:"hour"`
	Events   int     `json:"events"`
	Duration float64 `json:"duration"`
}

// EventSummary is one row of the events summary
type EventSummary struct {
	Camera   string   `json:"camera"`
	Day      string   `json:"day"`
	Label    string   `json:"label"`
	SubLabel SubLabel `json:"sub_label"`
	Zones    []string `json:"zones"`
	Count    int      `json:"count"`
}

// EventQueryResults is the answer to one per-instance event query
type EventQueryResults struct {
	engine.ResultsBase
	InstanceID string  `json:"instance_id"`
	Events     []Event `json:"events"`
}

func (r *EventQueryResults) Base() engine.ResultsBase { return r.ResultsBase }

// RecordingQueryResults is the answer to one per-camera recording query
type RecordingQueryResults struct {
	engine.ResultsBase
	InstanceID string             `json:"instance_id"`
	Recordings []domain.Recording `json:"recordings"`
}

func (r *RecordingQueryResults) Base() engine.ResultsBase { return r.ResultsBase }

// RecordingSegmentsQueryResults is the answer to one per-camera segments query
type RecordingSegmentsQueryResults struct {
	engine.ResultsBase
	InstanceID string                    `json:"instance_id"`
	Segments   []domain.RecordingSegment `json:"segments"`
}

func (r *RecordingSegmentsQueryResults) Base() engine.ResultsBase { return r.ResultsBase }

func (r *RecordingSegmentsQueryResults) RecordingSegments() []domain.RecordingSegment {
	return r.Segments
}

// MediaMetadataQueryResults is the answer to one per-instance metadata query
type MediaMetadataQueryResults struct {
	engine.ResultsBase
	InstanceID string               `json:"instance_id"`
	Metadata   domain.MediaMetadata `json:"metadata"`
}

func (r *MediaMetadataQueryResults) Base() engine.ResultsBase { return r.ResultsBase }

func (r *MediaMetadataQueryResults) MediaMetadata() domain.MediaMetadata { return r.Metadata }

var (
	_ engine.SegmentsResults = (*RecordingSegmentsQueryResults)(nil)
	_ engine.MetadataResults = (*MediaMetadataQueryResults)(nil)
)

// Native requests sent through the Home Assistant session.

type eventsRequest struct {
	Type        string   `json:"type"`
	InstanceID  string   `json:"instance_id"`
	Cameras     []string `json:"cameras,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Zones       []string `json:"zones,omitempty"`
	SubLabels   string   `json:"sub_labels,omitempty"`
	After       *int64   `json:"after,omitempty"`
	Before      *int64   `json:"before,omitempty"`
	Limit       int      `json:"limit"`
	HasClip     *bool    `json:"has_clip,omitempty"`
	HasSnapshot *bool    `json:"has_snapshot,omitempty"`
	Favorites   *bool    `json:"favorites,omitempty"`
}

type eventsSummaryRequest struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id"`
	Timezone   string `json:"timezone"`
}

type recordingsSummaryRequest struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id"`
	Camera     string `json:"camera"`
	Timezone   string `json:"timezone"`
}

type recordingsGetRequest struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id"`
	Camera     string `json:"camera"`
	After      int64  `json:"after"`
	Before     int64  `json:"before"`
}

type retainRequest struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id"`
	EventID    string `json:"event_id"`
	Retain     bool   `json:"retain"`
}

// unixSeconds converts t for the backend, which takes seconds, not milliseconds.
func unixSeconds(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	s := t.Unix()
	return &s
}
