package domain

import (
	"math"
	"time"

	"github.com/mmcdole/argus/internal/timerange"
)

// EngineKind identifies the camera backend family
type EngineKind string

const (
	EngineAuto    EngineKind = "auto"
	EngineFrigate EngineKind = "frigate"
	EngineGeneric EngineKind = "generic"
)

// BirdseyeCameraName is Frigate's synthetic multi-camera overview.
const BirdseyeCameraName = "birdseye"

// CameraConfig is the per-camera configuration record
type CameraConfig struct {
	ID           string     `mapstructure:"id" json:"id"`
	Title        string     `mapstructure:"title" json:"title,omitempty"`
	Icon         string     `mapstructure:"icon" json:"icon,omitempty"`
	CameraEntity string     `mapstructure:"camera_entity" json:"camera_entity,omitempty"`
	Engine       EngineKind `mapstructure:"engine" json:"engine,omitempty"`

	Frigate    FrigateConfig    `mapstructure:"frigate" json:"frigate"`
	Go2RTC     Go2RTCConfig     `mapstructure:"go2rtc" json:"go2rtc"`
	WebRTCCard WebRTCCardConfig `mapstructure:"webrtc_card" json:"webrtc_card"`
	Triggers   TriggersConfig   `mapstructure:"triggers" json:"triggers"`
}

// FrigateConfig holds the Frigate-specific part of a camera config
type FrigateConfig struct {
	URL        string   `mapstructure:"url" json:"url,omitempty"`
	ClientID   string   `mapstructure:"client_id" json:"client_id,omitempty"`
	CameraName string   `mapstructure:"camera_name" json:"camera_name,omitempty"`
	Labels     []string `mapstructure:"labels" json:"labels,omitempty"`
	Zones      []string `mapstructure:"zones" json:"zones,omitempty"`
}

// Go2RTCConfig overrides the go2rtc stream name
type Go2RTCConfig struct {
	Stream string `mapstructure:"stream" json:"stream,omitempty"`
}

// WebRTCCardConfig configures the WebRTC card passthrough
type WebRTCCardConfig struct {
	Entity string `mapstructure:"entity" json:"entity,omitempty"`
	URL    string `mapstructure:"url" json:"url,omitempty"`
}

// TriggersConfig lists entities that trigger the camera, plus auto-discovery switches
type TriggersConfig struct {
	Motion    bool     `mapstructure:"motion" json:"motion,omitempty"`
	Occupancy bool     `mapstructure:"occupancy" json:"occupancy,omitempty"`
	Entities  []string `mapstructure:"entities" json:"entities,omitempty"`
}

// DefaultFrigateClientID is used when a camera does not name an instance
const DefaultFrigateClientID = "frigate"

// FrigateClientID returns the configured instance ID or the default.
func (c CameraConfig) FrigateClientID() string {
	if c.Frigate.ClientID == "" {
		return DefaultFrigateClientID
	}
	return c.Frigate.ClientID
}

// Clone returns a deep copy so engines can enrich a config without aliasing the caller's slices.
func (c CameraConfig) Clone() CameraConfig {
	out := c
	out.Frigate.Labels = cloneStrings(c.Frigate.Labels)
	out.Frigate.Zones = cloneStrings(c.Frigate.Zones)
	out.Triggers.Entities = cloneStrings(c.Triggers.Entities)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Entity is an entry of the Home Assistant entity registry
type Entity struct {
	EntityID      string `json:"entity_id"`
	UniqueID      string `json:"unique_id"`
	Platform      string `json:"platform"`
	ConfigEntryID string `json:"config_entry_id,omitempty"`
	Name          string `json:"name,omitempty"`
	OriginalName  string `json:"original_name,omitempty"`
	DisabledBy    string `json:"disabled_by,omitempty"`
	HiddenBy      string `json:"hidden_by,omitempty"`
}

// DisplayName returns the user-set name, falling back to the integration's name
func (e Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.OriginalName
}

// Recording is an hour-aligned continuous-record block
type Recording struct {
	CameraID  string    `json:"camera_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Events    int       `json:"events"`
}

// RecordingSegment is a fine-grained piece of a recording.
// Times are unix seconds with a fractional part.
type RecordingSegment struct {
	ID        string  `json:"id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Start returns the segment start as a time.Time
func (s RecordingSegment) Start() time.Time { return unixFloat(s.StartTime) }

// End returns the segment end as a time.Time
func (s RecordingSegment) End() time.Time { return unixFloat(s.EndTime) }

// Range returns the segment span
func (s RecordingSegment) Range() timerange.DateRange {
	return timerange.DateRange{Start: s.Start(), End: s.End()}
}

// unixFloat converts unix seconds to a UTC time so decoded segments compare
// equal regardless of the host zone.
func unixFloat(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
}

// MediaMetadata describes the values available for filtering media
type MediaMetadata struct {
	What  []string `json:"what,omitempty"`
	Where []string `json:"where,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Days  []string `json:"days,omitempty"`
}

// CameraMetadata is the display information for a camera
type CameraMetadata struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
}
