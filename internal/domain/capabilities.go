package domain

// CameraCapabilities are static per-camera feature flags
type CameraCapabilities struct {
	CanFavoriteEvents     bool `json:"can_favorite_events"`
	CanFavoriteRecordings bool `json:"can_favorite_recordings"`
	CanSeek               bool `json:"can_seek"`
	SupportsClips         bool `json:"supports_clips"`
	SupportsRecordings    bool `json:"supports_recordings"`
	SupportsSnapshots     bool `json:"supports_snapshots"`
	SupportsTimeline      bool `json:"supports_timeline"`
}

// MediaCapabilities are per-media feature flags
type MediaCapabilities struct {
	CanFavorite bool `json:"can_favorite"`
	CanDownload bool `json:"can_download"`
}

// Endpoint is a URL that may need a backend-issued signature before use
type Endpoint struct {
	Endpoint string `json:"endpoint"`
	Sign     bool   `json:"sign,omitempty"`
}

// CameraEndpoints groups the endpoint kinds a camera can expose
type CameraEndpoints struct {
	UI         *Endpoint `json:"ui,omitempty"`
	Go2RTC     *Endpoint `json:"go2rtc,omitempty"`
	JSMpeg     *Endpoint `json:"jsmpeg,omitempty"`
	WebRTCCard *Endpoint `json:"webrtc_card,omitempty"`
}

// IsEmpty reports whether no endpoint is set.
func (e CameraEndpoints) IsEmpty() bool {
	return e.UI == nil && e.Go2RTC == nil && e.JSMpeg == nil && e.WebRTCCard == nil
}

// View names used to pick the UI deep link
const (
	ViewLive       = "live"
	ViewClip       = "clip"
	ViewClips      = "clips"
	ViewSnapshot   = "snapshot"
	ViewSnapshots  = "snapshots"
	ViewRecording  = "recording"
	ViewRecordings = "recordings"
	ViewTimeline   = "timeline"
)

// EndpointsContext narrows which UI deep link is built
type EndpointsContext struct {
	View  string
	Media *ViewMedia
}
