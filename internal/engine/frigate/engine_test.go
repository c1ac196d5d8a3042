package frigate

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/scheduler"
)

var t0 = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *scheduler.FakeClock) {
	t.Helper()
	clock := scheduler.NewFakeClock(t0)
	base := []Option{
		WithClock(clock),
		WithLocation(time.UTC),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	e := New(append(base, opts...)...)
	t.Cleanup(e.Close)
	return e, clock
}

func frigateCamera(id, name string) domain.CameraConfig {
	return domain.CameraConfig{ID: id, Frigate: domain.FrigateConfig{CameraName: name}}
}

func TestGetCameraCapabilities_Birdseye(t *testing.T) {
	e, _ := newTestEngine(t)

	caps := e.GetCameraCapabilities(frigateCamera("overview", domain.BirdseyeCameraName))
	require.NotNil(t, caps)
	assert.False(t, caps.CanSeek)
	assert.False(t, caps.CanFavoriteEvents)
	assert.False(t, caps.SupportsClips)
	assert.False(t, caps.SupportsSnapshots)
	assert.False(t, caps.SupportsRecordings)
	assert.False(t, caps.SupportsTimeline)

	caps = e.GetCameraCapabilities(frigateCamera("front", "front_door"))
	assert.True(t, caps.CanSeek)
	assert.True(t, caps.SupportsTimeline)
	assert.False(t, caps.CanFavoriteRecordings)
}

func TestGetCameraCapabilities_StableForSameConfig(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := frigateCamera("front", "front_door")
	assert.Equal(t, e.GetCameraCapabilities(cfg), e.GetCameraCapabilities(cfg))
}

func TestGetCameraMetadata(t *testing.T) {
	e, _ := newTestEngine(t)

	md := e.GetCameraMetadata(frigateCamera("front", "front_door"))
	assert.Equal(t, "Front Door", md.Title)
	assert.Equal(t, "mdi:cctv", md.Icon)

	cfg := frigateCamera("front", "front_door")
	cfg.Title = "Porch"
	cfg.Icon = "mdi:doorbell"
	md = e.GetCameraMetadata(cfg)
	assert.Equal(t, "Porch", md.Title)
	assert.Equal(t, "mdi:doorbell", md.Icon)
}

func TestGetQueryResultMaxAge(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Equal(t, time.Minute, e.GetQueryResultMaxAge(engine.Query{Type: engine.QueryEvent}))
	assert.Equal(t, time.Minute, e.GetQueryResultMaxAge(engine.Query{Type: engine.QueryRecording}))
	assert.Zero(t, e.GetQueryResultMaxAge(engine.Query{Type: engine.QueryRecordingSegments}))
}

func TestGetCameraEndpoints(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := frigateCamera("front", "front_door")
	cfg.Frigate.URL = "http://frigate.local:5000/"
	cfg.Frigate.ClientID = "nvr"
	cfg.CameraEntity = "camera.front_door"

	eps := e.GetCameraEndpoints(cfg, nil)
	require.NotNil(t, eps)
	assert.Equal(t, "http://frigate.local:5000/cameras/front_door", eps.UI.Endpoint)
	assert.Equal(t, "/api/frigate/nvr/mse/api/ws?src=front_door", eps.Go2RTC.Endpoint)
	assert.True(t, eps.Go2RTC.Sign)
	assert.Equal(t, "/api/frigate/nvr/jsmpeg/front_door", eps.JSMpeg.Endpoint)
	assert.True(t, eps.JSMpeg.Sign)
	assert.Equal(t, "camera.front_door", eps.WebRTCCard.Endpoint)

	cfg.Go2RTC.Stream = "front hq"
	eps = e.GetCameraEndpoints(cfg, &domain.EndpointsContext{View: domain.ViewClips})
	assert.Equal(t, "/api/frigate/nvr/mse/api/ws?src=front+hq", eps.Go2RTC.Endpoint)
	assert.Equal(t, "http://frigate.local:5000/events?camera=front_door", eps.UI.Endpoint)

	eps = e.GetCameraEndpoints(cfg, &domain.EndpointsContext{View: domain.ViewRecordings})
	assert.Equal(t, "http://frigate.local:5000/recording/front_door", eps.UI.Endpoint)
}

func TestGetCameraEndpoints_MediaContextWins(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := frigateCamera("front", "front_door")
	cfg.Frigate.URL = "http://frigate.local"

	rec := domain.NewViewMedia(domain.MediaAttributes{
		Kind:      domain.MediaKindRecording,
		MediaType: domain.ViewMediaRecording,
		ID:        "r1",
		StartTime: time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC),
	})
	eps := e.GetCameraEndpoints(cfg, &domain.EndpointsContext{View: domain.ViewLive, Media: &rec})
	assert.Equal(t, "http://frigate.local/recording/front_door/2024-03-10/07", eps.UI.Endpoint)

	ev := domain.NewViewMedia(domain.MediaAttributes{Kind: domain.MediaKindEvent, ID: "e1"})
	eps = e.GetCameraEndpoints(cfg, &domain.EndpointsContext{View: domain.ViewLive, Media: &ev})
	assert.Equal(t, "http://frigate.local/events?camera=front_door", eps.UI.Endpoint)
}

func TestGetCameraEndpoints_NoneWithoutCamera(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Nil(t, e.GetCameraEndpoints(domain.CameraConfig{ID: "x"}, nil))
}

func TestSubLabel_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want SubLabel
	}{
		{"null", `null`, nil},
		{"single", `"bob"`, SubLabel{"bob"}},
		{"comma joined", `"bob, alice"`, SubLabel{"bob", "alice"}},
		{"label with score", `["bob", 0.92]`, SubLabel{"bob"}},
		{"empty", `""`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SubLabel
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordingHour_AcceptsStrings(t *testing.T) {
	var summary []RecordingSummary
	data := `[{"day":"2024-03-10","events":3,"hours":[{"hour":"07","events":1,"duration":3600},{"hour":8,"events":2,"duration":1800}]}]`
	require.NoError(t, json.Unmarshal([]byte(data), &summary))

	require.Len(t, summary[0].Hours, 2)
	assert.Equal(t, flexInt(7), summary[0].Hours[0].Hour)
	assert.Equal(t, flexInt(8), summary[0].Hours[1].Hour)
}
