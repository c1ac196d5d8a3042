package frigate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/argus/internal/domain"
)

// GetCameraEndpoints builds the UI deep link, the go2rtc and jsmpeg stream
// paths and the WebRTC card passthrough for cfg.
func (e *Engine) GetCameraEndpoints(cfg domain.CameraConfig, ectx *domain.EndpointsContext) *domain.CameraEndpoints {
	out := domain.CameraEndpoints{UI: e.uiEndpoint(cfg, ectx)}

	camera := cfg.Frigate.CameraName
	client := cfg.FrigateClientID()
	if camera != "" {
		stream := cfg.Go2RTC.Stream
		if stream == "" {
			stream = camera
		}
		out.Go2RTC = &domain.Endpoint{
			Endpoint: fmt.Sprintf("/api/frigate/%s/mse/api/ws?src=%s", client, url.QueryEscape(stream)),
			Sign:     true,
		}
		out.JSMpeg = &domain.Endpoint{
			Endpoint: fmt.Sprintf("/api/frigate/%s/jsmpeg/%s", client, camera),
			Sign:     true,
		}
	}

	if generic := e.Generic.GetCameraEndpoints(cfg, ectx); generic != nil {
		out.WebRTCCard = generic.WebRTCCard
	}

	if out.IsEmpty() {
		return nil
	}
	return &out
}

// uiEndpoint picks the Frigate UI page: media context first, then the view,
// then the camera page.
func (e *Engine) uiEndpoint(cfg domain.CameraConfig, ectx *domain.EndpointsContext) *domain.Endpoint {
	base := strings.TrimRight(cfg.Frigate.URL, "/")
	if base == "" {
		return nil
	}
	camera := cfg.Frigate.CameraName
	if camera == "" {
		return &domain.Endpoint{Endpoint: base}
	}

	cameraURL := base + "/cameras/" + camera
	eventsURL := base + "/events?camera=" + url.QueryEscape(camera)
	recordingURL := base + "/recording/" + camera

	if ectx == nil {
		return &domain.Endpoint{Endpoint: cameraURL}
	}

	if ectx.Media != nil && !ectx.Media.IsZero() {
		if ectx.Media.IsRecording() {
			start := ectx.Media.StartTime().In(e.location)
			return &domain.Endpoint{Endpoint: fmt.Sprintf("%s/%s/%02d", recordingURL, start.Format(dayLayout), start.Hour())}
		}
		return &domain.Endpoint{Endpoint: eventsURL}
	}

	switch ectx.View {
	case domain.ViewLive:
		return &domain.Endpoint{Endpoint: cameraURL}
	case domain.ViewClip, domain.ViewClips, domain.ViewSnapshot, domain.ViewSnapshots:
		return &domain.Endpoint{Endpoint: eventsURL}
	case domain.ViewRecording, domain.ViewRecordings:
		return &domain.Endpoint{Endpoint: recordingURL}
	}
	return &domain.Endpoint{Endpoint: cameraURL}
}
