package cameramanager

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/hass"
)

// FavoriteMedia updates the backend and returns the updated media. The caller
// replaces its copy with the returned value.
func (m *Manager) FavoriteMedia(ctx context.Context, media domain.ViewMedia, favorite bool) (domain.ViewMedia, error) {
	eng, cfg, err := m.cameraEngine(media.CameraID())
	if err != nil {
		return media, err
	}
	if caps := eng.GetMediaCapabilities(media); caps == nil || !caps.CanFavorite {
		return media, fmt.Errorf("favorite %s: %w", media.ID(), domain.ErrUnsupported)
	}
	return eng.FavoriteMedia(ctx, m.client, cfg, media, favorite)
}

// GetMediaSeekTime returns the recorded duration between the media start and
// target, and false when the engine cannot tell.
func (m *Manager) GetMediaSeekTime(ctx context.Context, media domain.ViewMedia, target time.Time, opts engine.Options) (time.Duration, bool, error) {
	eng, _, err := m.cameraEngine(media.CameraID())
	if err != nil {
		return 0, false, err
	}
	return eng.GetMediaSeekTime(ctx, m.client, m.Cameras(), media, target, opts)
}

// GetMediaDownloadPath returns a ready-to-use download path, signed when needed.
func (m *Manager) GetMediaDownloadPath(ctx context.Context, media domain.ViewMedia) (string, error) {
	eng, cfg, err := m.cameraEngine(media.CameraID())
	if err != nil {
		return "", err
	}
	ep, err := eng.GetMediaDownloadPath(ctx, m.client, cfg, media)
	if err != nil {
		return "", err
	}
	if ep == nil {
		return "", fmt.Errorf("download %s: %w", media.ID(), domain.ErrUnsupported)
	}
	return m.SignEndpoint(ctx, *ep)
}

// SignEndpoint returns the endpoint URL, asking Home Assistant to sign it
// when the endpoint requires it.
func (m *Manager) SignEndpoint(ctx context.Context, ep domain.Endpoint) (string, error) {
	if !ep.Sign {
		return ep.Endpoint, nil
	}
	return hass.SignPath(ctx, m.client, ep.Endpoint, hass.DefaultSignExpiry)
}

// GetCameraCapabilities returns the capabilities of a camera, or nil if unknown.
func (m *Manager) GetCameraCapabilities(cameraID string) *domain.CameraCapabilities {
	eng, cfg, err := m.cameraEngine(cameraID)
	if err != nil {
		return nil
	}
	return eng.GetCameraCapabilities(cfg)
}

// GetAggregateCameraCapabilities reports what at least one of cameraIDs supports.
func (m *Manager) GetAggregateCameraCapabilities(cameraIDs []string) domain.CameraCapabilities {
	var out domain.CameraCapabilities
	for _, id := range cameraIDs {
		caps := m.GetCameraCapabilities(id)
		if caps == nil {
			continue
		}
		out.CanFavoriteEvents = out.CanFavoriteEvents || caps.CanFavoriteEvents
		out.CanFavoriteRecordings = out.CanFavoriteRecordings || caps.CanFavoriteRecordings
		out.CanSeek = out.CanSeek || caps.CanSeek
		out.SupportsClips = out.SupportsClips || caps.SupportsClips
		out.SupportsRecordings = out.SupportsRecordings || caps.SupportsRecordings
		out.SupportsSnapshots = out.SupportsSnapshots || caps.SupportsSnapshots
		out.SupportsTimeline = out.SupportsTimeline || caps.SupportsTimeline
	}
	return out
}

// GetMediaCapabilities returns what can be done with media.
func (m *Manager) GetMediaCapabilities(media domain.ViewMedia) *domain.MediaCapabilities {
	eng, _, err := m.cameraEngine(media.CameraID())
	if err != nil {
		return nil
	}
	return eng.GetMediaCapabilities(media)
}

// GetCameraMetadata returns the display title and icon of a camera.
func (m *Manager) GetCameraMetadata(cameraID string) (domain.CameraMetadata, bool) {
	eng, cfg, err := m.cameraEngine(cameraID)
	if err != nil {
		return domain.CameraMetadata{}, false
	}
	return eng.GetCameraMetadata(cfg), true
}

// GetCameraEndpoints returns the endpoints of a camera for the given context.
func (m *Manager) GetCameraEndpoints(cameraID string, ectx *domain.EndpointsContext) *domain.CameraEndpoints {
	eng, cfg, err := m.cameraEngine(cameraID)
	if err != nil {
		return nil
	}
	return eng.GetCameraEndpoints(cfg, ectx)
}
