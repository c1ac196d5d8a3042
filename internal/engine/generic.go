package engine

import (
	"context"
	"time"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/hass"
)

const defaultCameraIcon = "mdi:video"

// Generic is the engine for cameras without native event or recording
// queries. Backend engines embed it so operations they do not implement
// degrade to nil.
type Generic struct{}

var _ Engine = Generic{}

func (Generic) EngineType() domain.EngineKind { return domain.EngineGeneric }

func (Generic) InitializeCamera(_ context.Context, _ hass.Client, _ hass.EntityRegistry, cfg domain.CameraConfig) (domain.CameraConfig, error) {
	return cfg, nil
}

func (Generic) GenerateDefaultEventQuery(Cameras, []string, Query) []Query { return nil }

func (Generic) GenerateDefaultRecordingQuery(Cameras, []string, Query) []Query { return nil }

func (Generic) GenerateDefaultRecordingSegmentsQuery(Cameras, []string, Query) []Query { return nil }

func (Generic) GetEvents(context.Context, hass.Client, Cameras, Query, Options) (ResultsMap, error) {
	return nil, nil
}

func (Generic) GetRecordings(context.Context, hass.Client, Cameras, Query, Options) (ResultsMap, error) {
	return nil, nil
}

func (Generic) GetRecordingSegments(context.Context, hass.Client, Cameras, Query, Options) (ResultsMap, error) {
	return nil, nil
}

func (Generic) GetMediaMetadata(context.Context, hass.Client, Cameras, Query, Options) (ResultsMap, error) {
	return nil, nil
}

func (Generic) GenerateMediaFromEvents(Cameras, Query, Results) []domain.ViewMedia { return nil }

func (Generic) GenerateMediaFromRecordings(Cameras, Query, Results) []domain.ViewMedia { return nil }

func (Generic) GetMediaDownloadPath(context.Context, hass.Client, domain.CameraConfig, domain.ViewMedia) (*domain.Endpoint, error) {
	return nil, nil
}

func (Generic) FavoriteMedia(context.Context, hass.Client, domain.CameraConfig, domain.ViewMedia, bool) (domain.ViewMedia, error) {
	return domain.ViewMedia{}, nil
}

func (Generic) GetMediaSeekTime(context.Context, hass.Client, Cameras, domain.ViewMedia, time.Time, Options) (time.Duration, bool, error) {
	return 0, false, nil
}

// GetCameraCapabilities returns the nothing-supported set.
func (Generic) GetCameraCapabilities(domain.CameraConfig) *domain.CameraCapabilities {
	return &domain.CameraCapabilities{}
}

func (Generic) GetMediaCapabilities(domain.ViewMedia) *domain.MediaCapabilities { return nil }

func (Generic) GetCameraMetadata(cfg domain.CameraConfig) domain.CameraMetadata {
	title := cfg.Title
	if title == "" {
		title = cfg.CameraEntity
	}
	if title == "" {
		title = cfg.ID
	}
	icon := cfg.Icon
	if icon == "" {
		icon = defaultCameraIcon
	}
	return domain.CameraMetadata{Title: title, Icon: icon}
}

// GetCameraEndpoints exposes the WebRTC card passthrough when an entity is known.
func (Generic) GetCameraEndpoints(cfg domain.CameraConfig, _ *domain.EndpointsContext) *domain.CameraEndpoints {
	entity := cfg.WebRTCCard.Entity
	if entity == "" {
		entity = cfg.CameraEntity
	}
	if entity == "" {
		return nil
	}
	return &domain.CameraEndpoints{WebRTCCard: &domain.Endpoint{Endpoint: entity}}
}

func (Generic) GetQueryResultMaxAge(Query) time.Duration { return 0 }
