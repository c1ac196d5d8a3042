// Package engine defines the contract every camera backend implements and the
// engine-independent query model.
package engine

import (
	"context"
	"time"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/hass"
)

// Cameras maps camera IDs to their configuration
type Cameras map[string]domain.CameraConfig

// Engine is implemented by every camera backend. Operations a backend cannot
// answer return nil values with a nil error.
type Engine interface {
	EngineType() domain.EngineKind

	// InitializeCamera may enrich cfg. It returns a CameraInitError when the
	// camera cannot be used.
	InitializeCamera(ctx context.Context, client hass.Client, registry hass.EntityRegistry, cfg domain.CameraConfig) (domain.CameraConfig, error)

	GenerateDefaultEventQuery(cameras Cameras, cameraIDs []string, partial Query) []Query
	GenerateDefaultRecordingQuery(cameras Cameras, cameraIDs []string, partial Query) []Query
	GenerateDefaultRecordingSegmentsQuery(cameras Cameras, cameraIDs []string, partial Query) []Query

	GetEvents(ctx context.Context, client hass.Client, cameras Cameras, q Query, opts Options) (ResultsMap, error)
	GetRecordings(ctx context.Context, client hass.Client, cameras Cameras, q Query, opts Options) (ResultsMap, error)
	GetRecordingSegments(ctx context.Context, client hass.Client, cameras Cameras, q Query, opts Options) (ResultsMap, error)
	GetMediaMetadata(ctx context.Context, client hass.Client, cameras Cameras, q Query, opts Options) (ResultsMap, error)

	GenerateMediaFromEvents(cameras Cameras, q Query, results Results) []domain.ViewMedia
	GenerateMediaFromRecordings(cameras Cameras, q Query, results Results) []domain.ViewMedia

	GetMediaDownloadPath(ctx context.Context, client hass.Client, cfg domain.CameraConfig, media domain.ViewMedia) (*domain.Endpoint, error)

	// FavoriteMedia updates the backend first and returns the updated media.
	FavoriteMedia(ctx context.Context, client hass.Client, cfg domain.CameraConfig, media domain.ViewMedia, favorite bool) (domain.ViewMedia, error)

	// GetMediaSeekTime returns the recorded video duration between the start
	// of media and target. It reports false when it cannot be computed.
	GetMediaSeekTime(ctx context.Context, client hass.Client, cameras Cameras, media domain.ViewMedia, target time.Time, opts Options) (time.Duration, bool, error)

	GetCameraCapabilities(cfg domain.CameraConfig) *domain.CameraCapabilities
	GetMediaCapabilities(media domain.ViewMedia) *domain.MediaCapabilities
	GetCameraMetadata(cfg domain.CameraConfig) domain.CameraMetadata
	GetCameraEndpoints(cfg domain.CameraConfig, ectx *domain.EndpointsContext) *domain.CameraEndpoints

	// GetQueryResultMaxAge is how long results of q stay fresh. Zero means
	// results are not cacheable.
	GetQueryResultMaxAge(q Query) time.Duration
}
