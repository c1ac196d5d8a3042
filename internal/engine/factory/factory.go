// Package factory picks and builds the engine that serves a camera.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/engine/frigate"
	"github.com/mmcdole/argus/internal/hass"
)

// frigatePlatform is the integration platform of Frigate entities
const frigatePlatform = "frigate"

// Factory resolves camera engines.
type Factory struct {
	registry    hass.EntityRegistry
	logger      *slog.Logger
	frigateOpts []frigate.Option
}

// New creates a Factory. frigateOpts are applied to every Frigate engine it creates.
func New(registry hass.EntityRegistry, logger *slog.Logger, frigateOpts ...frigate.Option) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		registry:    registry,
		logger:      logger,
		frigateOpts: frigateOpts,
	}
}

// GetEngineForCamera returns the engine kind that serves cfg. An explicit
// engine wins. Otherwise the platform of the camera entity decides, and a
// bare Frigate camera name implies Frigate.
func (f *Factory) GetEngineForCamera(ctx context.Context, client hass.Client, cfg domain.CameraConfig) (domain.EngineKind, error) {
	switch cfg.Engine {
	case domain.EngineFrigate, domain.EngineGeneric:
		return cfg.Engine, nil
	case "", domain.EngineAuto:
	default:
		return "", &domain.CameraInitError{
			CameraID: cfg.ID,
			Message:  fmt.Sprintf("unknown engine %q", cfg.Engine),
			Hint:     "use auto, frigate or generic",
		}
	}

	if cfg.CameraEntity != "" {
		entity, err := f.registry.GetEntity(ctx, client, cfg.CameraEntity)
		if err != nil {
			return "", &domain.CameraInitError{
				CameraID: cfg.ID,
				Message:  fmt.Sprintf("could not find camera entity %s", cfg.CameraEntity),
				Hint:     f.typoHint(ctx, client, cfg.CameraEntity),
				Err:      err,
			}
		}
		if entity.Platform == frigatePlatform {
			return domain.EngineFrigate, nil
		}
		return domain.EngineGeneric, nil
	}

	if cfg.Frigate.CameraName != "" {
		return domain.EngineFrigate, nil
	}
	return "", fmt.Errorf("camera %q: %w", cfg.ID, domain.ErrNoCameraEngine)
}

// CreateEngine builds a new engine of the given kind.
func (f *Factory) CreateEngine(kind domain.EngineKind) (engine.Engine, error) {
	switch kind {
	case domain.EngineFrigate:
		opts := append([]frigate.Option{frigate.WithLogger(f.logger)}, f.frigateOpts...)
		return frigate.New(opts...), nil

	case domain.EngineGeneric:
		return engine.Generic{}, nil

	default:
		return nil, fmt.Errorf("unknown engine type: %s", kind)
	}
}

func (f *Factory) typoHint(ctx context.Context, client hass.Client, entityID string) string {
	hint := "this is likely a typo in the entity ID"
	if suggestions := f.registry.Suggest(ctx, client, entityID); len(suggestions) > 0 {
		hint += ", did you mean " + strings.Join(suggestions, ", ") + "?"
	}
	return hint
}
