package frigate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/hass"
)

// cameraUniqueIDPattern extracts the Frigate camera name from a camera
// entity's unique ID (<config entry>:camera:<name>).
var cameraUniqueIDPattern = regexp.MustCompile(`:camera:([^:]+)$`)

const defaultOccupancyLabel = "all"

// InitializeCamera resolves the Frigate camera name from the camera entity
// and discovers motion/occupancy trigger entities when requested. Initialized
// cameras take part in segment GC, including segments restored from disk.
func (e *Engine) InitializeCamera(ctx context.Context, client hass.Client, registry hass.EntityRegistry, cfg domain.CameraConfig) (domain.CameraConfig, error) {
	out, err := e.initializeCamera(ctx, client, registry, cfg)
	if err != nil {
		return out, err
	}
	e.trackCamera(client, out.ID, out)
	if e.segmentsCache.Size(out.ID) > 0 {
		e.gc.Trigger()
	}
	return out, nil
}

func (e *Engine) initializeCamera(ctx context.Context, client hass.Client, registry hass.EntityRegistry, cfg domain.CameraConfig) (domain.CameraConfig, error) {
	out := cfg.Clone()

	needsEntity := out.Frigate.CameraName == "" || out.Triggers.Motion || out.Triggers.Occupancy
	if !needsEntity || out.CameraEntity == "" {
		if out.Frigate.CameraName == "" {
			return cfg, &domain.CameraInitError{
				CameraID: cfg.ID,
				Message:  "camera has neither a camera entity nor a frigate camera name",
			}
		}
		return out, nil
	}

	entity, err := registry.GetEntity(ctx, client, out.CameraEntity)
	if err != nil {
		return cfg, &domain.CameraInitError{
			CameraID: cfg.ID,
			Message:  fmt.Sprintf("could not find camera entity %s", out.CameraEntity),
			Hint:     entityHint(ctx, client, registry, out.CameraEntity),
			Err:      err,
		}
	}

	if out.Frigate.CameraName == "" {
		match := cameraUniqueIDPattern.FindStringSubmatch(entity.UniqueID)
		if match == nil {
			return cfg, &domain.CameraInitError{
				CameraID: cfg.ID,
				Message:  fmt.Sprintf("could not determine frigate camera name from entity %s", entity.EntityID),
				Hint:     "is this a frigate camera entity?",
			}
		}
		out.Frigate.CameraName = match[1]
	}

	if out.Triggers.Motion || out.Triggers.Occupancy {
		triggers, err := e.discoverTriggerEntities(ctx, client, registry, out, entity)
		if err != nil {
			return cfg, &domain.CameraInitError{
				CameraID: cfg.ID,
				Message:  "failed to discover trigger entities",
				Err:      err,
			}
		}
		out.Triggers.Entities = dedupe(append(out.Triggers.Entities, triggers...))
	}

	e.logger.Debug("initialized camera", "camera", cfg.ID, "frigate_camera", out.Frigate.CameraName,
		"triggers", len(out.Triggers.Entities))
	return out, nil
}

func (e *Engine) discoverTriggerEntities(ctx context.Context, client hass.Client, registry hass.EntityRegistry, cfg domain.CameraConfig, camera domain.Entity) ([]string, error) {
	entry := camera.ConfigEntryID
	wanted := make(map[string]bool)

	if cfg.Triggers.Motion {
		wanted[entry+":motion_sensor:"+cfg.Frigate.CameraName] = true
	}
	if cfg.Triggers.Occupancy {
		zones := cfg.Frigate.Zones
		if len(zones) == 0 {
			zones = []string{cfg.Frigate.CameraName}
		}
		labels := cfg.Frigate.Labels
		if len(labels) == 0 {
			labels = []string{defaultOccupancyLabel}
		}
		for _, zone := range zones {
			for _, label := range labels {
				wanted[entry+":occupancy_sensor:"+zone+"_"+label] = true
			}
		}
	}

	matches, err := registry.GetMatchingEntities(ctx, client, func(ent domain.Entity) bool {
		return strings.HasPrefix(ent.EntityID, "binary_sensor.") &&
			ent.ConfigEntryID == entry &&
			wanted[ent.UniqueID]
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.EntityID)
	}
	return ids, nil
}

// entityHint names the closest registry entities to a mistyped entity ID.
func entityHint(ctx context.Context, client hass.Client, registry hass.EntityRegistry, entityID string) string {
	suggestions := registry.Suggest(ctx, client, entityID)
	if len(suggestions) == 0 {
		return "check the entity ID for typos"
	}
	return "did you mean " + strings.Join(suggestions, ", ") + "?"
}

func dedupe(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := s[:0]
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
