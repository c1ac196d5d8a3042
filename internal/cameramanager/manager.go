// Package cameramanager is the facade the rest of the application talks to.
// It owns the initialized cameras, routes every operation to the engine that
// serves the camera and merges results across engines.
package cameramanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/hass"
)

// EngineFactory resolves and builds engines.
type EngineFactory interface {
	GetEngineForCamera(ctx context.Context, client hass.Client, cfg domain.CameraConfig) (domain.EngineKind, error)
	CreateEngine(kind domain.EngineKind) (engine.Engine, error)
}

// Manager manages cameras and their engines
type Manager struct {
	client   hass.Client
	registry hass.EntityRegistry
	factory  EngineFactory
	logger   *slog.Logger

	mu            sync.RWMutex
	cameras       engine.Cameras
	cameraEngines map[string]domain.EngineKind
	engines       map[domain.EngineKind]engine.Engine
	initErrors    []error
}

// New creates a camera manager.
func New(client hass.Client, registry hass.EntityRegistry, factory EngineFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:        client,
		registry:      registry,
		factory:       factory,
		logger:        logger,
		cameras:       make(engine.Cameras),
		cameraEngines: make(map[string]domain.EngineKind),
		engines:       make(map[domain.EngineKind]engine.Engine),
	}
}

// Initialize resolves an engine for every camera and lets it enrich the
// config. Cameras that fail are left out and their errors joined into the
// returned error; the rest are usable.
func (m *Manager) Initialize(ctx context.Context, configs []domain.CameraConfig) error {
	type initialized struct {
		cfg  domain.CameraConfig
		kind domain.EngineKind
		err  error
	}
	out := make([]initialized, len(configs))

	var g errgroup.Group
	for i, cfg := range configs {
		g.Go(func() error {
			cfg.ID = cameraID(cfg)
			kind, enriched, err := m.initializeCamera(ctx, cfg)
			out[i] = initialized{cfg: enriched, kind: kind, err: err}
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, r := range out {
		if r.err == nil {
			if _, dup := m.cameras[r.cfg.ID]; dup {
				r.err = &domain.CameraInitError{CameraID: r.cfg.ID, Message: "duplicate camera id"}
			}
		}
		if r.err != nil {
			m.logger.Warn("camera initialization failed", "camera", r.cfg.ID, "error", r.err)
			errs = append(errs, r.err)
			continue
		}
		m.cameras[r.cfg.ID] = r.cfg
		m.cameraEngines[r.cfg.ID] = r.kind
		m.logger.Info("camera initialized", "camera", r.cfg.ID, "engine", string(r.kind))
	}
	m.initErrors = append(m.initErrors, errs...)
	return errors.Join(errs...)
}

func (m *Manager) initializeCamera(ctx context.Context, cfg domain.CameraConfig) (domain.EngineKind, domain.CameraConfig, error) {
	if cfg.ID == "" {
		return "", cfg, &domain.CameraInitError{Message: "camera needs an id, camera_entity or frigate camera_name"}
	}

	kind, err := m.factory.GetEngineForCamera(ctx, m.client, cfg)
	if err != nil {
		if !domain.IsCameraInitError(err) {
			err = &domain.CameraInitError{CameraID: cfg.ID, Message: "no engine for camera", Err: err}
		}
		return "", cfg, err
	}

	eng, err := m.engine(kind)
	if err != nil {
		return "", cfg, &domain.CameraInitError{CameraID: cfg.ID, Message: "failed to create engine", Err: err}
	}

	enriched, err := eng.InitializeCamera(ctx, m.client, m.registry, cfg)
	if err != nil {
		return "", cfg, err
	}

	if enriched.Title == "" && enriched.CameraEntity != "" {
		if entity, err := m.registry.GetEntity(ctx, m.client, enriched.CameraEntity); err == nil {
			enriched.Title = entity.DisplayName()
		}
	}
	return kind, enriched, nil
}

// cameraID falls back to the entity or backend camera name when no ID is set.
func cameraID(cfg domain.CameraConfig) string {
	switch {
	case cfg.ID != "":
		return cfg.ID
	case cfg.CameraEntity != "":
		return cfg.CameraEntity
	case cfg.Frigate.CameraName != "":
		return cfg.Frigate.CameraName
	}
	return ""
}

// engine returns the shared engine of a kind, creating it on first use.
func (m *Manager) engine(kind domain.EngineKind) (engine.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if eng, ok := m.engines[kind]; ok {
		return eng, nil
	}
	eng, err := m.factory.CreateEngine(kind)
	if err != nil {
		return nil, err
	}
	m.engines[kind] = eng
	return eng, nil
}

// Close stops background work of every engine.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, eng := range m.engines {
		if c, ok := eng.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// Engine returns the engine of a kind if any camera uses it.
func (m *Manager) Engine(kind domain.EngineKind) (engine.Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eng, ok := m.engines[kind]
	return eng, ok
}

// Cameras returns a copy of the initialized cameras.
func (m *Manager) Cameras() engine.Cameras {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(engine.Cameras, len(m.cameras))
	for id, cfg := range m.cameras {
		out[id] = cfg
	}
	return out
}

// CameraIDs returns the initialized camera IDs, sorted.
func (m *Manager) CameraIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.cameras))
	for id := range m.cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Camera returns one initialized camera.
func (m *Manager) Camera(id string) (domain.CameraConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.cameras[id]
	return cfg, ok
}

// InitErrors returns the errors of cameras that failed to initialize.
func (m *Manager) InitErrors() []error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]error(nil), m.initErrors...)
}

// cameraEngine returns the engine and config serving cameraID.
func (m *Manager) cameraEngine(cameraID string) (engine.Engine, domain.CameraConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.cameras[cameraID]
	if !ok {
		return nil, domain.CameraConfig{}, fmt.Errorf("unknown camera %q", cameraID)
	}
	eng, ok := m.engines[m.cameraEngines[cameraID]]
	if !ok {
		return nil, cfg, fmt.Errorf("camera %q: %w", cameraID, domain.ErrNoCameraEngine)
	}
	return eng, cfg, nil
}

// engineGroup is the part of a request served by one engine
type engineGroup struct {
	kind      domain.EngineKind
	engine    engine.Engine
	cameraIDs []string
}

// groupByEngine partitions known camera IDs by engine, in a stable order.
func (m *Manager) groupByEngine(cameraIDs []string) []engineGroup {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byKind := make(map[domain.EngineKind][]string)
	seen := make(map[string]bool, len(cameraIDs))
	for _, id := range cameraIDs {
		kind, ok := m.cameraEngines[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		byKind[kind] = append(byKind[kind], id)
	}

	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	groups := make([]engineGroup, 0, len(kinds))
	for _, k := range kinds {
		kind := domain.EngineKind(k)
		ids := byKind[kind]
		sort.Strings(ids)
		groups = append(groups, engineGroup{kind: kind, engine: m.engines[kind], cameraIDs: ids})
	}
	return groups
}
