// Package frigate implements the camera engine for Frigate NVR instances
// reached through the Home Assistant Frigate integration.
package frigate

import (
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mmcdole/argus/internal/cache"
	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine"
	"github.com/mmcdole/argus/internal/hass"
	"github.com/mmcdole/argus/internal/metrics"
	"github.com/mmcdole/argus/internal/scheduler"
)

const (
	// DefaultEventLimit is used when an event query sets no limit
	DefaultEventLimit = 50

	// DefaultGCInterval bounds how often cached segments are garbage collected
	DefaultGCInterval = time.Hour

	// resultMaxAge is how long event, recording and metadata results stay fresh
	resultMaxAge = 60 * time.Second

	tracerName = "github.com/mmcdole/argus/internal/engine/frigate"
	cameraIcon = "mdi:cctv"
)

// Engine is the Frigate camera engine.
type Engine struct {
	engine.Generic

	requestCache  *cache.RequestCache[engine.Results]
	segmentsCache *cache.RecordingSegmentsCache
	activity      *scheduler.Activity
	gc            *scheduler.Throttle
	location      *time.Location
	eventLimit    int
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics

	// GC needs a session and the configs of cached cameras; both are
	// remembered from the most recent segments fetch.
	gcMu      sync.Mutex
	gcClient  hass.Client
	gcCameras engine.Cameras
}

var _ engine.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	location      *time.Location
	clock         scheduler.Clock
	eventLimit    int
	gcInterval    time.Duration
	requestCache  *cache.RequestCache[engine.Results]
	segmentsCache *cache.RecordingSegmentsCache
	activity      *scheduler.Activity
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithLocation sets the time zone recordings are bucketed in.
func WithLocation(loc *time.Location) Option { return func(o *options) { o.location = loc } }

// WithClock sets the clock used for cache expiry and GC scheduling.
func WithClock(c scheduler.Clock) Option { return func(o *options) { o.clock = c } }

// WithEventLimit overrides the default event query limit.
func WithEventLimit(n int) Option { return func(o *options) { o.eventLimit = n } }

// WithGCInterval overrides how often segment GC may run.
func WithGCInterval(d time.Duration) Option { return func(o *options) { o.gcInterval = d } }

// WithSegmentsCache shares a segments cache, e.g. one restored from disk.
func WithSegmentsCache(c *cache.RecordingSegmentsCache) Option {
	return func(o *options) { o.segmentsCache = c }
}

// WithRequestCache shares a request cache.
func WithRequestCache(c *cache.RequestCache[engine.Results]) Option {
	return func(o *options) { o.requestCache = c }
}

// WithActivity shares the idle tracker GC waits on.
func WithActivity(a *scheduler.Activity) Option { return func(o *options) { o.activity = a } }

// New creates a Frigate engine.
func New(opts ...Option) *Engine {
	o := options{
		logger:     slog.Default(),
		location:   time.Local,
		clock:      scheduler.RealClock(),
		eventLimit: DefaultEventLimit,
		gcInterval: DefaultGCInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.requestCache == nil {
		o.requestCache = cache.NewRequestCache[engine.Results]("frigate_requests")
	}
	o.requestCache.WithClock(o.clock.Now)
	if o.segmentsCache == nil {
		o.segmentsCache = cache.NewRecordingSegmentsCache()
	}
	if o.activity == nil {
		o.activity = scheduler.NewActivity()
	}

	e := &Engine{
		requestCache:  o.requestCache,
		segmentsCache: o.segmentsCache,
		activity:      o.activity,
		location:      o.location,
		eventLimit:    o.eventLimit,
		now:           o.clock.Now,
		logger:        o.logger.With("engine", string(domain.EngineFrigate)),
		metrics:       metrics.Get(),
	}
	e.gc = scheduler.NewThrottle(o.gcInterval, e.runScheduledGC,
		scheduler.WithClock(o.clock),
		scheduler.WithIdler(o.activity),
		scheduler.WithLogger(e.logger),
	)
	return e
}

// Close stops background garbage collection.
func (e *Engine) Close() {
	e.gc.Stop()
}

// SegmentsCache exposes the segments cache for persistence.
func (e *Engine) SegmentsCache() *cache.RecordingSegmentsCache { return e.segmentsCache }

func (e *Engine) EngineType() domain.EngineKind { return domain.EngineFrigate }

// GetQueryResultMaxAge returns how long results of q may be served from cache.
func (e *Engine) GetQueryResultMaxAge(q engine.Query) time.Duration {
	switch q.Type {
	case engine.QueryEvent, engine.QueryRecording, engine.QueryMediaMetadata:
		return resultMaxAge
	}
	return 0
}

// GetCameraCapabilities is a pure function of cfg.
func (e *Engine) GetCameraCapabilities(cfg domain.CameraConfig) *domain.CameraCapabilities {
	if cfg.Frigate.CameraName == domain.BirdseyeCameraName {
		return &domain.CameraCapabilities{}
	}
	return &domain.CameraCapabilities{
		CanFavoriteEvents:     true,
		CanFavoriteRecordings: false,
		CanSeek:               true,
		SupportsClips:         true,
		SupportsRecordings:    true,
		SupportsSnapshots:     true,
		SupportsTimeline:      true,
	}
}

func (e *Engine) GetMediaCapabilities(media domain.ViewMedia) *domain.MediaCapabilities {
	return &domain.MediaCapabilities{
		CanFavorite: media.IsEvent(),
		CanDownload: true,
	}
}

func (e *Engine) GetCameraMetadata(cfg domain.CameraConfig) domain.CameraMetadata {
	title := cfg.Title
	if title == "" && cfg.Frigate.CameraName != "" {
		title = prettify(cfg.Frigate.CameraName)
	}
	if title == "" {
		title = e.Generic.GetCameraMetadata(cfg).Title
	}
	icon := cfg.Icon
	if icon == "" {
		icon = cameraIcon
	}
	return domain.CameraMetadata{Title: title, Icon: icon}
}

var tracer = otel.Tracer(tracerName)

// prettify turns backend identifiers like "front_door" into "Front Door".
func prettify(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	for i, c := range r {
		if c == '_' || c == '-' {
			r[i] = ' '
		}
	}
	// Casers are stateful and not safe to share between goroutines.
	return cases.Title(language.English).String(string(r))
}
