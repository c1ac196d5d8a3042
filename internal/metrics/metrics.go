package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the engine metrics
type Metrics struct {
	// Cache lookups, labelled by cache name and result (hit|miss)
	CacheLookupTotal *prometheus.CounterVec
	CacheEntries     *prometheus.GaugeVec

	// Backend calls through the Home Assistant session
	BackendCallTotal    *prometheus.CounterVec
	BackendCallDuration *prometheus.HistogramVec

	// Segment garbage collection
	GCRunTotal        *prometheus.CounterVec
	GCEvictedTotal    prometheus.Counter
	CachedSegments    *prometheus.GaugeVec
	TimelineRefreshes *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// Get returns the process-wide Metrics instance, creating and registering it
// on first use.
func Get() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		CacheLookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_cache_lookups_total",
			Help: "Total number of cache lookups",
		}, []string{"cache", "result"}),

		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argus_cache_entries",
			Help: "Number of entries currently held by a cache",
		}, []string{"cache"}),

		BackendCallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_backend_calls_total",
			Help: "Total number of backend calls",
		}, []string{"type", "status"}),

		BackendCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "argus_backend_call_duration_seconds",
			Help:    "Backend call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),

		GCRunTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_segment_gc_runs_total",
			Help: "Total number of segment garbage collection passes",
		}, []string{"status"}),

		GCEvictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "argus_segment_gc_evicted_total",
			Help: "Total number of recording segments evicted by garbage collection",
		}),

		CachedSegments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "argus_cached_segments",
			Help: "Number of recording segments cached per camera",
		}, []string{"camera"}),

		TimelineRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_timeline_refreshes_total",
			Help: "Total number of timeline refreshes",
		}, []string{"result"}),
	}

	registerMetrics(m)
	globalMetrics = m
	return m
}

func registerMetrics(m *Metrics) {
	registerOrGet(m.CacheLookupTotal)
	registerOrGet(m.CacheEntries)
	registerOrGet(m.BackendCallTotal)
	registerOrGet(m.BackendCallDuration)
	registerOrGet(m.GCRunTotal)
	registerOrGet(m.GCEvictedTotal)
	registerOrGet(m.CachedSegments)
	registerOrGet(m.TimelineRefreshes)
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

// CacheHit records a cache lookup outcome.
func (m *Metrics) CacheHit(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupTotal.WithLabelValues(cache, result).Inc()
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
