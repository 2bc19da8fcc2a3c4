// Package metrics provides Prometheus metrics for the footfall pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	latencyBuckets    []float64
	similarityBuckets []float64
	refreshInterval   time.Duration
	registry          prometheus.Registerer

	// Pipeline
	framesProcessed *prometheus.CounterVec
	framesSkipped   *prometheus.CounterVec
	detections      *prometheus.CounterVec
	frameLatency    prometheus.Histogram

	// Tracker
	tracksActive  *prometheus.GaugeVec
	tracksCreated *prometheus.CounterVec
	tracksEvicted *prometheus.CounterVec

	// Identity resolution
	identityMatches       prometheus.Counter
	identityRegistrations prometheus.Counter
	identityNearMisses    prometheus.Counter
	identitySimilarity    prometheus.Histogram
	identitiesStored      prometheus.Gauge
	embedMisses           *prometheus.CounterVec

	// Events and persistence
	events            *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
	storeLatency      *prometheus.HistogramVec

	// Writer queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueRejected    prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:         "footfall",
		subsystem:         "pipeline",
		latencyBuckets:    prometheus.DefBuckets,
		similarityBuckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		refreshInterval:   defaultRefreshInterval,
		registry:          prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// RefreshInterval is how often callers should refresh gauge snapshots.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// RefreshInterval reports the global manager's refresh interval.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		}, labels)
	}
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		})
	}

	m.framesProcessed = counterVec("frames_processed_total", "Frames run through detection and tracking", "stream")
	m.framesSkipped = counterVec("frames_skipped_total", "Frames dropped by frame skipping", "stream")
	m.detections = counterVec("detections_total", "Detections accepted above the confidence threshold", "stream")
	m.frameLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frame_latency_milliseconds",
		Help:      "Time spent processing one frame in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	m.tracksActive = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracks_active",
		Help:      "Tracks currently alive",
	}, []string{"stream"})
	m.tracksCreated = counterVec("tracks_created_total", "Tracks spawned by the tracker", "stream")
	m.tracksEvicted = counterVec("tracks_evicted_total", "Tracks evicted after the grace period", "stream")

	m.identityMatches = counter("identity_matches_total", "Tracks bound to an already known identity")
	m.identityRegistrations = counter("identity_registrations_total", "New identities registered")
	m.identityNearMisses = counter("identity_near_misses_total", "Lookups whose best similarity fell below the threshold")
	m.identitySimilarity = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "identity_best_similarity",
		Help:      "Best cosine similarity seen per identity lookup",
		Buckets:   m.similarityBuckets,
	})
	m.identitiesStored = gauge("identities_stored", "Identities in the store")
	m.embedMisses = counterVec("embed_misses_total", "Active unbound tracks without a usable embedding", "stream")

	m.events = counterVec("events_total", "Entry and exit events persisted", "kind")
	m.persistenceErrors = counterVec("persistence_errors_total", "Store writes that failed", "operation")
	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_latency_milliseconds",
		Help:      "Store operation latency in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"operation"})

	m.queueSize = gauge("writer_queue_size", "Pending store writes")
	m.queueCapacity = gauge("writer_queue_capacity", "Writer queue capacity")
	m.queueUtilization = gauge("writer_queue_utilization_ratio", "Writer queue utilization (size / capacity)")
	m.queueRejected = counter("writer_queue_rejected_total", "Store writes rejected by the writer queue")

	m.httpRequests = counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = gauge("system_goroutines", "Number of goroutines")
}

// RecordFrameProcessed counts a processed frame and its latency.
func RecordFrameProcessed(stream string, latency time.Duration) {
	globalManager.framesProcessed.WithLabelValues(stream).Inc()
	globalManager.frameLatency.Observe(float64(latency.Microseconds()) / 1000)
}

// RecordFrameSkipped counts a frame dropped by frame skipping.
func RecordFrameSkipped(stream string) {
	globalManager.framesSkipped.WithLabelValues(stream).Inc()
}

// RecordDetections counts accepted detections.
func RecordDetections(stream string, n int) {
	globalManager.detections.WithLabelValues(stream).Add(float64(n))
}

// UpdateTracksActive sets the live track count of a stream.
func UpdateTracksActive(stream string, n int) {
	globalManager.tracksActive.WithLabelValues(stream).Set(float64(n))
}

// RecordTracksCreated counts spawned tracks.
func RecordTracksCreated(stream string, n int) {
	globalManager.tracksCreated.WithLabelValues(stream).Add(float64(n))
}

// RecordTracksEvicted counts evicted tracks.
func RecordTracksEvicted(stream string, n int) {
	globalManager.tracksEvicted.WithLabelValues(stream).Add(float64(n))
}

// RecordIdentityLookup records the best similarity of a lookup and whether
// it matched.
func RecordIdentityLookup(similarity float64, matched bool) {
	globalManager.identitySimilarity.Observe(similarity)
	if matched {
		globalManager.identityMatches.Inc()
	} else {
		globalManager.identityNearMisses.Inc()
	}
}

// RecordIdentityRegistered counts a new identity.
func RecordIdentityRegistered() {
	globalManager.identityRegistrations.Inc()
}

// UpdateIdentitiesStored sets the identity count gauge.
func UpdateIdentitiesStored(n int) {
	globalManager.identitiesStored.Set(float64(n))
}

// RecordEmbedMiss counts an unbound track without a usable embedding.
func RecordEmbedMiss(stream string) {
	globalManager.embedMisses.WithLabelValues(stream).Inc()
}

// RecordEvent counts a persisted event by kind.
func RecordEvent(kind string) {
	globalManager.events.WithLabelValues(kind).Inc()
}

// RecordPersistenceError counts a failed store write.
func RecordPersistenceError(operation string) {
	globalManager.persistenceErrors.WithLabelValues(operation).Inc()
}

// RecordStoreLatency records how long a store operation took.
func RecordStoreLatency(operation string, latency time.Duration) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(float64(latency.Microseconds()) / 1000)
}

// UpdateQueueSize sets the writer queue backlog and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the writer queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a write the queue refused.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// RecordHTTPRequest counts an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets the heap usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
