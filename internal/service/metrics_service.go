package service

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/timetable"
)

// MetricsSnapshot is a point-in-time summary served alongside the Prometheus endpoint.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	GenerationsTotal         uint64    `json:"generations_total"`
	HoursPlaced              uint64    `json:"hours_placed"`
	HoursUnplaced            uint64    `json:"hours_unplaced"`
	JobsFinished             uint64    `json:"jobs_finished"`
	JobsFailed               uint64    `json:"jobs_failed"`
	QueueDepth               int       `json:"queue_depth"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

const metricsNamespace = "oraccio"

// MetricsService owns a private Prometheus registry plus the atomic
// counters behind the JSON snapshot.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	generationDuration *prometheus.HistogramVec
	hoursPlaced        prometheus.Counter
	hoursFailed        prometheus.Counter
	repairStrategies   *prometheus.CounterVec
	resolverOutcomes   *prometheus.CounterVec
	jobsTotal          *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	generationCount      uint64
	hoursPlacedCount     uint64
	hoursUnplacedCount   uint64
	jobsFinishedCount    uint64
	jobsFailedCount      uint64

	queueDepth atomic.Value // func() int
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_latency_seconds",
		Help:      "Latency for cache lookups",
		Buckets:   prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_write_seconds",
		Help:      "Latency for cache set operations",
		Buckets:   prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hits_total",
		Help:      "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_misses_total",
		Help:      "Total cache misses",
	})

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "timetable_generation_duration_seconds",
		Help:      "Wall time of a generation run including every attempt",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"mode", "success"})

	hoursPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "timetable_hours_placed_total",
		Help:      "Lesson hours placed by the best attempt of each run",
	})

	hoursFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "timetable_hours_failed_total",
		Help:      "Lesson hours left unplaced by the best attempt of each run",
	})

	repairStrategies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "timetable_repair_strategy_total",
		Help:      "Missing pairs placed by each repair strategy",
	}, []string{"strategy"})

	resolverOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "timetable_resolver_seeds_total",
		Help:      "Resolver seeds by outcome",
	}, []string{"outcome"})

	jobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "timetable_jobs_total",
		Help:      "Generation jobs by terminal status",
	}, []string{"status"})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		generationDuration, hoursPlaced, hoursFailed, repairStrategies, resolverOutcomes, jobsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		generationDuration: generationDuration,
		hoursPlaced:        hoursPlaced,
		hoursFailed:        hoursFailed,
		repairStrategies:   repairStrategies,
		resolverOutcomes:   resolverOutcomes,
		jobsTotal:          jobsTotal,
	}
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:        "job_queue_depth",
		Help:        "Generation jobs waiting for a worker",
	}, func() float64 { return float64(m.currentQueueDepth()) }))
	return m
}

// TrackQueueDepth reports depth on the queue gauge and in snapshots.
func (m *MetricsService) TrackQueueDepth(depth func() int) {
	if m == nil || depth == nil {
		return
	}
	m.queueDepth.Store(depth)
}

func (m *MetricsService) currentQueueDepth() int {
	if depth, ok := m.queueDepth.Load().(func() int); ok {
		return depth()
	}
	return 0
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveGeneration records the outcome of the winning attempt of a run.
// mode is "sync" or "job".
func (m *MetricsService) ObserveGeneration(mode string, result *timetable.GenerationResult, duration time.Duration) {
	if m == nil || result == nil {
		return
	}
	m.generationDuration.WithLabelValues(mode, strconv.FormatBool(result.Success)).Observe(duration.Seconds())
	m.hoursPlaced.Add(float64(result.HoursPlaced))
	atomic.AddUint64(&m.hoursPlacedCount, uint64(result.HoursPlaced))
	if missing := result.HoursRequired - result.HoursPlaced; missing > 0 {
		m.hoursFailed.Add(float64(missing))
		atomic.AddUint64(&m.hoursUnplacedCount, uint64(missing))
	}
	if result.Repair != nil {
		for strategy, count := range result.Repair.Strategies {
			m.repairStrategies.WithLabelValues(string(strategy)).Add(float64(count))
		}
	}
	atomic.AddUint64(&m.generationCount, 1)
}

// ObserveResolverSeeds counts solved and failed resolver seeds.
func (m *MetricsService) ObserveResolverSeeds(reports []timetable.SeedReport) {
	if m == nil {
		return
	}
	for _, report := range reports {
		outcome := "failed"
		if report.Solved {
			outcome = "solved"
		}
		m.resolverOutcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveJob counts a job reaching a terminal status.
func (m *MetricsService) ObserveJob(status models.JobStatus) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(strings.ToLower(string(status))).Inc()
	switch status {
	case models.JobStatusFinished:
		atomic.AddUint64(&m.jobsFinishedCount, 1)
	case models.JobStatusFailed:
		atomic.AddUint64(&m.jobsFailedCount, 1)
	}
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		GenerationsTotal:         atomic.LoadUint64(&m.generationCount),
		HoursPlaced:              atomic.LoadUint64(&m.hoursPlacedCount),
		HoursUnplaced:            atomic.LoadUint64(&m.hoursUnplacedCount),
		JobsFinished:             atomic.LoadUint64(&m.jobsFinishedCount),
		JobsFailed:               atomic.LoadUint64(&m.jobsFailedCount),
		QueueDepth:               m.currentQueueDepth(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
