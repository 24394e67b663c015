package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	surfacesRegistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surfacekit",
			Subsystem: "presenter",
			Name:      "surfaces_registered_total",
			Help:      "Total surface registrations.",
		},
		[]string{"module"},
	)
	surfacesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "surfacekit",
			Subsystem: "presenter",
			Name:      "surfaces_active",
			Help:      "Surfaces currently registered.",
		},
	)
	schedulerCreations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "surfacekit",
			Subsystem: "presenter",
			Name:      "scheduler_creations_total",
			Help:      "Scheduler instances created across reloads.",
		},
	)
	runtimeReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "surfacekit",
			Subsystem: "presenter",
			Name:      "runtime_reloads_total",
			Help:      "Producer-runtime reload cycles observed.",
		},
	)
	mutationBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surfacekit",
			Subsystem: "mounting",
			Name:      "mutation_batches_total",
			Help:      "Mutation batches handled by the mounting engine.",
		},
		[]string{"outcome"},
	)
	mountDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "surfacekit",
			Subsystem: "mounting",
			Name:      "transaction_duration_seconds",
			Help:      "Mutation batch apply duration on the mounting loop, by batch size bucket.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mutations"},
	)
	poolDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "surfacekit",
			Subsystem: "mounting",
			Name:      "root_view_pool_depth",
			Help:      "Root views currently parked in the pool.",
		},
	)
	poolOverflow = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "surfacekit",
			Subsystem: "mounting",
			Name:      "root_view_pool_overflow_total",
			Help:      "Root views destroyed because the pool was at capacity.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surfacekit",
			Subsystem: "inspector",
			Name:      "requests_total",
			Help:      "Total inspector HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "surfacekit",
			Subsystem: "inspector",
			Name:      "request_duration_seconds",
			Help:      "Inspector HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

const (
	BatchOutcomeApplied = "applied"
	BatchOutcomeDropped = "dropped"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			surfacesRegistered,
			surfacesActive,
			schedulerCreations,
			runtimeReloads,
			mutationBatches,
			mountDuration,
			poolDepth,
			poolOverflow,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSurfaceRegistered(module string) {
	RegisterMetrics()
	surfacesRegistered.WithLabelValues(module).Inc()
	surfacesActive.Inc()
}

func RecordSurfaceUnregistered() {
	RegisterMetrics()
	surfacesActive.Dec()
}

func RecordSchedulerCreated() {
	RegisterMetrics()
	schedulerCreations.Inc()
}

func RecordRuntimeReload() {
	RegisterMetrics()
	runtimeReloads.Inc()
}

func RecordMutationBatch(outcome string, mutations int, duration time.Duration) {
	RegisterMetrics()
	mutationBatches.WithLabelValues(outcome).Inc()
	if outcome == BatchOutcomeApplied {
		mountDuration.WithLabelValues(mutationBucket(mutations)).Observe(duration.Seconds())
	}
}

// mutationBucket keeps the histogram's batch-size label bounded.
func mutationBucket(n int) string {
	switch {
	case n <= 0:
		return "0"
	case n <= 8:
		return "1-8"
	case n <= 32:
		return "9-32"
	default:
		return "33+"
	}
}

func RecordPoolDepth(depth int) {
	RegisterMetrics()
	poolDepth.Set(float64(depth))
}

func RecordPoolOverflow() {
	RegisterMetrics()
	poolOverflow.Inc()
}
