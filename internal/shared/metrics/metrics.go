package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "guarddog"

var (
	registry = prometheus.NewRegistry()

	jobsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "jobs_enqueued_total",
		Help:      "Analysis jobs created, segmented by priority lane.",
	}, []string{"lane"})
	jobsDeduplicated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "jobs_deduplicated_total",
		Help:      "Enqueue attempts answered with an existing job.",
	}, []string{"lane"})
	jobsStalled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "jobs_stalled_total",
		Help:      "Active jobs failed after exceeding the visibility timeout.",
	}, []string{"lane"})
	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Lifecycle events published on the bus by type.",
	}, []string{"type"})
	listenerEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "listener",
		Name:      "events_total",
		Help:      "Events handled by the result listener by type and outcome.",
	}, []string{"type", "outcome"})
	votes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "voting",
		Name:      "votes_total",
		Help:      "On-chain votes attempted by outcome.",
	}, []string{"outcome"})
	batchFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "voting",
		Name:      "batch_fallbacks_total",
		Help:      "Batched vote transactions that failed and fell back to individual votes.",
	})
	analysisJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "jobs_total",
		Help:      "Analysis jobs processed by the worker by outcome.",
	}, []string{"outcome"})
	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "analysis_duration_ms",
		Help:      "Analysis duration in milliseconds.",
		Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	})
)

func init() {
	registry.MustRegister(
		jobsEnqueued,
		jobsDeduplicated,
		jobsStalled,
		eventsPublished,
		listenerEvents,
		votes,
		batchFallbacks,
		analysisJobs,
		analysisDuration,
	)
}

// Registry returns the collector registry backing /metrics.
func Registry() *prometheus.Registry {
	return registry
}

// IncJobEnqueued counts a newly created analysis job.
func IncJobEnqueued(lane string) {
	jobsEnqueued.WithLabelValues(lane).Inc()
}

// IncJobDeduplicated counts an enqueue that returned an existing job.
func IncJobDeduplicated(lane string) {
	jobsDeduplicated.WithLabelValues(lane).Inc()
}

// IncJobStalled counts an active job failed by the stall sweep.
func IncJobStalled(lane string) {
	jobsStalled.WithLabelValues(lane).Inc()
}

// IncEventPublished counts a published lifecycle event.
func IncEventPublished(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

// IncListenerEvent counts an event handled by the result listener.
func IncListenerEvent(eventType, outcome string) {
	listenerEvents.WithLabelValues(eventType, outcome).Inc()
}

// AddVotes records vote outcomes for one orchestrator run.
func AddVotes(successful, failed int) {
	if successful > 0 {
		votes.WithLabelValues("success").Add(float64(successful))
	}
	if failed > 0 {
		votes.WithLabelValues("failure").Add(float64(failed))
	}
}

// IncBatchFallback counts a batch vote that fell back to individual transactions.
func IncBatchFallback() {
	batchFallbacks.Inc()
}

// IncAnalysisJob counts a worker job outcome (completed, failed, dropped).
func IncAnalysisJob(outcome string) {
	analysisJobs.WithLabelValues(outcome).Inc()
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
