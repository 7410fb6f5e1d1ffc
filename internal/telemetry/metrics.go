package telemetry

import "github.com/prometheus/client_golang/prometheus"

var TasksStartedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "pixelgate",
		Subsystem: "tasks",
		Name:      "started_total",
		Help:      "Total number of generation tasks started.",
	},
)

var TasksCompletedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pixelgate",
		Subsystem: "tasks",
		Name:      "completed_total",
		Help:      "Total number of generation tasks reaching a terminal status.",
	},
	[]string{"status"},
)

var TaskDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "pixelgate",
		Subsystem: "tasks",
		Name:      "duration_seconds",
		Help:      "Generation task wall-clock duration in seconds, from submission to terminal status.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	},
	[]string{"status"},
)

var ObjectStoreUploadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pixelgate",
		Subsystem: "objectstore",
		Name:      "uploads_total",
		Help:      "Total number of object-store upload attempts by outcome.",
	},
	[]string{"outcome"},
)

var ObjectStoreUploadRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "pixelgate",
		Subsystem: "objectstore",
		Name:      "upload_retries_total",
		Help:      "Total number of object-store uploads retried after an expired upload URL.",
	},
)

var UpstreamCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "pixelgate",
		Subsystem: "upstream",
		Name:      "call_duration_seconds",
		Help:      "Upstream generative model call duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
	},
	[]string{"outcome"},
)

var UpstreamFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pixelgate",
		Subsystem: "upstream",
		Name:      "failures_total",
		Help:      "Total number of failed upstream generative model calls by reason.",
	},
	[]string{"reason"},
)

var QuotaRejectedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "pixelgate",
		Subsystem: "quota",
		Name:      "rejected_total",
		Help:      "Total number of quota-consume requests rejected for insufficient balance.",
	},
)

var RedemptionAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pixelgate",
		Subsystem: "redeem",
		Name:      "attempts_total",
		Help:      "Total number of redemption-code attempts by outcome.",
	},
	[]string{"outcome"},
)

// All returns every pixelgate-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		TasksStartedTotal,
		TasksCompletedTotal,
		TaskDuration,
		ObjectStoreUploadsTotal,
		ObjectStoreUploadRetriesTotal,
		UpstreamCallDuration,
		UpstreamFailuresTotal,
		QuotaRejectedTotal,
		RedemptionAttemptsTotal,
	}
}
