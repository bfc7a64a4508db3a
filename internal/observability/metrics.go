package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rayzilt/aipscan-deploy/internal/models"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aipscan_deploy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests against the status API.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aipscan_deploy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	convergeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aipscan_deploy",
			Subsystem: "converge",
			Name:      "runs_total",
			Help:      "Convergence runs by outcome.",
		},
		[]string{"outcome"},
	)
	convergeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aipscan_deploy",
			Subsystem: "converge",
			Name:      "run_duration_seconds",
			Help:      "Convergence run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"outcome"},
	)
	taskResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aipscan_deploy",
			Subsystem: "converge",
			Name:      "task_results_total",
			Help:      "Task outcomes across all convergence runs.",
		},
		[]string{"status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, convergeRuns, convergeDuration, taskResults)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordRun(report *models.RunReport) {
	RegisterMetrics()
	outcome := "converged"
	if report.Failed {
		outcome = "failed"
	}
	convergeRuns.WithLabelValues(outcome).Inc()
	convergeDuration.WithLabelValues(outcome).Observe(report.Duration().Seconds())
	for _, res := range report.Results {
		taskResults.WithLabelValues(string(res.Status)).Inc()
	}
}
