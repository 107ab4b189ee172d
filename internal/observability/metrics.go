package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "print_bridge_poll_cycles_total",
		Help: "Total number of completed polling cycles",
	})

	pollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "print_bridge_poll_cycle_duration_seconds",
		Help:    "Duration of a polling cycle in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "print_bridge_jobs_total",
		Help: "Print jobs processed, by kind and outcome",
	}, []string{"kind", "outcome"})

	duplicateJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "print_bridge_duplicate_jobs_total",
		Help: "Jobs skipped because their ID was already seen",
	}, []string{"kind"})

	printAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "print_bridge_transmission_attempts_total",
		Help: "TCP transmission attempts to printers",
	}, []string{"status"})

	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "print_bridge_backend_requests_total",
		Help: "Requests made to the POS backend",
	}, []string{"op", "status"})

	announcements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "print_bridge_voice_announcements_total",
		Help: "Voice announcements, by outcome",
	}, []string{"outcome"})

	enabledPrinters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "print_bridge_enabled_printers",
		Help: "Number of enabled printers in the current snapshot",
	})
)

func RecordPollCycle(seconds float64) {
	pollCycles.Inc()
	pollDuration.Observe(seconds)
}

// RecordJob records the outcome (printed, failed, skipped) of one job.
func RecordJob(kind, outcome string) {
	jobsProcessed.WithLabelValues(kind, outcome).Inc()
}

func RecordDuplicate(kind string) {
	duplicateJobs.WithLabelValues(kind).Inc()
}

func RecordPrintAttempt(success bool) {
	printAttempts.WithLabelValues(status(success)).Inc()
}

func RecordBackendRequest(op string, success bool) {
	backendRequests.WithLabelValues(op, status(success)).Inc()
}

// RecordAnnouncement records spoken, suppressed, skipped or failed.
func RecordAnnouncement(outcome string) {
	announcements.WithLabelValues(outcome).Inc()
}

func SetEnabledPrinters(n int) {
	enabledPrinters.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
