package serverless

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdworker",
			Subsystem: "runtime",
			Name:      "jobs_total",
			Help:      "Jobs taken from the platform by result",
		},
		[]string{"result"},
	)

	jobsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sdworker",
			Subsystem: "runtime",
			Name:      "jobs_in_progress",
			Help:      "Jobs currently being handled",
		},
	)

	pollErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdworker",
			Subsystem: "runtime",
			Name:      "poll_errors_total",
			Help:      "Failed webhook calls by operation",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, jobsInProgress, pollErrorsTotal)
}
