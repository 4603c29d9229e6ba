package sdapi

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdworker",
			Subsystem: "sdapi",
			Name:      "retries_total",
			Help:      "Requests to the local API retried by the shared client",
		},
		[]string{"reason"},
	)

	probeAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdworker",
			Subsystem: "sdapi",
			Name:      "probe_attempts_total",
			Help:      "Readiness probe attempts against the local API",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(retriesTotal, probeAttemptsTotal)
}

func retryReason(err error) string {
	if se, ok := err.(*retryableStatusError); ok {
		return "status_" + strconv.Itoa(se.code)
	}
	return "transport"
}
