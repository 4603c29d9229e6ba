package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	forwardTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdworker",
			Subsystem: "worker",
			Name:      "forward_total",
			Help:      "txt2img requests forwarded to the local API by outcome",
		},
		[]string{"outcome"},
	)

	forwardDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sdworker",
			Subsystem: "worker",
			Name:      "forward_duration_seconds",
			Help:      "Duration of forwarded txt2img requests in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600},
		},
	)

	handlerPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sdworker",
			Subsystem: "worker",
			Name:      "handler_panics_total",
			Help:      "Panics recovered at the job entry point",
		},
	)

	settingsPushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdworker",
			Subsystem: "worker",
			Name:      "settings_push_total",
			Help:      "Startup settings pushes by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(forwardTotal, forwardDuration, handlerPanicsTotal, settingsPushTotal)
}
