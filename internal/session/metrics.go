package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics
var (
	samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lyrix_time_samples_total", Help: "Time samples by source and decision"},
		[]string{"source", "reason"},
	)
	correctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lyrix_timecode_corrections_total", Help: "Automatic timecode corrections"},
		[]string{"cause"},
	)
	transportTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lyrix_transport_transitions_total", Help: "Host-sync transport transitions"},
		[]string{"to", "reason"},
	)
	watchdogFires = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "lyrix_watchdog_fires_total", Help: "Watchdog ticks that stopped playback"},
	)
	openSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "lyrix_open_sessions", Help: "Sessions held by the registry"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(samplesTotal, correctionsTotal, transportTransitions, watchdogFires, openSessions)
}
