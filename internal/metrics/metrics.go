// Package metrics holds the process's Prometheus collectors as plain
// package-level promauto vars rather than a collector struct threaded
// through every Config — probe metrics are process-global.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProbesInflight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netprobe_probes_inflight",
		Help: "Number of probe runs currently in flight, by operation class.",
	}, []string{"op"})

	ProbeDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netprobe_probe_duration_seconds",
		Help:    "Duration of completed probe runs, by operation class and outcome.",
		Buckets: prometheus.ExponentialBuckets(0.005, 1.8, 12), // ~5ms .. ~3.2s
	}, []string{"op", "outcome"})

	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netprobe_probes_total",
		Help: "Total number of probe runs started, by operation class.",
	}, []string{"op"})

	BytesTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netprobe_speedtest_bytes_total",
		Help: "Total bytes transferred by speedtest runs, by direction.",
	}, []string{"direction"})

	ProgressDone = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netprobe_progress_done_ratio",
		Help: "Most recently reported done/total ratio for an in-flight run, by operation class.",
	}, []string{"op"})
)
