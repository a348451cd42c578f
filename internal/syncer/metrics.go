package syncer

import "github.com/prometheus/client_golang/prometheus"

var (
	replayedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitsync",
		Subsystem: "syncer",
		Name:      "mutations_replayed_total",
		Help:      "Number of queued mutations confirmed by the backend and dequeued.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitsync",
		Subsystem: "syncer",
		Name:      "mutations_failed_total",
		Help:      "Number of replay attempts that failed and were retained for retry.",
	})

	quarantinedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitsync",
		Subsystem: "syncer",
		Name:      "mutations_quarantined_total",
		Help:      "Number of mutations that exhausted their retry budget.",
	})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitsync",
		Subsystem: "syncer",
		Name:      "run_duration_seconds",
		Help:      "Time spent draining one queue snapshot.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(replayedCounter, failedCounter, quarantinedCounter, runDuration)
}
