package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all scan metrics
type Metrics struct {
	NoticesSent     prometheus.Counter
	NoticesSkipped  prometheus.Counter
	NoticesFailed   prometheus.Counter
	AccountsScanned prometheus.Counter
	RunDuration     prometheus.Histogram
	NoticesByBucket *prometheus.CounterVec
}

// New creates the scan metrics under the given namespace. Collectors are
// registered on the default registry once per process.
func New(namespace string) *Metrics {
	m := &Metrics{
		NoticesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_sent_total",
			Help:      "Total number of expiry notices delivered",
		}),
		NoticesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_skipped_total",
			Help:      "Total number of in-window accounts skipped for a missing address",
		}),
		NoticesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_failed_total",
			Help:      "Total number of notices rejected by the mail transport",
		}),
		AccountsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_scanned_total",
			Help:      "Total number of directory accounts examined",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a full scan",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		NoticesByBucket: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_by_bucket_total",
			Help:      "Notices dispatched per urgency bucket",
		}, []string{"bucket"}),
	}

	prometheus.MustRegister(
		m.NoticesSent,
		m.NoticesSkipped,
		m.NoticesFailed,
		m.AccountsScanned,
		m.RunDuration,
		m.NoticesByBucket,
	)

	return m
}

// NewUnregistered creates the scan metrics without registering them, for use
// in tests that construct more than one scanner per process.
func NewUnregistered(namespace string) *Metrics {
	return &Metrics{
		NoticesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notices_sent_total",
		}),
		NoticesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notices_skipped_total",
		}),
		NoticesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notices_failed_total",
		}),
		AccountsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "accounts_scanned_total",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_duration_seconds",
		}),
		NoticesByBucket: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notices_by_bucket_total",
		}, []string{"bucket"}),
	}
}
