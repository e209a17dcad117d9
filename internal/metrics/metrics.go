package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsActive  prometheus.Gauge
	AnswersTotal    prometheus.Counter
	SessionsEnded   prometheus.Counter
	SessionsSwept   prometheus.Counter
	ArchiveFailures prometheus.Counter
}

// New registers the engine collectors on reg. Pass a fresh registry in tests
// to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qrally_sessions_active",
			Help: "Current number of live sessions in the directory",
		}),
		AnswersTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrally_answers_recorded_total",
			Help: "Total number of answers recorded across all sessions",
		}),
		SessionsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrally_sessions_archived_total",
			Help: "Total number of sessions archived to history",
		}),
		SessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrally_sessions_swept_total",
			Help: "Total number of inactive sessions evicted by the sweep",
		}),
		ArchiveFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrally_archive_failures_total",
			Help: "Total number of archive attempts aborted by validation or persistence errors",
		}),
	}
}
