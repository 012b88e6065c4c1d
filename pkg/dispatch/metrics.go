package dispatch

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, fmt.Errorf("metrics registerer must not be nil")
	}

	m := &metrics{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bottled",
				Name:      "invocations_total",
				Help:      "Total number of service invocations by outcome.",
			},
			[]string{"service", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bottled",
				Name:      "invocation_duration_seconds",
				Help:      "Duration of service invocations.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us to ~1.6s
			},
			[]string{"service"},
		),
	}

	for _, c := range []prometheus.Collector{m.invocations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// observe records one invocation. It is a no-op on a nil receiver.
func (m *metrics) observe(service, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(service, outcome).Inc()
	if elapsed > 0 {
		m.duration.WithLabelValues(service).Observe(elapsed.Seconds())
	}
}
