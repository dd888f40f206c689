package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records remote-call latency and run outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	remoteLatency *prometheus.HistogramVec
	runs          *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		remoteLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_remote_call_duration_seconds",
				Help:    "Latency of calls to the generation and speech services.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"service", "op", "outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Pipeline runs by mode and final status.",
			},
			[]string{"mode", "status"},
		),
	}
	for _, c := range []prometheus.Collector{m.remoteLatency, m.runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(service, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.remoteLatency.WithLabelValues(service, op, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) countRun(mode, status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(mode, status).Inc()
}
