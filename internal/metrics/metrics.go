package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the Prometheus metrics shared across the services.
type Registry struct {
	UpdatesProcessed *prometheus.CounterVec
	AlertsEmitted    *prometheus.CounterVec
	Suppressions     *prometheus.CounterVec
	BusErrors        *prometheus.CounterVec
	ProviderCalls    *prometheus.CounterVec
	PipelineLatency  *prometheus.HistogramVec
	TrackedTokens    prometheus.Gauge
	ActiveRegime     prometheus.Gauge
}

// NewRegistry builds and registers the metric set on reg. Pass
// prometheus.DefaultRegisterer in main; tests hand in their own.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		UpdatesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soulscout_updates_processed_total",
				Help: "Market updates consumed from the bus",
			},
			[]string{"service", "status"},
		),

		AlertsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soulscout_alerts_emitted_total",
				Help: "Alerts published by severity band",
			},
			[]string{"band"},
		),

		Suppressions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soulscout_alert_suppressions_total",
				Help: "Alerts dropped by the throttle engine, by filter",
			},
			[]string{"filter"},
		),

		BusErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soulscout_bus_errors_total",
				Help: "Stream bus operation failures",
			},
			[]string{"service", "op"},
		),

		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soulscout_provider_calls_total",
				Help: "Upstream provider calls by provider and outcome",
			},
			[]string{"provider", "status"},
		),

		PipelineLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "soulscout_pipeline_latency_seconds",
				Help:    "Per-update decision pipeline latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"service"},
		),

		TrackedTokens: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "soulscout_tracked_tokens",
				Help: "Tokens currently held in rolling state",
			},
		),

		ActiveRegime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "soulscout_active_regime",
				Help: "Current market regime (0=risk_off, 1=neutral, 2=risk_on)",
			},
		),
	}

	reg.MustRegister(
		r.UpdatesProcessed,
		r.AlertsEmitted,
		r.Suppressions,
		r.BusErrors,
		r.ProviderCalls,
		r.PipelineLatency,
		r.TrackedTokens,
		r.ActiveRegime,
	)

	return r
}
