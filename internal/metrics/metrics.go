package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the coordinator
type Metrics struct {
	RoomsRegistered     prometheus.Gauge
	RegistrationsTotal  prometheus.Counter
	RegistrationsFailed prometheus.Counter
	ProbeFailuresTotal  prometheus.Counter
	SweepsTotal         prometheus.Counter
	SweepDuration       prometheus.Histogram
	ProposalsTotal      *prometheus.CounterVec
	SelectionsTotal     *prometheus.CounterVec
	ForwardFailures     prometheus.Counter
	PendingActions      prometheus.Gauge
}

// NewMetrics registers the coordinator metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RoomsRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomlink_rooms_registered",
			Help: "Number of rooms currently in the registry",
		}),
		RegistrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_registrations_total",
			Help: "Total number of accepted room registrations",
		}),
		RegistrationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_registrations_rejected_total",
			Help: "Total number of rejected room registrations",
		}),
		ProbeFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_probe_failures_total",
			Help: "Total number of failed liveness probes",
		}),
		SweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_sweeps_total",
			Help: "Total number of liveness sweeps",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "roomlink_sweep_duration_seconds",
			Help:    "Duration of liveness sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		ProposalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomlink_proposals_total",
			Help: "Total number of selection proposals by verb",
		}, []string{"verb"}),
		SelectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomlink_selections_total",
			Help: "Total number of selection events by outcome",
		}, []string{"status"}),
		ForwardFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_forward_failures_total",
			Help: "Total number of failed command forwards",
		}),
		PendingActions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomlink_pending_actions",
			Help: "Number of unresolved pending actions",
		}),
	}
}

// NewNoop returns metrics registered against a throwaway registry
func NewNoop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveSelection increments the selection counter for status
func (m *Metrics) ObserveSelection(status string) {
	m.SelectionsTotal.WithLabelValues(status).Inc()
}

// ObserveProposal increments the proposal counter for verb
func (m *Metrics) ObserveProposal(verb string) {
	m.ProposalsTotal.WithLabelValues(verb).Inc()
}
