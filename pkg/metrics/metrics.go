package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "taxidispatch"

// Metrics holds the dispatcher's Prometheus collectors.
type Metrics struct {
	ClaimsTotal               *prometheus.CounterVec
	ClaimDuration             prometheus.Histogram
	PartialFailuresTotal      *prometheus.CounterVec
	TransitionsTotal          *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec
	ReconcileRepairsTotal     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClaimsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claims_total",
				Help:      "Claim attempts by outcome",
			},
			[]string{"result"},
		),
		ClaimDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "claim_duration_seconds",
				Help:      "Duration of claim attempts",
				Buckets:   prometheus.DefBuckets,
			},
		),
		PartialFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partial_failures_total",
				Help:      "Order transitions whose follow-up driver write failed",
			},
			[]string{"op"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_transitions_total",
				Help:      "Order status transitions by target status",
			},
			[]string{"to"},
		),
		NotificationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_failures_total",
				Help:      "Outbound notifications that could not be delivered",
			},
			[]string{"op"},
		),
		ReconcileRepairsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_repairs_total",
				Help:      "Driver busy flags repaired by the reconciler",
			},
			[]string{"kind"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.ClaimsTotal,
			m.ClaimDuration,
			m.PartialFailuresTotal,
			m.TransitionsTotal,
			m.NotificationFailuresTotal,
			m.ReconcileRepairsTotal,
		)
	}
	return m
}

// NewNop returns unregistered collectors, for tests and tools.
func NewNop() *Metrics {
	return New(nil)
}
