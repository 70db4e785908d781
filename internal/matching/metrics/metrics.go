// Package metrics exposes the matching pipeline's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts matching decisions and notification outcomes.
type Metrics struct {
	DonorsSelected     *prometheus.CounterVec
	Decisions          *prometheus.CounterVec
	DonorResponses     *prometheus.CounterVec
	NotificationsSent  prometheus.Counter
	NotificationErrors prometheus.Counter
	EmptySelections    prometheus.Counter
}

// New creates and registers the matching metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on the given registerer; tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DonorsSelected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_matching_donors_selected_total",
			Help: "Donors selected for notification, by escalation tier",
		}, []string{"tier"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_matching_request_decisions_total",
			Help: "Request lifecycle decisions by outcome",
		}, []string{"outcome"}),
		DonorResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_matching_donor_responses_total",
			Help: "Donor responses to notifications by outcome",
		}, []string{"outcome"}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_matching_notifications_sent_total",
			Help: "Outbound donor and hospital messages attempted",
		}),
		NotificationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_matching_notification_errors_total",
			Help: "Outbound messages that failed to send",
		}),
		EmptySelections: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_matching_empty_selections_total",
			Help: "Approvals for which no eligible donor was found",
		}),
	}
}
