// Package metrics holds the Prometheus collectors of the dispatcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// API
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests."},
		[]string{"route", "method", "code"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms..~10s
		},
		[]string{"route", "method"},
	)
	CampaignsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigns_created_total", Help: "Accepted campaigns."},
		[]string{"mode"}, // immediate | scheduled
	)

	// Dispatch
	RecipientOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_recipient_outcomes_total", Help: "Final recipient outcomes."},
		[]string{"outcome"}, // sent | failed | blocked
	)
	GatewayAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gateway_send_attempts_total", Help: "Gateway send attempts."},
		[]string{"result"}, // ok | transient | terminal
	)
	GatewaySendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_send_duration_seconds",
			Help:    "Gateway send latency per attempt.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms..~40s
		},
	)
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaign_status_transitions_total", Help: "Applied campaign status transitions."},
		[]string{"from", "to"},
	)
	RecoveryPauses = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_recovery_pauses_total", Help: "Recovery pauses after consecutive failures."},
	)
	ActiveDispatches = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dispatch_active", Help: "Dispatch loops running in this process."},
	)
	CampaignsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "campaigns_by_status", Help: "Stored campaigns per status."},
		[]string{"status"},
	)
	OptOuts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optout_total", Help: "Contacts unsubscribed via inbound keyword."},
	)
)

// MustRegister registers the dispatcher collectors on the default registry,
// which already carries the Go and process collectors.
func MustRegister() {
	prometheus.MustRegister(
		HTTPRequests, HTTPDuration, CampaignsCreated,
		RecipientOutcomes, GatewayAttempts, GatewaySendDuration,
		StatusTransitions, RecoveryPauses, ActiveDispatches,
		CampaignsByStatus, OptOuts,
	)
}
