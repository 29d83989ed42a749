package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildhall_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// EmailsSent counts delivery attempts by template and result (sent, failed, skipped).
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildhall_emails_total",
		Help: "Total number of email delivery attempts",
	}, []string{"template", "result"})

	// ReferralTransitions counts applied lifecycle transitions by target status.
	ReferralTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildhall_referral_transitions_total",
		Help: "Total number of referral status transitions applied",
	}, []string{"to"})

	// ReminderPass counts per-application outcomes of reminder passes.
	ReminderPass = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildhall_reminder_pass_total",
		Help: "Outcomes of application reminder passes",
	}, []string{"outcome"})

	// WebSocketConnectionsTotal is the gauge of open realtime connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guildhall_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to slow consumers.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildhall_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// Email delivery results.
const (
	EmailResultSent    = "sent"
	EmailResultFailed  = "failed"
	EmailResultSkipped = "skipped"
)

// RecordEmail increments the email counter.
func RecordEmail(template, result string) {
	EmailsSent.WithLabelValues(template, result).Inc()
}
