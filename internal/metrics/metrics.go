// Package metrics holds the process wide Prometheus collectors.
package metrics

import (
	"crowdfund/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts campaign operations by outcome. The outcome is
	// "ok" or the error class of the failure.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdfund_operations_total",
		Help: "Campaign operations by operation and outcome",
	}, []string{"op", "outcome"})

	// EscrowedAmount tracks funds held in escrow by this process since start.
	EscrowedAmount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crowdfund_escrowed_amount",
		Help: "Funds currently held in escrow, as seen by this instance",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crowdfund_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
	}, []string{"method", "route", "status"})

	OutboxSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crowdfund_outbox_messages_total",
		Help: "Outbox messages relayed to the broker by result",
	}, []string{"result"})
)

const outcomeOK = "ok"

// Outcome maps an operation error to its metric label.
func Outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	return string(model.ClassOf(err))
}

func ObserveOperation(op string, err error) {
	OperationsTotal.WithLabelValues(op, Outcome(err)).Inc()
}
