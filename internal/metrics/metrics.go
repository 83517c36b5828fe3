package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_ledger_operations_total",
			Help: "Ledger operations by outcome; result is ok or the error code",
		},
		[]string{"operation", "result"},
	)

	LedgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_ledger_operation_duration_seconds",
			Help:    "Time spent in a ledger operation including lock wait",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	LedgerAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_ledger_amount_total",
			Help: "Sum of amounts moved by successful operations, by balance kind",
		},
		[]string{"operation", "balance"},
	)

	VirtualCreditsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_virtual_credits_expired_total",
			Help: "Total number of virtual credits expired by the sweep or inline",
		},
	)

	OutboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_outbox_published_total",
			Help: "Outbox events shipped to Kafka",
		},
		[]string{"status"},
	)

	BalanceDriftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_virtual_balance_drift_total",
			Help: "Times a stored virtual balance disagreed with its active credits",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordOperation(operation, result string, duration float64) {
	LedgerOperationsTotal.WithLabelValues(operation, result).Inc()
	LedgerOperationDuration.WithLabelValues(operation).Observe(duration)
}

// AddAmount counts money moved. Float conversion is for reporting only.
func AddAmount(operation, balance string, amount decimal.Decimal) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return
	}
	f, _ := amount.Float64()
	LedgerAmountTotal.WithLabelValues(operation, balance).Add(f)
}

func RecordExpired(n int) {
	VirtualCreditsExpiredTotal.Add(float64(n))
}

func RecordOutbox(status string) {
	OutboxPublishedTotal.WithLabelValues(status).Inc()
}

func RecordDrift() {
	BalanceDriftTotal.Inc()
}
