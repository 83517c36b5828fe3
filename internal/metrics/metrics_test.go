package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("POST", "/v1/wallets/:phone/deposit", "200", 0.02)
	RecordHTTPRequest("POST", "/v1/wallets/:phone/deposit", "200", 0.03)
	RecordHTTPRequest("POST", "/v1/wallets/:phone/deposit", "403", 0.01)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/v1/wallets/:phone/deposit", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/v1/wallets/:phone/deposit", "403")))
}

func TestRecordOperation(t *testing.T) {
	LedgerOperationsTotal.Reset()

	RecordOperation("withdraw", "ok", 0.01)
	RecordOperation("withdraw", "INSUFFICIENT_BALANCE", 0.01)
	RecordOperation("withdraw", "ok", 0.02)

	assert.Equal(t, float64(2), testutil.ToFloat64(LedgerOperationsTotal.WithLabelValues("withdraw", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(LedgerOperationsTotal.WithLabelValues("withdraw", "INSUFFICIENT_BALANCE")))
}

func TestAddAmount_IgnoresNonPositive(t *testing.T) {
	LedgerAmountTotal.Reset()

	AddAmount("withdraw", "virtual", decimal.NewFromInt(100000))
	AddAmount("withdraw", "real", decimal.Zero)
	AddAmount("withdraw", "virtual", decimal.NewFromInt(500))

	assert.Equal(t, float64(100500), testutil.ToFloat64(LedgerAmountTotal.WithLabelValues("withdraw", "virtual")))
	assert.Equal(t, 1, testutil.CollectAndCount(LedgerAmountTotal))
}

func TestRecordExpired(t *testing.T) {
	testCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_virtual_credits_expired_total_test",
			Help: "Total number of virtual credits expired",
		},
	)

	oldCounter := VirtualCreditsExpiredTotal
	VirtualCreditsExpiredTotal = testCounter
	defer func() { VirtualCreditsExpiredTotal = oldCounter }()

	RecordExpired(3)
	RecordExpired(2)

	assert.Equal(t, float64(5), testutil.ToFloat64(testCounter))
}

func TestRecordOutbox(t *testing.T) {
	OutboxPublishedTotal.Reset()

	RecordOutbox("sent")
	RecordOutbox("failed")
	RecordOutbox("sent")

	assert.Equal(t, float64(2), testutil.ToFloat64(OutboxPublishedTotal.WithLabelValues("sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(OutboxPublishedTotal.WithLabelValues("failed")))
}
