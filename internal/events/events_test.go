package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Withdrawn(t *testing.T) {
	at := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)
	in := Withdrawn{
		WalletPhone: "0901234567",
		OrderID:     "ORD-1",
		Amount:      decimal.NewFromInt(120000),
		VirtualUsed: decimal.NewFromInt(100000),
		RealUsed:    decimal.NewFromInt(20000),
		RealBalance: decimal.NewFromInt(30000),
		At:          at,
	}

	name, payload, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, "Withdrawn", name)
	assert.Contains(t, payload, `"order_id":"ORD-1"`)

	out, err := Decode(name, payload)
	require.NoError(t, err)

	w, ok := out.(Withdrawn)
	require.True(t, ok, "decode must return the value type, got %T", out)
	assert.Equal(t, "0901234567", w.Phone())
	assert.True(t, w.RealUsed.Equal(decimal.NewFromInt(20000)))
	assert.True(t, w.At.Equal(at))
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode("BalanceTeleported", "{}")
	assert.Error(t, err)
}

func TestDecode_BadPayload(t *testing.T) {
	_, err := Decode(CreditExpired{}.Name(), "{not json")
	assert.Error(t, err)
}

func TestNamesAreDistinct(t *testing.T) {
	all := []Event{
		WalletCreated{}, Deposited{}, Withdrawn{}, CreditIssued{},
		CreditExpired{}, CreditCancelled{}, FreezeChanged{},
	}
	seen := map[string]bool{}
	for _, e := range all {
		assert.False(t, seen[e.Name()], "duplicate event name %s", e.Name())
		seen[e.Name()] = true

		_, err := Decode(e.Name(), "{}")
		assert.NoError(t, err)
	}
}
