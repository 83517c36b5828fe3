package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBalanceCache_RoundTrip(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	r := NewRepository(nil, rdb, &kafka.Writer{}, zap.NewNop().Sugar()).WithCacheTTL(time.Minute)
	ctx := context.Background()

	b := model.Balances{
		RealBalance:    decimal.NewFromInt(30000),
		VirtualBalance: decimal.NewFromInt(5000),
		TotalBalance:   decimal.NewFromInt(35000),
		Version:        3,
	}
	key := "wallet:balance:0901234567"
	payload := `{"realBalance":"30000","virtualBalance":"5000","totalBalance":"35000","version":3}`

	mock.ExpectEvalSha(balanceScript.Hash(), []string{key}, "3", payload, "60000").SetVal(int64(1))
	mock.ExpectHGet(key, "b").SetVal(payload)
	mock.ExpectDel(key).SetVal(1)
	mock.ExpectHGet(key, "b").RedisNil()

	require.NoError(t, r.CacheBalance(ctx, "0901234567", b))

	got, err := r.GetCachedBalance(ctx, "0901234567")
	require.NoError(t, err)
	assert.True(t, got.TotalBalance.Equal(b.TotalBalance))
	assert.True(t, got.VirtualBalance.Equal(b.VirtualBalance))
	assert.EqualValues(t, 3, got.Version)

	require.NoError(t, r.InvalidateBalance(ctx, "0901234567"))

	_, err = r.GetCachedBalance(ctx, "0901234567")
	assert.ErrorIs(t, err, redis.Nil)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceCache_KeepsNewestVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	r := NewRepository(nil, rdb, &kafka.Writer{}, zap.NewNop().Sugar()).WithCacheTTL(time.Minute)
	ctx := context.Background()

	bal := func(real int64, version uint64) model.Balances {
		return model.Balances{
			RealBalance:    decimal.NewFromInt(real),
			VirtualBalance: decimal.Zero,
			TotalBalance:   decimal.NewFromInt(real),
			Version:        version,
		}
	}

	require.NoError(t, r.CacheBalance(ctx, "0901234567", bal(150, 2)))
	// a slower writer of an earlier commit lands afterwards
	require.NoError(t, r.CacheBalance(ctx, "0901234567", bal(100, 1)))

	got, err := r.GetCachedBalance(ctx, "0901234567")
	require.NoError(t, err)
	assert.True(t, got.RealBalance.Equal(decimal.NewFromInt(150)), "got %s", got.RealBalance)
	assert.EqualValues(t, 2, got.Version)
	assert.Equal(t, time.Minute, mr.TTL("wallet:balance:0901234567"))

	require.NoError(t, r.CacheBalance(ctx, "0901234567", bal(170, 3)))
	got, err = r.GetCachedBalance(ctx, "0901234567")
	require.NoError(t, err)
	assert.True(t, got.RealBalance.Equal(decimal.NewFromInt(170)))
}

func TestBalanceCache_Disabled(t *testing.T) {
	r := NewRepository(nil, nil, &kafka.Writer{}, zap.NewNop().Sugar())
	ctx := context.Background()

	assert.Error(t, r.CacheBalance(ctx, "0901234567", model.Balances{}))
	_, err := r.GetCachedBalance(ctx, "0901234567")
	assert.Error(t, err)
	assert.Error(t, r.InvalidateBalance(ctx, "0901234567"))
}
