package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/wallet-ledger/internal/model"
)

var errNoCache = errors.New("balance cache disabled")

func balanceKey(phone string) string { return "wallet:balance:" + phone }

// balanceScript stores a balance only if no newer wallet version is cached.
// KEYS[1] hash key; ARGV version, payload, ttl in ms.
var balanceScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'b', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// CacheBalance writes Redis. Writers finish in any order after commit, so a
// balance older than the cached one is dropped.
func (r *Repository) CacheBalance(ctx context.Context, phone string, b model.Balances) error {
	if r.rdb == nil {
		return errNoCache
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return balanceScript.Run(ctx, r.rdb, []string{balanceKey(phone)},
		strconv.FormatUint(b.Version, 10),
		string(payload),
		strconv.FormatInt(r.cacheTTL.Milliseconds(), 10),
	).Err()
}

// GetCachedBalance reads Redis. A miss returns redis.Nil.
func (r *Repository) GetCachedBalance(ctx context.Context, phone string) (model.Balances, error) {
	if r.rdb == nil {
		return model.Balances{}, errNoCache
	}
	str, err := r.rdb.HGet(ctx, balanceKey(phone), "b").Result()
	if err != nil {
		return model.Balances{}, err
	}
	var b model.Balances
	if err := json.Unmarshal([]byte(str), &b); err != nil {
		return model.Balances{}, err
	}
	return b, nil
}

// InvalidateBalance drops the cached entry; a missing key is not an error.
func (r *Repository) InvalidateBalance(ctx context.Context, phone string) error {
	if r.rdb == nil {
		return errNoCache
	}
	err := r.rdb.Del(ctx, balanceKey(phone)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
