package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// acquireScript sets every key or none.  It returns {1} on success and
// {0, i, j, ...} listing the indexes of every KEYS entry already held.
var acquireScript = redis.NewScript(`
    local held = {0}
    for i, k in ipairs(KEYS) do
        if redis.call('EXISTS', k) == 1 then
            table.insert(held, i)
        end
    end
    if #held > 1 then
        return held
    end
    for _, k in ipairs(KEYS) do
        redis.call('SET', k, ARGV[1], 'PX', ARGV[2])
    end
    return {1}
`)

// releaseScript deletes only the keys whose value is the holder id.
var releaseScript = redis.NewScript(`
    local n = 0
    for _, k in ipairs(KEYS) do
        if redis.call('GET', k) == ARGV[1] then
            redis.call('DEL', k)
            n = n + 1
        end
    end
    return n
`)

// RedisTable is a Locker shared by every process talking to the same
// Redis.  Keys expire after the ttl given to NewRedisTable, which the
// server sets to the hold TTL plus two reaper intervals, so a crashed
// process cannot leave seats locked.  Redis failures are logged and treated as a
// successful acquire: the conditional write in the store still decides.
type RedisTable struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisTable builds a RedisTable.  prefix namespaces the keys.
func NewRedisTable(rdb *redis.Client, prefix string, ttl time.Duration, log *zap.Logger) *RedisTable {
	if prefix == "" {
		prefix = "seatlock"
	}
	return &RedisTable{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

// seatKey hash-tags the pool id so all seats of a pool share a cluster slot.
func (t *RedisTable) seatKey(poolID uint64, seat string) string {
	return fmt.Sprintf("%s:{%d}:%s", t.prefix, poolID, seat)
}

func (t *RedisTable) keys(poolID uint64, seats []string) []string {
	keys := make([]string, len(seats))
	for i, s := range seats {
		keys[i] = t.seatKey(poolID, s)
	}
	return keys
}

// TryAcquireBatch implements Locker.
func (t *RedisTable) TryAcquireBatch(ctx context.Context, poolID uint64, seats []string, holder string) ([]string, bool) {
	ordered := canonical(seats)
	if len(ordered) == 0 {
		return nil, true
	}
	res, err := acquireScript.Run(ctx, t.rdb, t.keys(poolID, ordered), holder, t.ttl.Milliseconds()).Int64Slice()
	if err != nil || len(res) == 0 {
		t.log.Warn("seat lock acquire failed, deferring to store",
			zap.Uint64("pool_id", poolID), zap.String("holder", holder), zap.Error(err))
		return nil, true
	}
	if res[0] == 1 {
		return nil, true
	}
	return heldSeats(ordered, res[1:]), false
}

// heldSeats maps the 1-based indexes returned by acquireScript back to
// seat numbers.  An empty or malformed list blames the whole batch.
func heldSeats(ordered []string, idx []int64) []string {
	var out []string
	for _, i := range idx {
		if i >= 1 && int(i) <= len(ordered) {
			out = append(out, ordered[i-1])
		}
	}
	if len(out) == 0 {
		return ordered
	}
	return out
}

// Owner implements Locker.  A Redis error reports the seat as unowned.
func (t *RedisTable) Owner(ctx context.Context, poolID uint64, seat string) (string, bool) {
	h, err := t.rdb.Get(ctx, t.seatKey(poolID, seat)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			t.log.Warn("seat lock lookup failed", zap.Uint64("pool_id", poolID), zap.String("seat", seat), zap.Error(err))
		}
		return "", false
	}
	return h, true
}

// ReleaseBatch implements Locker.
func (t *RedisTable) ReleaseBatch(ctx context.Context, poolID uint64, seats []string, holder string) {
	ordered := canonical(seats)
	if len(ordered) == 0 {
		return
	}
	if err := releaseScript.Run(ctx, t.rdb, t.keys(poolID, ordered), holder).Err(); err != nil {
		t.log.Warn("seat lock release failed",
			zap.Uint64("pool_id", poolID), zap.String("holder", holder), zap.Error(err))
	}
}
