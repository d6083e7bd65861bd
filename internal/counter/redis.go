package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for the atomic check-and-increment. The cap comparison and the
// INCR run inside Redis, so concurrent callers serialize there instead of
// racing on a GET → check → INCR sequence.
const reserveLuaScript = `
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local cap = tonumber(ARGV[1])

if current + 1 > cap then
    return {0, current}
end

local newVal = redis.call("INCR", KEYS[1])
if newVal == 1 then
    redis.call("EXPIRE", KEYS[1], ARGV[2])
end

return {1, newVal}
`

// keyTTLSeconds keeps counter keys for 48 hours so a day straddling
// timezone boundaries never loses its count mid-flight.
const keyTTLSeconds = 48 * 60 * 60

// RedisCounter is the multi-instance-safe daily counter backed by a Redis
// Lua script.
type RedisCounter struct {
	redis         *redis.Client
	cap           int
	reserveScript *redis.Script
}

// NewRedisCounter creates a counter with a pre-compiled reserve script.
func NewRedisCounter(client *redis.Client, cap int) *RedisCounter {
	return &RedisCounter{
		redis:         client,
		cap:           cap,
		reserveScript: redis.NewScript(reserveLuaScript),
	}
}

func (c *RedisCounter) key(day time.Time) string {
	return "outreach:sent:" + dayKey(day)
}

// Reserve atomically claims one send slot for the day.
func (c *RedisCounter) Reserve(ctx context.Context, day time.Time) (Reservation, error) {
	result, err := c.reserveScript.Run(ctx, c.redis,
		[]string{c.key(day)}, c.cap, keyTTLSeconds).Slice()
	if err != nil {
		return Reservation{}, fmt.Errorf("counter reserve: %w", err)
	}
	granted := result[0].(int64) == 1
	count := int(result[1].(int64))
	return Reservation{Granted: granted, Count: count}, nil
}

// Release refunds a claimed slot after a transport failure. The floor guard
// keeps a stray release from driving the counter negative.
func (c *RedisCounter) Release(ctx context.Context, day time.Time) error {
	val, err := c.redis.Decr(ctx, c.key(day)).Result()
	if err != nil {
		return fmt.Errorf("counter release: %w", err)
	}
	if val < 0 {
		c.redis.Set(ctx, c.key(day), 0, keyTTLSeconds*time.Second)
	}
	return nil
}

// Current returns the day's count without claiming a slot.
func (c *RedisCounter) Current(ctx context.Context, day time.Time) (int, error) {
	val, err := c.redis.Get(ctx, c.key(day)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter read: %w", err)
	}
	return val, nil
}
