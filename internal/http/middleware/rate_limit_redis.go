package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// countAndDecideScript records a hit and renders the verdict in one round
// trip. The counter key expires with the window, so idle clients cost
// nothing. Returns {allowed, retry-after ms}.
var countAndDecideScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if hits > tonumber(ARGV[2]) then
  return {0, redis.call("PTTL", KEYS[1])}
end
return {1, 0}
`)

// RedisFixedWindowLimiter shares one fixed window per client key across
// all replicas. Auth endpoints use it fail-closed, the API scope
// fail-open.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "analytics-dash:rl"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if l.client == nil {
		return false, window, fmt.Errorf("redis rate limiter has no client")
	}
	if key == "" {
		key = "unknown"
	}
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		windowMS = time.Second.Milliseconds()
	}

	raw, err := countAndDecideScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, windowMS, limit).Result()
	if err != nil {
		return false, window, err
	}
	verdict, ok := raw.([]interface{})
	if !ok || len(verdict) != 2 {
		return false, window, fmt.Errorf("rate limit script returned %T", raw)
	}
	allowed, err := scriptInt(verdict[0])
	if err != nil {
		return false, window, err
	}
	if allowed == 1 {
		return true, 0, nil
	}
	ttlMS, err := scriptInt(verdict[1])
	if err != nil {
		return false, window, err
	}
	if ttlMS <= 0 {
		ttlMS = windowMS
	}
	return false, time.Duration(ttlMS) * time.Millisecond, nil
}

func scriptInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("rate limit script returned a %T element", v)
	}
}
