package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

// reserveScript atomically prunes stale entries, evaluates both
// windows, and records the send when admitted. KEYS[1] is the
// customer's send log (sorted set scored by unix milliseconds).
// ARGV: now_ms, hour_ms, day_ms, max_hour, max_day, member, dry_run.
// Returns {1} when allowed, {0, retry_after_ms} when blocked.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local hour_ms = tonumber(ARGV[2])
local day_ms = tonumber(ARGV[3])
local max_hour = tonumber(ARGV[4])
local max_day = tonumber(ARGV[5])
local member = ARGV[6]
local dry_run = tonumber(ARGV[7])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - day_ms)

local hour_count = redis.call('ZCOUNT', key, now - hour_ms + 1, '+inf')
if hour_count >= max_hour then
  local oldest = redis.call('ZRANGEBYSCORE', key, now - hour_ms + 1, '+inf', 'WITHSCORES', 'LIMIT', 0, 1)
  return {0, tonumber(oldest[2]) + hour_ms - now, 1}
end

local day_count = redis.call('ZCARD', key)
if day_count >= max_day then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, tonumber(oldest[2]) + day_ms - now, 2}
end

if dry_run == 0 then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, day_ms)
end
return {1}
`)

// RedisLimiter is the multi-instance Limiter: a sliding log kept in a
// Redis sorted set per customer, with check-and-reserve performed by a
// Lua script so concurrent dispatches across instances cannot both
// pass a check meant to admit only one.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLimiter builds a limiter on the given Redis client.
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: "notifier:ratelimit", now: time.Now}
}

func (l *RedisLimiter) key(customerID string) string {
	return l.prefix + ":" + customerID
}

func (l *RedisLimiter) run(ctx context.Context, customerID, member string, dryRun bool) (Decision, error) {
	dry := 0
	if dryRun {
		dry = 1
	}
	res, err := reserveScript.Run(ctx, l.rdb, []string{l.key(customerID)},
		l.now().UnixMilli(),
		hourWindow.Milliseconds(),
		dayWindow.Milliseconds(),
		MaxPerHour,
		MaxPerDay,
		member,
		dry,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) > 0 && res[0] == 1 {
		return Decision{Allowed: true}, nil
	}
	if len(res) < 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	retryAfter := ceilSeconds(time.Duration(res[1]) * time.Millisecond)
	reason := reasonHourly(retryAfter)
	if res[2] == 2 {
		reason = reasonDaily(retryAfter)
	}
	return Decision{Allowed: false, RetryAfterSeconds: retryAfter, Reason: reason}, nil
}

// Check evaluates both windows without recording.
func (l *RedisLimiter) Check(ctx context.Context, customerID string) (Decision, error) {
	return l.run(ctx, customerID, "", true)
}

// Reserve atomically checks and records; release removes the entry.
func (l *RedisLimiter) Reserve(ctx context.Context, customerID string) (Decision, ReleaseFunc, error) {
	member := uuid.NewString()
	d, err := l.run(ctx, customerID, member, false)
	if err != nil || !d.Allowed {
		return d, func() {}, err
	}
	release := func() {
		// Best effort: an orphaned entry ages out of both windows.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		l.rdb.ZRem(ctx, l.key(customerID), member)
	}
	return d, release, nil
}

// Record appends a send timestamp unconditionally.
func (l *RedisLimiter) Record(ctx context.Context, customerID string) error {
	now := l.now()
	err := l.rdb.ZAdd(ctx, l.key(customerID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	}).Err()
	if err != nil {
		return fmt.Errorf("rate limit record: %w", err)
	}
	return l.rdb.PExpire(ctx, l.key(customerID), dayWindow).Err()
}

// Reset clears all history for a customer.
func (l *RedisLimiter) Reset(ctx context.Context, customerID string) error {
	return l.rdb.Del(ctx, l.key(customerID)).Err()
}

// Status returns current window counts and caps.
func (l *RedisLimiter) Status(ctx context.Context, customerID string) (model.RateLimitStatus, error) {
	now := l.now().UnixMilli()
	key := l.key(customerID)

	dayFloor := strconv.FormatInt(now-dayWindow.Milliseconds(), 10)
	hourFloor := strconv.FormatInt(now-hourWindow.Milliseconds(), 10)

	pipe := l.rdb.Pipeline()
	dayCmd := pipe.ZCount(ctx, key, "("+dayFloor, "+inf")
	hourCmd := pipe.ZCount(ctx, key, "("+hourFloor, "+inf")
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return model.RateLimitStatus{}, fmt.Errorf("rate limit status: %w", err)
	}
	return model.RateLimitStatus{
		CustomerID: customerID,
		HourCount:  int(hourCmd.Val()),
		DayCount:   int(dayCmd.Val()),
		HourLimit:  MaxPerHour,
		DayLimit:   MaxPerDay,
	}, nil
}
