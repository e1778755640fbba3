package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waqtor/waqtor-server/internal/config"
	"github.com/waqtor/waqtor-server/internal/pkg/logger"
)

// Limiter caps outbound message volume using atomic Redis Lua scripts.
// The GET then check then INCR pattern races under concurrent senders,
// so the whole decision runs server-side in one script.
type Limiter struct {
	redis  *redis.Client
	limits Limits

	limitScript *redis.Script
}

// Limits defines the per-window send caps. A zero value disables that
// window.
type Limits struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// ErrDailyLimit signals the daily cap is exhausted and no wait helps.
var ErrDailyLimit = fmt.Errorf("daily send limit exceeded")

// The script checks every window before incrementing any counter, so a
// denial never consumes budget.
const limitLuaScript = `
local minuteKey = KEYS[1]
local hourKey = KEYS[2]
local dayKey = KEYS[3]
local increment = tonumber(ARGV[1])
local minuteLimit = tonumber(ARGV[2])
local hourLimit = tonumber(ARGV[3])
local dayLimit = tonumber(ARGV[4])

local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local hourCurrent = tonumber(redis.call("GET", hourKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dayKey) or "0")

if minuteLimit > 0 and minCurrent + increment > minuteLimit then
    return {0, 1, minCurrent}
end
if hourLimit > 0 and hourCurrent + increment > hourLimit then
    return {0, 2, hourCurrent}
end
if dayLimit > 0 and dayCurrent + increment > dayLimit then
    return {0, 3, dayCurrent}
end

local newMin = redis.call("INCRBY", minuteKey, increment)
if newMin == increment then
    redis.call("EXPIRE", minuteKey, 120)
end

local newHour = redis.call("INCRBY", hourKey, increment)
if newHour == increment then
    redis.call("EXPIRE", hourKey, 7200)
end

local newDay = redis.call("INCRBY", dayKey, increment)
if newDay == increment then
    redis.call("EXPIRE", dayKey, 90000)
end

return {1, 0, newDay}
`

// New creates a limiter around an existing Redis client.
func New(client *redis.Client, limits Limits) *Limiter {
	return &Limiter{
		redis:       client,
		limits:      limits,
		limitScript: redis.NewScript(limitLuaScript),
	}
}

// NewFromConfig connects to Redis and verifies the connection. Returns
// (nil, nil) when throttling is disabled in config.
func NewFromConfig(cfg config.ThrottleConfig) (*Limiter, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info("send throttle connected", "redis", opts.Addr)

	return New(client, Limits{
		PerMinute: cfg.PerMinute,
		PerHour:   cfg.PerHour,
		PerDay:    cfg.PerDay,
	}), nil
}

// CheckAndIncrement atomically reserves budget for count messages. When
// denied it returns how long the caller should wait before retrying;
// ErrDailyLimit means the day's budget is gone.
func (l *Limiter) CheckAndIncrement(ctx context.Context, count int) (allowed bool, waitTime time.Duration, err error) {
	now := time.Now()

	minuteKey := fmt.Sprintf("throttle:send:min:%d", now.Unix()/60)
	hourKey := fmt.Sprintf("throttle:send:hour:%d", now.Unix()/3600)
	dayKey := fmt.Sprintf("throttle:send:day:%s", now.Format("2006-01-02"))

	result, err := l.limitScript.Run(ctx, l.redis,
		[]string{minuteKey, hourKey, dayKey},
		count,
		l.limits.PerMinute,
		l.limits.PerHour,
		l.limits.PerDay,
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("throttle check failed: %w", err)
	}

	allowed = result[0].(int64) == 1
	if allowed {
		return true, 0, nil
	}

	switch result[1].(int64) {
	case 1:
		waitTime = time.Duration(60-now.Second()) * time.Second
	case 2:
		waitTime = time.Duration(60-now.Minute()) * time.Minute
	case 3:
		return false, 0, ErrDailyLimit
	}
	return false, waitTime, nil
}

// Usage returns the current window counters next to their caps.
func (l *Limiter) Usage(ctx context.Context) (map[string]int64, error) {
	now := time.Now()

	minuteKey := fmt.Sprintf("throttle:send:min:%d", now.Unix()/60)
	hourKey := fmt.Sprintf("throttle:send:hour:%d", now.Unix()/3600)
	dayKey := fmt.Sprintf("throttle:send:day:%s", now.Format("2006-01-02"))

	pipe := l.redis.Pipeline()
	minCmd := pipe.Get(ctx, minuteKey)
	hourCmd := pipe.Get(ctx, hourKey)
	dayCmd := pipe.Get(ctx, dayKey)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("throttle usage: %w", err)
	}

	minute, _ := minCmd.Int64()
	hour, _ := hourCmd.Int64()
	day, _ := dayCmd.Int64()

	return map[string]int64{
		"minute_current": minute,
		"minute_limit":   int64(l.limits.PerMinute),
		"hour_current":   hour,
		"hour_limit":     int64(l.limits.PerHour),
		"day_current":    day,
		"day_limit":      int64(l.limits.PerDay),
	}, nil
}

// Client exposes the underlying Redis connection for other
// Redis-backed concerns (campaign locks).
func (l *Limiter) Client() *redis.Client {
	return l.redis
}

// Close releases the Redis connection.
func (l *Limiter) Close() error {
	return l.redis.Close()
}
