package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrBadScriptResult = errors.New("unexpected rate limit script result")

// luaAdmit counts the hits inside the window and admits the new one only
// while the count is below the limit. Rejected hits are not recorded, so a
// caller that keeps retrying does not push its own window forward.
//
// KEYS[1] window key
// ARGV[1] now in ms, ARGV[2] window in ms, ARGV[3] limit, ARGV[4] member
//
// Returns {admitted, count, retry_ms}.
const luaAdmit = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, now - window)
local count = redis.call('ZCARD', KEYS[1])

if count >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  local retry = window
  if oldest[2] then retry = window - (now - tonumber(oldest[2])) end
  if retry < 0 then retry = 0 end
  return {0, count, retry}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, count + 1, 0}
`

// SlidingWindowLimiter admits at most limit actions per subject within any
// window. The apply and send-message limits are two instances with
// different prefixes.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	script *redis.Script
	now    func() time.Time
}

func NewSlidingWindowLimiter(
	rdb *redis.Client,
	prefix string,
	limit int,
	window time.Duration,
) *SlidingWindowLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &SlidingWindowLimiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  limit,
		window: window,
		script: redis.NewScript(luaAdmit),
		now:    time.Now,
	}
}

// Allow records an action of subject when it fits in the window. When it
// does not, retryAfter says when the oldest action leaves the window.
func (l *SlidingWindowLimiter) Allow(
	ctx context.Context,
	subject string,
) (allowed bool, current int64, retryAfter time.Duration, err error) {
	const op = "redis.SlidingWindowLimiter.Allow"

	res, err := l.script.Run(
		ctx,
		l.rdb,
		[]string{l.prefix + ":" + subject},
		l.now().UnixMilli(), l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Result()
	if err != nil {
		return false, 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	allowed, current, retryAfter, err = parseAdmitResult(res)
	if err != nil {
		return false, 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	return allowed, current, retryAfter, nil
}

func parseAdmitResult(res any) (bool, int64, time.Duration, error) {
	arr, ok := res.([]any)
	if !ok || len(arr) != 3 {
		return false, 0, 0, fmt.Errorf("%w: %v", ErrBadScriptResult, res)
	}

	vals := make([]int64, 3)
	for i, v := range arr {
		switch t := v.(type) {
		case int64:
			vals[i] = t
		case string:
			n, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return false, 0, 0, fmt.Errorf("%w: %v", ErrBadScriptResult, res)
			}
			vals[i] = n
		default:
			return false, 0, 0, fmt.Errorf("%w: %v", ErrBadScriptResult, res)
		}
	}

	return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond, nil
}
