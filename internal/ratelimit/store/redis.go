package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"crowdfund/internal/ratelimit/models"
)

// slidingWindowScript trims the window, admits the request when under the
// limit and reports the count and the oldest surviving entry.
//
// KEYS[1] window key
// ARGV[1] now (ms), ARGV[2] window (ms), ARGV[3] limit, ARGV[4] member
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then oldestScore = tonumber(oldest[2]) end
return {allowed, count, oldestScore}
`)

// Redis is a sliding window shared by every replica.
type Redis struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (s *Redis) Allow(ctx context.Context, key string, limit models.Limit) (models.Result, error) {
	now := s.now()
	res, err := slidingWindowScript.Run(ctx, s.client, []string{s.prefix + ":" + key},
		now.UnixMilli(), limit.Window.Milliseconds(), limit.Requests, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return models.Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return models.Result{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	result := models.Result{
		Allowed: res[0] == 1,
		Limit:   limit.Requests,
		ResetAt: time.UnixMilli(res[2]).Add(limit.Window),
	}
	if result.Allowed {
		result.Remaining = limit.Requests - int(res[1])
	}
	return result, nil
}

func (s *Redis) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+":"+key).Err()
}
