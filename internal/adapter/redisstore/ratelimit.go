// Package redisstore keeps rate limit hits in Redis sorted sets, one key per
// identifier, scored by hit time in milliseconds.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "ratelimit:"

// hitScript trims the window, then adds the hit only while the set holds
// fewer than limit members. Redis runs scripts atomically.
var hitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. ARGV[2])
local n = redis.call('ZCARD', key)
local allowed = 0
if n < limit then
	redis.call('ZADD', key, ARGV[1], ARGV[5])
	n = n + 1
	allowed = 1
end
redis.call('PEXPIRE', key, ARGV[4])
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldest = -1
if first[2] then
	oldest = tonumber(first[2])
end
return {allowed, n, oldest}
`)

type RateLimitStore struct {
	client *redis.Client
	prefix string
}

// NewRateLimitStore connects to redisURL and checks the connection.
func NewRateLimitStore(redisURL string) (*RateLimitStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRateLimitStoreWithClient(client), nil
}

func NewRateLimitStoreWithClient(client *redis.Client) *RateLimitStore {
	return &RateLimitStore{client: client, prefix: defaultPrefix}
}

func (s *RateLimitStore) key(identifier string) string {
	return s.prefix + identifier
}

func (s *RateLimitStore) Hit(ctx context.Context, identifier string, limit int, since, now time.Time) (bool, int, time.Time, error) {
	ttl := now.Sub(since)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	res, err := hitScript.Run(ctx, s.client, []string{s.key(identifier)},
		now.UnixMilli(),
		strconv.FormatInt(since.UnixMilli(), 10),
		limit,
		ttl.Milliseconds(),
		strconv.FormatInt(now.UnixNano(), 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	var oldest time.Time
	if res[2] >= 0 {
		oldest = time.UnixMilli(res[2]).UTC()
	}
	return res[0] == 1, int(res[1]), oldest, nil
}

// DeleteBefore trims hits older than cutoff from every identifier. Keys also
// expire on their own after one idle window.
func (s *RateLimitStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	max := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	var removed int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", max).Result()
		if err != nil {
			return removed, fmt.Errorf("trim %s: %w", iter.Val(), err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan rate limit keys: %w", err)
	}
	return removed, nil
}

func (s *RateLimitStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RateLimitStore) Close() error {
	return s.client.Close()
}
