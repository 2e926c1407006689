package draft

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Tracker shared by every server instance. Each session is a set
// of URLs; a sorted set indexes sessions by last activity in Unix
// milliseconds.
type Redis struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOption configures a Redis tracker.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix (default "mute:draft:").
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithClock sets the time source for session activity.
func WithClock(now func() time.Time) RedisOption {
	return func(r *Redis) {
		r.now = now
	}
}

// NewRedis returns a tracker storing its state through client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "mute:draft:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenRedis connects to the server at rawURL (redis://...) and pings it.
func OpenRedis(ctx context.Context, rawURL string, opts ...RedisOption) (*Redis, error) {
	o, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, opts...), nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) sessionKey(id string) string { return r.prefix + "session:" + id }
func (r *Redis) indexKey() string            { return r.prefix + "sessions" }

func (r *Redis) touch(ctx context.Context, pipe redis.Pipeliner, id string) {
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(r.now().UnixMilli()), Member: id})
}

func (r *Redis) Add(ctx context.Context, id, url string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.sessionKey(id), url)
		r.touch(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("track pending upload: %w", err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, id, url string) (bool, error) {
	removed, err := r.client.SRem(ctx, r.sessionKey(id), url).Result()
	if err != nil {
		return false, fmt.Errorf("untrack pending upload: %w", err)
	}
	if removed == 0 {
		return false, nil
	}
	if err := r.client.ZAddXX(ctx, r.indexKey(), redis.Z{Score: float64(r.now().UnixMilli()), Member: id}).Err(); err != nil {
		return true, fmt.Errorf("touch draft session: %w", err)
	}
	return true, nil
}

func (r *Redis) Pending(ctx context.Context, id string) ([]string, error) {
	urls, err := r.client.SMembers(ctx, r.sessionKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list pending uploads: %w", err)
	}
	slices.Sort(urls)
	return urls, nil
}

func (r *Redis) Clear(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(id))
		pipe.ZRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear draft session: %w", err)
	}
	return nil
}

func (r *Redis) Stale(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list stale draft sessions: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}
