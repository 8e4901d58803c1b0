// Package cachesvc stores computed grade statistics. Redis is used when
// configured; otherwise entries live in process memory.
package cachesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/grade"
)

const scanBatch = 100

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ grade.Cache = (*RedisCache)(nil)

// New returns a RedisCache when conf.Redis.Addr is set, a MemoryCache otherwise.
// An unreachable Redis is reported and replaced by a MemoryCache.
func New(conf *core.Config, logger core.Logger) grade.Cache {
	if conf.Redis.Addr == "" {
		return NewMemoryCache(conf.Redis.TTL)
	}
	rc := NewRedisCache(conf)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.client.Ping(ctx).Err(); err != nil {
		logger.Error(fmt.Sprintf("connecting to redis at %s: %v", conf.Redis.Addr, err), err)
		_ = rc.Close()
		return NewMemoryCache(conf.Redis.TTL)
	}
	return rc
}

func NewRedisCache(conf *core.Config) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return &RedisCache{client: client, ttl: conf.Redis.TTL, prefix: conf.AppName + ":"}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "reading %s", key)
	}
	if err = json.Unmarshal(data, dst); err != nil {
		return false, errors.Wrapf(err, "decoding %s", key)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	if err = c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "writing %s", key)
	}
	return nil
}

func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+prefix+"*", scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrapf(err, "scanning %s", prefix)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrapf(err, "deleting %s", prefix)
	}
	return nil
}
