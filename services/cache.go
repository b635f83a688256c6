package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GrainArc/GlebaMap/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	collectionKey = "glebamap:glebas:collection"
	generationKey = "glebamap:glebas:gen"
)

// Cache 缓存 GET /api/glebas 的完整响应，按代号存取。
// 写操作调用 Invalidate 使代号递增，旧代号下的数据不再被读取。
type Cache interface {
	// Generation 当前代号；ok 为 false 时本次不使用缓存
	Generation(ctx context.Context) (gen int64, ok bool)
	Get(ctx context.Context, gen int64) ([]byte, bool)
	Set(ctx context.Context, gen int64, data []byte)
	Invalidate(ctx context.Context)
}

// OpenRedis 使用地址与密码打开 Redis 客户端，未配置地址时返回 nil
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

// RedisCache Redis 不可用时只记录日志，按未命中处理
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, log: slog.Default()}
}

func collectionKeyFor(gen int64) string { return fmt.Sprintf("%s:%d", collectionKey, gen) }

func (c *RedisCache) Generation(ctx context.Context) (int64, bool) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.log.Warn("cache_gen_failed", "err", err)
		metrics.CacheMissesTotal.Inc()
		return 0, false
	}
	return gen, true
}

func (c *RedisCache) Get(ctx context.Context, gen int64) ([]byte, bool) {
	b, err := c.rdb.Get(ctx, collectionKeyFor(gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache_get_failed", "err", err)
		}
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return b, true
}

func (c *RedisCache) Set(ctx context.Context, gen int64, data []byte) {
	if err := c.rdb.Set(ctx, collectionKeyFor(gen), data, c.ttl).Err(); err != nil {
		c.log.Warn("cache_set_failed", "err", err)
	}
}

// Invalidate 代号加一；旧代号的数据随 TTL 过期
func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		c.log.Warn("cache_incr_failed", "err", err)
	}
}

type nopCache struct{}

func (nopCache) Generation(context.Context) (int64, bool)   { return 0, false }
func (nopCache) Get(context.Context, int64) ([]byte, bool) { return nil, false }
func (nopCache) Set(context.Context, int64, []byte)        {}
func (nopCache) Invalidate(context.Context)                {}
