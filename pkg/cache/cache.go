// Package cache 提供 Redis 与进程内两种实现, 接口一致
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("cache miss")

// Cache 字符串 KV 缓存
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ==================== 进程内实现 ====================

type memoryItem struct {
	value      string
	expiration int64
}

type memoryCache struct {
	items sync.Map
	now   func() time.Time
}

// NewMemory 创建进程内缓存 (sync.Map + 懒删除)
func NewMemory() Cache {
	return &memoryCache{now: time.Now}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	val, ok := m.items.Load(key)
	if !ok {
		return "", ErrMiss
	}
	item := val.(memoryItem)
	if item.expiration > 0 && m.now().UnixNano() > item.expiration {
		m.items.Delete(key) // 懒删除
		return "", ErrMiss
	}
	return item.value, nil
}

func (m *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = m.now().Add(ttl).UnixNano()
	}
	m.items.Store(key, memoryItem{value: value, expiration: exp})
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.items.Delete(k)
	}
	return nil
}

// ==================== Redis 实现 ====================

type redisCache struct {
	client *redis.Client
}

// NewRedis 连接 Redis 并 ping 一次
func NewRedis(ctx context.Context, addr, password string, db int) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisCache{client: client}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (r *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
