// Package cache 在可插拔 KV 存储之上提供类型安全的泛型缓存，
// 值经 sonic 做 JSON 序列化，支持按键 TTL.
//
// 典型用法（未读计数缓存）:
//
//	kvCache := cache.NewCache(manager.GetKVClient())
//
//	// 写入某个根桶的未读计数
//	err := cache.Set(ctx, kvCache, "marker:newcount:alice:@my", 3, 0)
//
//	// 读取
//	count, err := cache.Get[int](ctx, kvCache, "marker:newcount:alice:@my")
//
//	// 未命中时回源标签表
//	count, err := cache.GetOrSet(ctx, kvCache, key, func() (int, error) {
//	    return countFromTagTable(ctx, owner, bucket)
//	}, 0)
//
// 线程安全取决于底层 KV 实现，内置的四种后端
// （memory/redis/nats/groupcache）均可并发使用.
// 缓存未命中按底层存储的错误返回，调用方据此回源.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/docvault/pkg/internal/storage/kv"
)

// Cache 包装一个 KV 存储.
type Cache struct {
	kvStore kv.KVStore
}

// NewCache 创建缓存实例.
func NewCache(kvStore kv.KVStore) *Cache {
	return &Cache{
		kvStore: kvStore,
	}
}

// Get 读取并反序列化缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, key)
	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 序列化并写入缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, key, data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, key)
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, key)
}

// GetOrSet 先查缓存，未命中时调用 getter 回源并回填.
// 回填失败不影响返回值，下一次读取会再回源一遍.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	var zero T

	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	value, err := getter()
	if err != nil {
		return zero, err
	}

	if setErr := Set(ctx, c, key, value, ttl); setErr != nil {
		return value, nil
	}

	return value, nil
}

// Clear 逐键清空. 只有支持模式列举的后端能清干净.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.kvStore.Keys(ctx, "*")
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil {
			return delErr
		}
	}

	return nil
}
