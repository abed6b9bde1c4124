package kv

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryKV 进程内 KV，默认后端，适合单实例部署与测试.
// 不支持 TTL，计数缓存依赖失效删除而非过期，单机下可接受.
type MemoryKV struct {
	data sync.Map
}

// NewMemoryKV 创建内存 KV，无需配置.
func NewMemoryKV(ctx context.Context, config any) (KVStore, error) {
	return &MemoryKV{}, nil
}

// Get 读取键，返回值是副本.
func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, exists := m.data.Load(key)
	if !exists {
		return nil, fmt.Errorf("key not found: %s", key)
	}

	data, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid value type for key: %s", key)
	}

	result := make([]byte, len(data))
	copy(result, data)

	return result, nil
}

// Set 写入键，存入的是调用方切片的副本.
func (m *MemoryKV) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	m.data.Store(key, data)

	return nil
}

// Delete 删除键.
func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	_, exists := m.data.Load(key)
	return exists, nil
}

// Keys 列出键. 只支持精确匹配，空模式返回全部.
func (m *MemoryKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)

	m.data.Range(func(key, value any) bool {
		k, ok := key.(string)
		if !ok {
			return true
		}

		if pattern == "" || k == pattern {
			keys = append(keys, k)
		}

		return true
	})

	return keys, nil
}

// Close 内存实现无资源可释放.
func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}
