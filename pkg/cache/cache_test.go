package cache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yeisme/docvault/pkg/cache"
)

// opSnapshot 模拟被缓存的操作快照.
type opSnapshot struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Progress int    `json:"progress"`
	Result   string `json:"result,omitempty"`
}

// memStore 内存 KV 实现，仅供本包测试.
type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}

	return nil, fmt.Errorf("key not found")
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *memStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}

	return keys, nil
}

func (m *memStore) Close() error { return nil }

func TestSetGetRoundTrip(t *testing.T) {
	c := cache.NewCache(newMemStore())
	ctx := context.Background()

	if _, err := cache.Get[opSnapshot](ctx, c, "op:missing"); err == nil {
		t.Error("expected miss for absent key")
	}

	snap := opSnapshot{ID: "01J0", Kind: "download", Progress: 40}
	if err := cache.Set(ctx, c, "op:01J0", snap, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := cache.Get[opSnapshot](ctx, c, "op:01J0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got != snap {
		t.Errorf("got %+v, want %+v", got, snap)
	}
}

func TestDeleteAndExists(t *testing.T) {
	store := newMemStore()
	c := cache.NewCache(store)
	ctx := context.Background()

	key := "marker:newcount:alice@example.com:@my"
	if err := cache.Set(ctx, c, key, 7, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	exists, err := c.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v; want true", exists, err)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}

	exists, err = c.Exists(ctx, key)
	if err != nil {
		t.Fatalf("exists after delete: %v", err)
	}

	if exists {
		t.Error("key survived delete")
	}
}

func TestGetOrSetSingleCompute(t *testing.T) {
	c := cache.NewCache(newMemStore())
	ctx := context.Background()

	calls := 0
	counts := func() (map[string]int, error) {
		calls++
		return map[string]int{"@my": 3, "@share": 1}, nil
	}

	first, err := cache.GetOrSet(ctx, c, "counts:bob", counts, time.Minute)
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	second, err := cache.GetOrSet(ctx, c, "counts:bob", counts, time.Minute)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	// 命中后不再重算
	if calls != 1 {
		t.Errorf("getter called %d times, want 1", calls)
	}

	if first["@my"] != second["@my"] || first["@share"] != second["@share"] {
		t.Errorf("results differ: %v vs %v", first, second)
	}
}

func TestGetOrSetGetterError(t *testing.T) {
	c := cache.NewCache(newMemStore())

	wantErr := errors.New("tag table unavailable")
	_, err := cache.GetOrSet(context.Background(), c, "counts:carol", func() (int, error) {
		return 0, wantErr
	}, 0)

	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestClearRemovesAllKeys(t *testing.T) {
	store := newMemStore()
	c := cache.NewCache(store)
	ctx := context.Background()

	for _, owner := range []string{"alice", "bob", "carol"} {
		if err := cache.Set(ctx, c, "marker:newcount:"+owner+":@my", 1, 0); err != nil {
			t.Fatalf("set %s: %v", owner, err)
		}
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if len(store.data) != 0 {
		t.Errorf("%d keys survived clear", len(store.data))
	}
}

// 缓存层对值类型泛型透明：计数、路径、快照均可序列化往返.
func TestValueTypes(t *testing.T) {
	c := cache.NewCache(newMemStore())
	ctx := context.Background()

	if err := cache.Set(ctx, c, "archive:path", "temp/alice/archive.zip", 0); err != nil {
		t.Fatalf("set string: %v", err)
	}

	p, err := cache.Get[string](ctx, c, "archive:path")
	if err != nil || p != "temp/alice/archive.zip" {
		t.Errorf("string round trip = %q, %v", p, err)
	}

	if err := cache.Set(ctx, c, "counts:@projects", 12, 0); err != nil {
		t.Fatalf("set int: %v", err)
	}

	n, err := cache.Get[int](ctx, c, "counts:@projects")
	if err != nil || n != 12 {
		t.Errorf("int round trip = %d, %v", n, err)
	}

	ids := []string{"f1", "f2", "sub"}
	if err := cache.Set(ctx, c, "new:bob:root", ids, 0); err != nil {
		t.Fatalf("set slice: %v", err)
	}

	got, err := cache.Get[[]string](ctx, c, "new:bob:root")
	if err != nil {
		t.Fatalf("get slice: %v", err)
	}

	if len(got) != len(ids) {
		t.Fatalf("slice length = %d, want %d", len(got), len(ids))
	}

	for i := range ids {
		if got[i] != ids[i] {
			t.Errorf("slice[%d] = %q, want %q", i, got[i], ids[i])
		}
	}
}
