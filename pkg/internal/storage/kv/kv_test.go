package kv

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryKVRoundTrip(t *testing.T) {
	store, err := NewKVStore(context.Background(), KVTypeMemory, nil)
	if err != nil {
		t.Fatalf("create memory kv: %v", err)
	}

	defer func() { _ = store.Close() }()

	ctx := context.Background()
	key := "marker:newcount:alice:@my"

	if _, err := store.Get(ctx, key); err == nil {
		t.Error("expected miss for absent key")
	}

	if err := store.Set(ctx, key, []byte("7"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if string(got) != "7" {
		t.Errorf("got %q, want %q", got, "7")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}

	exists, err := store.Exists(ctx, key)
	if err != nil || exists {
		t.Errorf("exists after delete = %v, %v", exists, err)
	}
}

// 存取都走副本，外部修改不能穿透到存储内部.
func TestMemoryKVCopiesValues(t *testing.T) {
	store := &MemoryKV{}
	ctx := context.Background()

	src := []byte("temp/alice/archive.zip")
	if err := store.Set(ctx, "k", src, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	src[0] = 'X'

	got, _ := store.Get(ctx, "k")
	if string(got) != "temp/alice/archive.zip" {
		t.Errorf("stored value mutated: %q", got)
	}

	got[0] = 'Y'

	again, _ := store.Get(ctx, "k")
	if string(again) != "temp/alice/archive.zip" {
		t.Errorf("returned slice aliased storage: %q", again)
	}
}

func TestTTLWrapperExpiry(t *testing.T) {
	raw := []byte(`{"@my":3}`)

	// ttl<=0 时原样透传，不加包装
	plain, wrapped, err := encodeWithTTL(raw, 0)
	if err != nil || wrapped {
		t.Fatalf("encode no-ttl: wrapped=%v err=%v", wrapped, err)
	}

	v, expired, wasWrapped, err := decodeWithTTL(plain, time.Now())
	if err != nil || expired || wasWrapped {
		t.Fatalf("decode plain: expired=%v wrapped=%v err=%v", expired, wasWrapped, err)
	}

	if string(v) != string(raw) {
		t.Errorf("plain value = %q", v)
	}

	enc, wrapped, err := encodeWithTTL(raw, time.Minute)
	if err != nil || !wrapped {
		t.Fatalf("encode ttl: wrapped=%v err=%v", wrapped, err)
	}

	v, expired, wasWrapped, err = decodeWithTTL(enc, time.Now())
	if err != nil || expired || !wasWrapped {
		t.Fatalf("decode fresh: expired=%v wrapped=%v err=%v", expired, wasWrapped, err)
	}

	if string(v) != string(raw) {
		t.Errorf("fresh value = %q, want %q", v, raw)
	}

	// 越过过期时刻后读到过期标记
	_, expired, _, err = decodeWithTTL(enc, time.Now().Add(2*time.Minute))
	if err != nil {
		t.Fatalf("decode expired: %v", err)
	}

	if !expired {
		t.Error("value past deadline not reported expired")
	}
}

func TestRegisteredKVTypes(t *testing.T) {
	types := GetRegisteredKVTypes()

	seen := make(map[KVType]bool, len(types))
	for _, ty := range types {
		seen[ty] = true
	}

	for _, want := range []KVType{KVTypeMemory, KVTypeRedis, KVTypeNATS, KVTypeGroupcache} {
		if !seen[want] {
			t.Errorf("factory for %q not registered", want)
		}
	}

	if _, err := NewKVStore(context.Background(), KVType("etcd"), nil); err == nil {
		t.Error("expected error for unregistered type")
	}
}

func BenchmarkMemoryKV(b *testing.B) {
	store, err := NewKVStore(context.Background(), KVTypeMemory, nil)
	if err != nil {
		b.Fatalf("create memory kv: %v", err)
	}

	defer func() { _ = store.Close() }()

	ctx := context.Background()
	payload := make([]byte, 1024)

	b.ReportAllocs()

	for i := 0; b.Loop(); i++ {
		key := fmt.Sprintf("bench-%d", i)
		if err := store.Set(ctx, key, payload, 0); err != nil {
			b.Fatalf("set: %v", err)
		}

		if _, err := store.Get(ctx, key); err != nil {
			b.Fatalf("get: %v", err)
		}

		if err := store.Delete(ctx, key); err != nil {
			b.Fatalf("delete: %v", err)
		}
	}
}
