package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio_aggregator/internal/domain/entity"
)

func TestBackendSetGetDelete(t *testing.T) {
	ctx := context.Background()
	b := New(time.Minute, time.Minute)

	if _, err := b.Get(ctx, "structure:0xabc:1"); !errors.Is(err, entity.ErrCacheMiss) {
		t.Fatalf("expected miss on empty cache, got %v", err)
	}

	value := []byte(`{"value":1}`)
	if err := b.Set(ctx, "structure:0xabc:1", value, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value[0] = 'X'

	got, err := b.Get(ctx, "structure:0xabc:1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"value":1}` {
		t.Fatalf("cache must hold its own copy, got %s", got)
	}
	got[0] = 'Y'
	again, _ := b.Get(ctx, "structure:0xabc:1")
	if string(again) != `{"value":1}` {
		t.Fatalf("returned slice must be a copy, got %s", again)
	}

	if err := b.Delete(ctx, "structure:0xabc:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get(ctx, "structure:0xabc:1"); !errors.Is(err, entity.ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestBackendExpiresByTTL(t *testing.T) {
	ctx := context.Background()
	b := New(time.Minute, time.Minute)
	if err := b.Set(ctx, "price:1", []byte("x"), 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := b.Get(ctx, "price:1"); !errors.Is(err, entity.ErrCacheMiss) {
		t.Fatalf("expected expired key to miss, got %v", err)
	}
}
