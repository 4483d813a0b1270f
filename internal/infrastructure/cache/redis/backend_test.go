package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/alicebob/miniredis/v2"
)

func newTestBackend(t *testing.T) (*Backend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return NewBackend(c, "pa"), mr
}

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t)

	if _, err := b.Get(ctx, "price:abc"); !errors.Is(err, entity.ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := b.Set(ctx, "price:abc", []byte(`{"v":1}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("pa:price:abc") {
		t.Fatal("key should be stored under the prefix")
	}
	if ttl := mr.TTL("pa:price:abc"); ttl != time.Minute {
		t.Fatalf("expected 1m TTL, got %s", ttl)
	}
	got, err := b.Get(ctx, "price:abc")
	if err != nil || string(got) != `{"v":1}` {
		t.Fatalf("Get = %s, %v", got, err)
	}
	if err := b.Delete(ctx, "price:abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get(ctx, "price:abc"); !errors.Is(err, entity.ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestBackendExpiry(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t)
	if err := b.Set(ctx, "structure:w:n", []byte("x"), 5*time.Second); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(6 * time.Second)
	if _, err := b.Get(ctx, "structure:w:n"); !errors.Is(err, entity.ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestBackendSurfacesConnectionErrors(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBackend(t)
	mr.Close()
	_, err := b.Get(ctx, "price:abc")
	if err == nil || errors.Is(err, entity.ErrCacheMiss) {
		t.Fatalf("a dead server must not look like a miss, got %v", err)
	}
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := New(ctx, ClientConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected ping failure")
	}
}
