package notify

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestTokenStore connects to a local Redis instance and flushes test keys
// before returning. Tests that call this helper require a running Redis on
// localhost:6379.
func newTestTokenStore(t *testing.T) *TokenStore {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	cleanup := func() {
		iter := client.Scan(ctx, 0, tokenPrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewTokenStore(client)
}

func TestTokenStore_RegisterAndList(t *testing.T) {
	s := newTestTokenStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, "test_u1", "device-a"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := s.Register(ctx, "test_u1", "device-b"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	// Registering the same token twice is a no-op, not a duplicate.
	if err := s.Register(ctx, "test_u1", "device-a"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	tokens, err := s.TokensOf(ctx, "test_u1")
	if err != nil {
		t.Fatalf("TokensOf() error: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d: %v", len(tokens), tokens)
	}
}

func TestTokenStore_Remove(t *testing.T) {
	s := newTestTokenStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, "test_u2", "device-a"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := s.Remove(ctx, "test_u2", "device-a"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	tokens, err := s.TokensOf(ctx, "test_u2")
	if err != nil {
		t.Fatalf("TokensOf() error: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected no tokens after removal, got %v", tokens)
	}
}

func TestTokenStore_EmptyUser(t *testing.T) {
	s := newTestTokenStore(t)

	tokens, err := s.TokensOf(context.Background(), "test_nobody")
	if err != nil {
		t.Fatalf("TokensOf() error: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected no tokens for unknown user, got %v", tokens)
	}
}
