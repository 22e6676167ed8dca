package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestLimiter creates a Limiter connected to a local Redis instance.
// Tests are skipped when Redis is not available.
func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	cleanup := func() {
		for _, rule := range []Rule{RuleMessage, RuleSearch, RuleConnect} {
			iter := client.Scan(ctx, 0, rule.Key+"test_*", 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewLimiter(client)
}

func TestAllow_UnderLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	id := "test_under"

	for i := 0; i < RuleMessage.Limit; i++ {
		ok, err := l.Allow(ctx, id, RuleMessage)
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed (limit %d)", i+1, RuleMessage.Limit)
		}
	}
}

func TestAllow_BlocksOverLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	id := "test_over"

	for i := 0; i < RuleMessage.Limit; i++ {
		l.Allow(ctx, id, RuleMessage)
	}

	ok, err := l.Allow(ctx, id, RuleMessage)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if ok {
		t.Errorf("request %d should be blocked", RuleMessage.Limit+1)
	}
}

func TestAllow_IdentifiersIndependent(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	// Exhaust the limit for one identifier.
	for i := 0; i <= RuleMessage.Limit; i++ {
		l.Allow(ctx, "test_busy", RuleMessage)
	}

	// A different identifier is unaffected.
	ok, err := l.Allow(ctx, "test_fresh", RuleMessage)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !ok {
		t.Error("a fresh identifier should not be limited")
	}
}

func TestAllow_RulesIndependent(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	id := "test_rules"

	for i := 0; i <= RuleMessage.Limit; i++ {
		l.Allow(ctx, id, RuleMessage)
	}

	// The search rule uses a different key prefix and is unaffected.
	ok, err := l.Allow(ctx, id, RuleSearch)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !ok {
		t.Error("search rule should be independent of the message rule")
	}
}

func TestRetryAfter(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	id := "test_retry"

	// Untouched identifier: no window, zero retry.
	if got := l.RetryAfter(ctx, id, RuleMessage); got != 0 {
		t.Errorf("expected 0 for untouched identifier, got %d", got)
	}

	l.Allow(ctx, id, RuleMessage)

	got := l.RetryAfter(ctx, id, RuleMessage)
	if got <= 0 || got > int(RuleMessage.Window/time.Second) {
		t.Errorf("expected retry in (0,%d], got %d", int(RuleMessage.Window/time.Second), got)
	}
}

func TestAllow_WindowKeyCarriesTTL(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	id := fmt.Sprintf("test_ttl_%d", time.Now().UnixNano())

	l.Allow(ctx, id, RuleSearch)

	ttl, err := l.client.TTL(ctx, RuleSearch.Key+id).Result()
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	if ttl <= 0 || ttl > RuleSearch.Window {
		t.Errorf("expected TTL in (0,%v], got %v", RuleSearch.Window, ttl)
	}
}
