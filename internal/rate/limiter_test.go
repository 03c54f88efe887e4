package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginLimitAfterMaxFailures(t *testing.T) {
	l, _ := newLimiterTest(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", "1.2.3.4"); err != nil {
			t.Fatalf("attempt %d should be allowed: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "alice", "1.2.3.4"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "alice", "9.9.9.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected identifier limit, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP limit, got %v", err)
	}

	if err := l.ResetLogin(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	n, err := l.LoginAttempts(ctx, "alice")
	if err != nil || n != 0 {
		t.Fatalf("expected reset counter, got %d %v", n, err)
	}
}

func TestLoginWindowExpires(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window to expire: %v", err)
	}
}

func TestRefreshThrottle(t *testing.T) {
	l, _ := newLimiterTest(t, Config{
		EnableRefreshThrottle:   true,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "sid"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if err := l.CheckRefresh(ctx, "sid"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected refresh limit, got %v", err)
	}
}

func TestRedisDownIsReported(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	mr.Close()
	if err := l.CheckLogin(context.Background(), "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
