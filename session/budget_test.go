package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis hook counting commands and pipeline round-trips.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func newCountedStore(t *testing.T) (*Store, *cmdCounter) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	counter := &cmdCounter{}
	rdb.AddHook(counter)
	// Warm the connection so handshake commands are not counted.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter.reset()

	return NewStore(rdb, "budget"), counter
}

func TestRotateRedisBudget(t *testing.T) {
	store, counter := newCountedStore(t)
	ctx := context.Background()

	sess := newSession("sid-rotate", "u1", "old")
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	counter.reset()

	if _, err := store.RotateRefreshHash(ctx, "sid-rotate", sess.RefreshHash, hashOf("new")); err != nil {
		t.Fatalf("RotateRefreshHash: %v", err)
	}
	// EVALSHA, plus EVAL on the first call when the script is not cached.
	if n := counter.commands.Load(); n > 2 {
		t.Fatalf("RotateRefreshHash used %d commands, budget is 2", n)
	}
}

func TestGetRedisBudget(t *testing.T) {
	store, counter := newCountedStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, newSession("sid-get", "u1", "s"), time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	counter.reset()

	if _, err := store.Get(ctx, "sid-get"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n := counter.commands.Load(); n != 1 {
		t.Fatalf("Get used %d commands, want 1", n)
	}
}

func TestSaveRedisBudget(t *testing.T) {
	store, counter := newCountedStore(t)

	if err := store.Save(context.Background(), newSession("sid-save", "u1", "s"), time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// MULTI/EXEC around SET, SADD and EXPIRE.
	if n := counter.pipelines.Load(); n > 1 {
		t.Fatalf("Save used %d pipelines, want 1", n)
	}
	if n := counter.commands.Load(); n > 5 {
		t.Fatalf("Save used %d commands, budget is 5", n)
	}
}

func TestDeleteRedisBudget(t *testing.T) {
	store, counter := newCountedStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, newSession("sid-del", "u1", "s"), time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	counter.reset()

	if err := store.Delete(ctx, "sid-del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// GET for the owner, then the delete script (EVALSHA, maybe EVAL).
	if n := counter.commands.Load(); n > 3 {
		t.Fatalf("Delete used %d commands, budget is 3", n)
	}
}

func TestConcurrentRotateHasSingleWinner(t *testing.T) {
	store, _, cleanup := newSessionStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	sess := newSession("sid-race", "u1", "current")
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(next [32]byte) {
			defer wg.Done()
			<-start
			_, err := store.RotateRefreshHash(ctx, "sid-race", sess.RefreshHash, next)
			results <- err
		}(hashOf(string(rune('a' + i))))
	}
	close(start)
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrRefreshHashMismatch), errors.Is(err, ErrRefreshSessionNotFound):
		default:
			t.Fatalf("unexpected rotate error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func hashOf(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}
