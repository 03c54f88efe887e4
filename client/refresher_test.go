package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (r *refresher) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inProgress
}

type blockingRun struct {
	calls   atomic.Int32
	release chan struct{}
	token   string
	err     error
}

func newBlockingRun(token string, err error) *blockingRun {
	return &blockingRun{release: make(chan struct{}), token: token, err: err}
}

func (b *blockingRun) run(ctx context.Context) (string, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
		return b.token, b.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestRefresherQueuesWhileInFlight(t *testing.T) {
	run := newBlockingRun("fresh", nil)
	r := newRefresher(time.Second, func() string { return "stale" }, run.run)

	const n = 5
	results := make([]string, n)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		tok, err := r.obtain(context.Background(), "stale")
		assert.NoError(t, err)
		results[0] = tok
	}()
	require.Eventually(t, r.running, time.Second, time.Millisecond)

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := r.obtain(context.Background(), "stale")
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}
	require.Eventually(t, func() bool { return r.pending() == n-1 }, time.Second, time.Millisecond)

	close(run.release)
	wg.Wait()

	assert.Equal(t, int32(1), run.calls.Load())
	for i, tok := range results {
		assert.Equal(t, "fresh", tok, "caller %d", i)
	}
	assert.False(t, r.running())
	assert.Zero(t, r.pending())
}

func TestRefresherSettlesInArrivalOrder(t *testing.T) {
	r := newRefresher(time.Second, func() string { return "" }, nil)
	r.inProgress = true

	var chans []chan refreshOutcome
	for i := 0; i < 3; i++ {
		chans = append(chans, r.enqueue())
	}
	r.settle("tok", nil)

	for i, ch := range chans {
		select {
		case out := <-ch:
			assert.Equal(t, "tok", out.token, "waiter %d", i)
		default:
			t.Fatalf("waiter %d was not settled", i)
		}
	}
	assert.False(t, r.running())
}

func TestRefresherFailureRejectsEveryWaiter(t *testing.T) {
	boom := errors.New("refresh rejected")
	run := newBlockingRun("", boom)
	r := newRefresher(time.Second, func() string { return "" }, run.run)

	var hookCalls atomic.Int32
	r.failed = func(err error) {
		assert.ErrorIs(t, err, boom)
		assert.False(t, r.running())
		assert.Zero(t, r.pending())
		hookCalls.Add(1)
	}

	errs := make(chan error, 4)
	go func() {
		_, err := r.obtain(context.Background(), "")
		errs <- err
	}()
	require.Eventually(t, r.running, time.Second, time.Millisecond)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := r.obtain(context.Background(), "")
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return r.pending() == 3 }, time.Second, time.Millisecond)

	close(run.release)
	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, <-errs, boom)
	}
	assert.Equal(t, int32(1), run.calls.Load())
	assert.Equal(t, int32(1), hookCalls.Load())
}

func TestRefresherSkipsWhenTokenAlreadyMoved(t *testing.T) {
	var calls int
	r := newRefresher(time.Second, func() string { return "new" }, func(context.Context) (string, error) {
		calls++
		return "newer", nil
	})

	tok, err := r.obtain(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "new", tok)
	assert.Zero(t, calls)

	tok, err = r.obtain(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, "newer", tok)
	assert.Equal(t, 1, calls)
}

func TestRefresherForceIgnoresCurrentToken(t *testing.T) {
	var calls int
	r := newRefresher(time.Second, func() string { return "held" }, func(context.Context) (string, error) {
		calls++
		return "forced", nil
	})

	tok, err := r.force(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "forced", tok)
	assert.Equal(t, 1, calls)
}

func TestRefresherWaiterHonorsOwnContext(t *testing.T) {
	run := newBlockingRun("fresh", nil)
	r := newRefresher(time.Second, func() string { return "" }, run.run)

	done := make(chan string, 1)
	go func() {
		tok, _ := r.obtain(context.Background(), "")
		done <- tok
	}()
	require.Eventually(t, r.running, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.obtain(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(run.release)
	assert.Equal(t, "fresh", <-done)
}

func TestRefresherTimeout(t *testing.T) {
	run := newBlockingRun("never", nil)
	r := newRefresher(20*time.Millisecond, func() string { return "" }, run.run)

	start := time.Now()
	_, err := r.obtain(context.Background(), "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, r.running())
}

func TestRefresherDetachedFromCallerCancel(t *testing.T) {
	r := newRefresher(time.Second, func() string { return "" }, func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "ok", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tok, err := r.obtain(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", tok)
}
