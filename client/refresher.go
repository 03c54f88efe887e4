package client

import (
	"context"
	"sync"
	"time"
)

type refreshOutcome struct {
	token string
	err   error
}

// refresher serializes access-token refreshes: at most one runs at a time and
// every caller that arrives while it runs is queued and settled with its
// result, in arrival order.
type refresher struct {
	mu         sync.Mutex
	inProgress bool
	waiters    []chan refreshOutcome

	timeout time.Duration
	current func() string
	run     func(ctx context.Context) (string, error)
	// failed runs once per failed refresh, after every waiter is settled.
	failed func(error)
}

func newRefresher(timeout time.Duration, current func() string, run func(context.Context) (string, error)) *refresher {
	return &refresher{timeout: timeout, current: current, run: run}
}

// obtain returns a token to resubmit with after a 401 on a request that was
// sent with token sent.
//
// If a refresh is in flight the caller waits for it. If the stored token has
// already moved on from sent, another caller refreshed in the meantime and
// the current token is returned without a new refresh. Otherwise this caller
// runs the refresh.
func (r *refresher) obtain(ctx context.Context, sent string) (string, error) {
	r.mu.Lock()
	if r.inProgress {
		ch := r.enqueue()
		r.mu.Unlock()
		return r.wait(ctx, ch)
	}
	if cur := r.current(); cur != "" && cur != sent {
		r.mu.Unlock()
		return cur, nil
	}
	r.inProgress = true
	r.mu.Unlock()

	return r.refresh(ctx)
}

// force runs a refresh, or joins the one in flight.
func (r *refresher) force(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.inProgress {
		ch := r.enqueue()
		r.mu.Unlock()
		return r.wait(ctx, ch)
	}
	r.inProgress = true
	r.mu.Unlock()

	return r.refresh(ctx)
}

func (r *refresher) refresh(ctx context.Context) (string, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	token, err := r.run(rctx)
	cancel()

	r.settle(token, err)
	if err != nil && r.failed != nil {
		r.failed(err)
	}
	return token, err
}

// enqueue must be called with mu held.
func (r *refresher) enqueue() chan refreshOutcome {
	ch := make(chan refreshOutcome, 1)
	r.waiters = append(r.waiters, ch)
	return ch
}

func (r *refresher) wait(ctx context.Context, ch <-chan refreshOutcome) (string, error) {
	select {
	case out := <-ch:
		return out.token, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// settle clears the in-progress flag and delivers the outcome to every queued
// caller in arrival order.
func (r *refresher) settle(token string, err error) {
	r.mu.Lock()
	waiters := r.waiters
	r.waiters = nil
	r.inProgress = false
	r.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshOutcome{token: token, err: err}
	}
}

func (r *refresher) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
