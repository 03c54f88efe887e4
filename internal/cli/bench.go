package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/socialn/socialn/session"
)

type benchOptions struct {
	sessions    int
	concurrency int
	ops         int
	inProcess   bool
	prefix      string
}

func newBenchCommand(a *app) *cobra.Command {
	opts := benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load-test the Redis session store",
		Long: `Seed refresh sessions, then measure concurrent session reads and
refresh-secret rotations against Redis.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return fmt.Errorf("sessions, concurrency and ops must be > 0")
			}

			var client redis.UniversalClient
			if opts.inProcess {
				mr, err := miniredis.Run()
				if err != nil {
					return fmt.Errorf("start miniredis: %w", err)
				}
				defer mr.Close()
				client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
				fmt.Fprintf(cmd.OutOrStdout(), "using in-process redis at %s\n", mr.Addr())
			} else {
				client = newRedis(a.cfg.Redis)
			}
			defer client.Close()

			results, err := runBench(cmd.Context(), session.NewStore(client, opts.prefix), opts)
			if err != nil {
				return err
			}
			renderBench(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.sessions, "sessions", 10000, "sessions to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 50000, "operations per phase")
	cmd.Flags().BoolVar(&opts.inProcess, "in-process", false, "run against an in-process miniredis instead of redis.addr")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "bench", "session key prefix")
	return cmd
}

type benchSession struct {
	mu   sync.Mutex
	id   string
	hash [32]byte
}

type phaseStats struct {
	name     string
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

func (s phaseStats) opsPerSecond() float64 {
	if s.total <= 0 {
		return 0
	}
	return float64(s.ops) / s.total.Seconds()
}

func runBench(ctx context.Context, st *session.Store, opts benchOptions) ([]phaseStats, error) {
	states := make([]benchSession, opts.sessions)
	now := time.Now()
	for i := range states {
		states[i].id = fmt.Sprintf("bench-%d", i)
		states[i].hash = seedHash(i)
		sess := &session.Session{
			SessionID:   states[i].id,
			UserID:      fmt.Sprintf("user-%d", i%1000),
			RefreshHash: states[i].hash,
			CreatedAt:   now.Unix(),
			ExpiresAt:   now.Add(time.Hour).Unix(),
		}
		if err := st.Save(ctx, sess, time.Hour); err != nil {
			return nil, fmt.Errorf("seed session: %w", err)
		}
	}

	read, err := runPhase(ctx, "read", opts, func(r *rand.Rand, op int) error {
		_, err := st.Get(ctx, states[r.Intn(len(states))].id)
		return err
	})
	if err != nil {
		return nil, err
	}

	rotate, err := runPhase(ctx, "rotate", opts, func(r *rand.Rand, op int) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		next := rotateHash(s.hash, op)
		if _, err := st.RotateRefreshHash(ctx, s.id, s.hash, next); err != nil {
			return err
		}
		s.hash = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []phaseStats{read, rotate}, nil
}

// runPhase spreads opts.ops calls of fn over opts.concurrency workers.
// Operation errors are counted, not returned.
func runPhase(ctx context.Context, name string, opts benchOptions, fn func(r *rand.Rand, op int) error) (phaseStats, error) {
	var (
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, opts.ops)
	)

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		r := rand.New(rand.NewSource(start.UnixNano() + int64(w)*7919))
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				op := int(atomic.AddInt64(&cursor, 1)) - 1
				if op >= opts.ops {
					return nil
				}
				t0 := time.Now()
				if err := fn(r, op); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				d := time.Since(t0)
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(name, time.Since(start), latencies, failures), nil
}

func computeStats(name string, total time.Duration, samples []time.Duration, failures int64) phaseStats {
	s := phaseStats{name: name, total: total, ops: len(samples), failures: failures}
	if len(samples) == 0 {
		return s
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	s.p50 = percentile(samples, 50)
	s.p95 = percentile(samples, 95)
	s.p99 = percentile(samples, 99)
	return s
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func renderBench(w io.Writer, results []phaseStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Phase", "Ops", "Failures", "Total", "Ops/s", "p50", "p95", "p99"})
	for _, s := range results {
		t.AppendRow(table.Row{
			s.name,
			s.ops,
			s.failures,
			s.total.Round(time.Millisecond),
			fmt.Sprintf("%.0f", s.opsPerSecond()),
			s.p50.Round(time.Microsecond),
			s.p95.Round(time.Microsecond),
			s.p99.Round(time.Microsecond),
		})
	}
	t.Render()
}

func seedHash(i int) [32]byte {
	var out [32]byte
	for j := range out {
		out[j] = byte((i + j*17 + 11) % 251)
	}
	return out
}

func rotateHash(current [32]byte, salt int) [32]byte {
	out := current
	for i := range out {
		out[i] ^= byte((salt + i*13 + 1) & 0xFF)
	}
	return out
}
