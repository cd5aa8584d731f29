package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/softrng/pkg"
)

// defaultIterations is the default number of draws per benchmark.
const defaultIterations = 1_000_000

// benchOptions configures one benchmark run.
type benchOptions struct {
	iterations int
	workers    int
	width      int // 32 or 64
}

func (o benchOptions) validate() error {
	if o.iterations <= 0 {
		return fmt.Errorf("%w: iterations %d", pkg.ErrInvalidParameter, o.iterations)
	}
	if o.workers <= 0 {
		return fmt.Errorf("%w: workers %d", pkg.ErrInvalidParameter, o.workers)
	}
	if o.width != 32 && o.width != 64 {
		return fmt.Errorf("%w: width %d", pkg.ErrInvalidParameter, o.width)
	}
	return nil
}

// Stats is the result of a benchmark run.
type Stats struct {
	Width   int
	Workers int
	Ops     int
	Bytes   uint64
	Elapsed time.Duration
}

const mebibyte = 1024 * 1024

// OpsPerSec returns the draw rate.
func (s Stats) OpsPerSec() float64 {
	return float64(s.Ops) / s.Elapsed.Seconds()
}

// MB returns the generated data in MiB.
func (s Stats) MB() float64 {
	return float64(s.Bytes) / mebibyte
}

// MBPerSec returns the throughput in MiB/s.
func (s Stats) MBPerSec() float64 {
	return s.MB() / s.Elapsed.Seconds()
}

// MeanLatency returns the mean wall time per draw. With several workers
// this is aggregate time divided by draws, not per-request latency.
func (s Stats) MeanLatency() time.Duration {
	if s.Ops == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Ops)
}

// Report writes the results in the benchmark's tabular format.
func (s Stats) Report(w io.Writer) {
	fmt.Fprintf(w, "\n=== %d-bit benchmark ===\n", s.Width)
	fmt.Fprintf(w, "Iterations     : %d (%d workers)\n", s.Ops, s.Workers)
	fmt.Fprintf(w, "Elapsed        : %.3f s\n", s.Elapsed.Seconds())
	fmt.Fprintf(w, "Operations/sec : %.0f ops/s\n", s.OpsPerSec())
	fmt.Fprintf(w, "Data generated : %.2f MB\n", s.MB())
	fmt.Fprintf(w, "Throughput     : %.2f MB/s\n", s.MBPerSec())
	fmt.Fprintf(w, "Mean latency   : %.2f µs/op\n", float64(s.MeanLatency().Nanoseconds())/1e3)
}

// runBench draws opts.iterations values split across opts.workers
// connections and times the whole run.
func runBench(ctx context.Context, dial dialFunc, opts benchOptions) (Stats, error) {
	if err := opts.validate(); err != nil {
		return Stats{}, err
	}

	// Connect first so setup is not timed.
	clients := make([]rngClient, 0, opts.workers)
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()
	for range opts.workers {
		c, err := dial(ctx)
		if err != nil {
			return Stats{}, err
		}
		clients = append(clients, c)
	}

	draw := func(ctx context.Context, c rngClient) error {
		_, err := c.Rand32(ctx)
		return err
	}
	if opts.width == 64 {
		draw = func(ctx context.Context, c rngClient) error {
			_, err := c.Rand64(ctx)
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for i, c := range clients {
		n := opts.iterations / opts.workers
		if i < opts.iterations%opts.workers {
			n++
		}
		g.Go(func() error {
			for range n {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := draw(gctx, c); err != nil {
					return fmt.Errorf("rand%d: %w", opts.width, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	return Stats{
		Width:   opts.width,
		Workers: opts.workers,
		Ops:     opts.iterations,
		Bytes:   uint64(opts.iterations) * uint64(opts.width/8),
		Elapsed: time.Since(start),
	}, nil
}
