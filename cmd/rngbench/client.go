package main

import (
	"context"
	"fmt"
	"io"
)

// rngClient is the request surface used by every subcommand.
// *transport.Client implements it.
type rngClient interface {
	Seed(ctx context.Context, v uint32) error
	Rand32(ctx context.Context) (uint32, error)
	Rand64(ctx context.Context) (uint64, error)
	Close() error
}

// dialFunc opens a new client connection.
type dialFunc func(ctx context.Context) (rngClient, error)

// checkSeed is the seed written by the correctness check.
const checkSeed = 0x12345678

// checkExtra is the number of additional 64-bit draws in the check.
const checkExtra = 5

// runCheck seeds the device, draws one 32-bit and one 64-bit value, then a
// few more 64-bit values, printing each.
func runCheck(ctx context.Context, w io.Writer, c rngClient) error {
	fmt.Fprintln(w, "\n=== Correctness check ===")

	if err := c.Seed(ctx, checkSeed); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	fmt.Fprintf(w, "seed:          0x%08x\n", uint32(checkSeed))

	v32, err := c.Rand32(ctx)
	if err != nil {
		return fmt.Errorf("rand32: %w", err)
	}
	fmt.Fprintf(w, "32-bit random: 0x%08x (%d)\n", v32, v32)

	v64, err := c.Rand64(ctx)
	if err != nil {
		return fmt.Errorf("rand64: %w", err)
	}
	fmt.Fprintf(w, "64-bit random: 0x%016x (%d)\n", v64, v64)

	fmt.Fprintln(w, "\nMore 64-bit values:")
	for i := range checkExtra {
		v, err := c.Rand64(ctx)
		if err != nil {
			return fmt.Errorf("rand64: %w", err)
		}
		fmt.Fprintf(w, "  %d: 0x%016x (%d)\n", i+1, v, v)
	}
	return nil
}
