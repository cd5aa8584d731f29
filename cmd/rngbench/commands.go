package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ardnew/softrng/pkg"
)

func newCheckCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Seed the device and print a few random values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			return runCheck(cmd.Context(), cmd.OutOrStdout(), c)
		},
	}
}

func newBenchCommand(opts *globalOptions) *cobra.Command {
	bo := benchOptions{iterations: defaultIterations, workers: 1}
	var widths []int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure draw throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, w := range widths {
				bo.width = w
				stats, err := runBench(cmd.Context(), opts.dialer(), bo)
				if err != nil {
					return err
				}
				stats.Report(cmd.OutOrStdout())
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&bo.iterations, "iterations", "n", defaultIterations, "draws per benchmark")
	f.IntVarP(&bo.workers, "workers", "w", 1, "concurrent connections")
	f.IntSliceVar(&widths, "width", []int{32, 64}, "draw widths to benchmark (32, 64)")
	return cmd
}

func newSeedCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed VALUE",
		Short: "Write a 32-bit seed (decimal, 0x hex or 0 octal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseSeed(args[0])
			if err != nil {
				return err
			}
			c, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Seed(cmd.Context(), v)
		},
	}
}

func newDrawCommand(opts *globalOptions, width int) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("rand%d", width),
		Short: fmt.Sprintf("Print %d-bit random values", width),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			for range count {
				s, err := drawString(cmd.Context(), c, width)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of values")
	return cmd
}

// parseSeed parses a 32-bit seed with Go integer literal syntax.
func parseSeed(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: seed %q", pkg.ErrInvalidParameter, s)
	}
	return uint32(v), nil
}
