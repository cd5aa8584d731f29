// Command rngbench exercises an rngd instance: a correctness check, 32-bit
// and 64-bit throughput benchmarks, one-shot commands and an interactive
// shell.
//
// Usage:
//
//	rngbench [--socket PATH]                 check, then both benchmarks
//	rngbench check
//	rngbench bench [-n N] [-w WORKERS] [--width 32|64]
//	rngbench seed VALUE
//	rngbench rand32 [-n COUNT]
//	rngbench rand64 [-n COUNT]
//	rngbench shell
//
// --cpuprofile and --memprofile write pprof profiles of the client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ardnew/softrng/config"
	"github.com/ardnew/softrng/pkg"
	"github.com/ardnew/softrng/pkg/prof"
	"github.com/ardnew/softrng/transport"
)

// globalOptions are the persistent flags.
type globalOptions struct {
	socket   string
	logLevel string
	prof     prof.Options
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts globalOptions
	var session *prof.Session

	root := &cobra.Command{
		Use:           "rngbench",
		Short:         "Check and benchmark an rngd device",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := pkg.ParseLogLevel(opts.logLevel)
			if err != nil {
				return err
			}
			pkg.SetLogLevel(level)
			session, err = prof.Start(opts.prof)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return session.Stop()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			c, err := opts.dial(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "RNG benchmark: 32-bit vs 64-bit")
			if err := runCheck(ctx, out, c); err != nil {
				return err
			}
			for _, width := range []int{32, 64} {
				stats, err := runBench(ctx, opts.dialer(), benchOptions{
					iterations: defaultIterations,
					workers:    1,
					width:      width,
				})
				if err != nil {
					return err
				}
				stats.Report(out)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.socket, "socket", "s", config.DefaultSocketPath, "rngd socket path")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.prof.CPU, "cpuprofile", "", "write a CPU profile to this file")
	pf.StringVar(&opts.prof.Heap, "memprofile", "", "write a heap profile to this file")

	root.AddCommand(
		newCheckCommand(&opts),
		newBenchCommand(&opts),
		newSeedCommand(&opts),
		newDrawCommand(&opts, 32),
		newDrawCommand(&opts, 64),
		newShellCommand(&opts),
	)
	return root
}

func (o *globalOptions) dial(ctx context.Context) (*transport.Client, error) {
	return transport.Dial(ctx, o.socket)
}

// dialer returns a dialFunc for benchmark workers.
func (o *globalOptions) dialer() dialFunc {
	return func(ctx context.Context) (rngClient, error) {
		return o.dial(ctx)
	}
}
