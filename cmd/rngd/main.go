// Command rngd binds the PCI random number generator and serves control
// requests on a Unix socket.
//
// Usage:
//
//	rngd [--config FILE] [--socket PATH] [--simulate] [--serialize]
//	     [--log-level LEVEL] [--metrics ADDR]
//
// Flags override values read from the configuration file. With --simulate
// the daemon runs against an in-memory device instead of sysfs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/softrng/bus"
	"github.com/ardnew/softrng/bus/sim"
	"github.com/ardnew/softrng/config"
	"github.com/ardnew/softrng/driver"
	"github.com/ardnew/softrng/pkg"
	"github.com/ardnew/softrng/transport"
)

// simAddress is the bus address of the simulated device.
const simAddress = "0000:00:04.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rngd",
		Short:         "Serve a PCI random number generator over a Unix socket",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, nil)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "configuration file (YAML)")
	f.String("socket", config.DefaultSocketPath, "request socket path")
	f.Bool("simulate", false, "use a simulated device instead of sysfs")
	f.Bool("serialize", false, "make every request's register accesses exclusive")
	f.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	f.String("metrics", "", "serve Prometheus metrics on this address")
	return cmd
}

// loadConfig reads the --config file, if any, and applies explicitly set
// flags on top.
func loadConfig(f *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if f.Changed("socket") {
		cfg.Socket.Path, _ = f.GetString("socket")
	}
	if f.Changed("simulate") {
		cfg.Simulate, _ = f.GetBool("simulate")
	}
	if f.Changed("serialize") {
		cfg.Driver.Serialize, _ = f.GetBool("serialize")
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("metrics") {
		cfg.Metrics.Listen, _ = f.GetString("metrics")
	}
	return cfg, cfg.Validate()
}

// run serves until ctx is cancelled. ready, if not nil, is closed once the
// socket is accepting connections.
func run(ctx context.Context, cfg *config.Config, ready chan<- struct{}) error {
	if err := configureLogging(cfg.Log); err != nil {
		return err
	}

	b, err := newBus(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	drv := driver.New(b, driver.Options{
		ID:        cfg.ID(),
		BAR:       cfg.Device.BAR,
		Name:      cfg.Driver.Name,
		Serialize: cfg.Driver.Serialize,
		Metrics:   driver.NewMetrics(reg),
	})
	srv, err := transport.NewServer(transport.ServerConfig{
		Path: cfg.Socket.Path,
		Mode: cfg.Socket.Mode.Perm(),
	}, driver.NewDispatcher(drv))
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	pkg.LogInfo(pkg.ComponentDriver, "rngd started",
		"id", cfg.ID(),
		"bar", cfg.Device.BAR,
		"simulate", cfg.Simulate,
		"serialize", cfg.Driver.Serialize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return drv.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		return srv.Stop()
	})
	if cfg.Metrics.Listen != "" {
		g.Go(func() error { return serveMetrics(ctx, cfg.Metrics.Listen, reg) })
	}
	if ready != nil {
		close(ready)
	}
	return g.Wait()
}

func configureLogging(c config.LogConfig) error {
	level, err := pkg.ParseLogLevel(c.Level)
	if err != nil {
		return err
	}
	format, err := pkg.ParseLogFormat(c.Format)
	if err != nil {
		return err
	}
	pkg.SetLogLevel(level)
	pkg.SetLogFormat(format)
	return nil
}

// newBus returns the simulated bus with one device plugged in, or the
// platform bus.
func newBus(cfg *config.Config) (bus.Bus, error) {
	if !cfg.Simulate {
		return newPlatformBus(cfg)
	}
	b := sim.New()
	b.Plug(sim.NewCandidate(simAddress, cfg.ID()), sim.NewRNG(uint64(time.Now().UnixNano())))
	return b, nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	pkg.LogInfo(pkg.ComponentDriver, "serving metrics", "addr", l.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(l) }()

	select {
	case err := <-errc:
		return fmt.Errorf("metrics: %w", err)
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
