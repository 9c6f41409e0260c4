package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/swarmwatch/swarmwatch/internal/btclient"
	"github.com/swarmwatch/swarmwatch/internal/config"
	"github.com/swarmwatch/swarmwatch/internal/logging"
	"github.com/swarmwatch/swarmwatch/internal/metrics"
	"github.com/swarmwatch/swarmwatch/internal/mock"
	"github.com/swarmwatch/swarmwatch/internal/session"
	"github.com/swarmwatch/swarmwatch/internal/swarm"
	"github.com/swarmwatch/swarmwatch/internal/ws"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const defaultMaxClients = 64

type serveOptions struct {
	port       int
	host       string
	mock       bool
	mockTick   time.Duration
	maxClients int
	start      string
}

func newServeCmd(g *globalOptions) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the swarm monitor and its HTTP/WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g, cmd.Flags(), o)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, o)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&o.port, "port", "p", 0, "override server port")
	f.StringVar(&o.host, "host", "", "override server host")
	f.BoolVar(&o.mock, "mock", false, "simulate swarms instead of joining real ones")
	f.DurationVar(&o.mockTick, "mock-tick", 500*time.Millisecond, "simulation step in mock mode")
	f.IntVar(&o.maxClients, "max-clients", defaultMaxClients, "maximum concurrent WebSocket clients")
	f.StringVar(&o.start, "start", "", "identifier to start monitoring immediately")
	return cmd
}

// loadConfig reads the config file and applies flag overrides. Flags left
// at their zero value do not override.
func loadConfig(g *globalOptions, flags *pflag.FlagSet, o *serveOptions) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.Changed("port") {
		cfg.Server.Port = o.port
	}
	if flags.Changed("host") {
		cfg.Server.Host = o.host
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type swarmClient interface {
	swarm.Client
	Close() error
}

func newSwarmClient(cfg *config.Config, o *serveOptions) (swarmClient, error) {
	if o.mock {
		return mock.NewClient(mock.Options{Tick: o.mockTick}), nil
	}
	return btclient.New(cfg.Client)
}

func runServe(ctx context.Context, cfg *config.Config, o *serveOptions) (err error) {
	flush, err := logging.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer flush()
	log := logging.Named("main")

	client, err := newSwarmClient(cfg, o)
	if err != nil {
		return fmt.Errorf("start swarm client: %w", err)
	}
	if o.mock {
		log.Infof("Starting in mock mode")
	} else {
		log.Infof("Starting swarm client, data in %s", cfg.Client.DataDir)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	ctrl := session.NewController(client, session.Options{
		AddOptions: addOptions(cfg),
		StopGrace:  cfg.Monitor.StopGrace,
		Observer:   collector,
	})
	defer func() {
		ctrl.Close()
		err = multierr.Append(err, client.Close())
	}()
	if err := collector.Attach(ctrl); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	broadcaster := ws.NewBroadcaster(ctrl, cfg.Monitor.BroadcastThrottle, cfg.Monitor.SnapshotInterval, o.maxClients)
	srv := ws.NewServer(cfg.Server, ctrl, broadcaster, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return broadcaster.Run(gctx) })
	g.Go(func() error { return ws.ListenAndServe(gctx, cfg.Addr(), srv.Handler()) })

	if o.start != "" {
		ctrl.Start(o.start)
	}

	err = g.Wait()
	log.Infof("Shutting down")
	return err
}

func addOptions(cfg *config.Config) swarm.AddOptions {
	return swarm.AddOptions{NoDownload: cfg.Client.NoDownload}
}
