package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/webping/internal/config"
	"github.com/hamed0406/webping/internal/domain"
	"github.com/hamed0406/webping/internal/httpapi"
	"github.com/hamed0406/webping/internal/logging"
	"github.com/hamed0406/webping/internal/metrics"
	"github.com/hamed0406/webping/internal/monitor"
	"github.com/hamed0406/webping/internal/notify"
	"github.com/hamed0406/webping/internal/probe"
	"github.com/hamed0406/webping/internal/repo/memory"
	"github.com/hamed0406/webping/internal/scheduler"
	"github.com/hamed0406/webping/internal/stream"
)

const shutdownTimeout = 10 * time.Second

// NewRootCommand builds the command that runs the API server.
func NewRootCommand() *cobra.Command {
	cfg := config.FromEnv()

	cmd := &cobra.Command{
		Use:           "webping-api",
		Short:         "Monitor website availability and expose results over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return errors.Wrapf(err, "invalid configuration")
			}
			return Run(cmd.Context(), cfg)
		},
	}
	cfg.AddFlags(cmd)

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Run wires every component and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	logger, err := logging.NewLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return errors.Wrapf(err, "failed to create logger in %s", cfg.LogDir)
	}
	defer func() { _ = logger.Sync() }()

	seed, err := loadSites(cfg)
	if err != nil {
		return err
	}

	policy, err := scheduler.ParseOverlapPolicy(cfg.OverlapPolicy)
	if err != nil {
		return errors.Wrapf(err, "failed to parse overlap policy")
	}

	sink := metrics.New(logger)
	prober := probe.NewHTTPChecker(cfg.ProbeTimeout, sink, logger)
	sch := scheduler.New(logger, prober, scheduler.Config{
		Overlap:      policy,
		PingAllLimit: cfg.PingAllConcurrency,
	})
	svc := monitor.New(logger, memory.New(seed...), sch, monitor.Options{
		DefaultInterval: cfg.DefaultInterval,
	})

	hub := stream.NewHub(logger, cfg.AllowedOrigins)
	sch.AddObserver(hub)

	notifier := notify.Multi{notify.Log{Logger: logger}}
	if slack := notify.NewSlack(cfg.SlackWebhookURL); slack != nil {
		notifier = append(notifier, slack)
	}
	alerter := scheduler.NewAlerter(logger, memory.NewAlerts(), notifier, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
	})
	sch.AddObserver(alerter)
	svc.OnDelete(alerter)

	api := httpapi.NewServer(logger, svc, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPM:   cfg.RateLimitRPM,
		RateLimitBurst: cfg.RateLimitBurst,
		Metrics:        sink,
		Stream:         hub,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := alerter.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.Int("sites", len(seed)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "failed to serve on %s", cfg.Addr)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("api_shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Combine(srv.Shutdown(sctx), sch.Close(sctx))
	})

	if cfg.Autostart {
		if err := svc.StartAll(ctx); err != nil {
			cancel()
			return multierr.Append(errors.Wrapf(err, "failed to start periodic pings"), g.Wait())
		}
	}

	return g.Wait()
}

func loadSites(cfg config.Config) ([]domain.Site, error) {
	inputs := config.DefaultSites()
	if cfg.SitesFile != "" {
		var err error
		inputs, err = config.ReadSites(cfg.SitesFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load sites from file")
		}
	}
	sites, err := config.SeedSites(inputs, cfg.DefaultInterval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid seed site")
	}
	return sites, nil
}
