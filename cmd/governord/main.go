package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/governor/config"
	"github.com/angeloszaimis/governor/internal/circuitbreaker"
	"github.com/angeloszaimis/governor/internal/guard"
	"github.com/angeloszaimis/governor/internal/httpserver"
	"github.com/angeloszaimis/governor/internal/latch"
	"github.com/angeloszaimis/governor/internal/metrics"
	"github.com/angeloszaimis/governor/internal/thermal"
	"github.com/angeloszaimis/governor/internal/watchdog"
	"github.com/angeloszaimis/governor/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	interlock := latch.New(cfg.Latch.DataDir, cfg.Latch.Services, nil,
		logger.Component(log, "latch"))

	// The latch check is the very first action: an engaged latch means
	// the host must not come up at all.
	if record, engaged := interlock.StartupCheck(); engaged {
		log.Error("Startup blocked by shutdown latch",
			slog.String("reason", record.Reason),
			slog.String("activated", record.Timestamp),
			slog.String("triggered_by", record.TriggeredBy))
		os.Exit(latch.ExitCodeBlocked)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		log.Error("Failed to build breaker registry", slog.Any("err", err))
		os.Exit(1)
	}

	thermalOpts, err := thermalOptions(cfg)
	if err != nil {
		log.Error("Failed to build thermal options", slog.Any("err", err))
		os.Exit(1)
	}
	governor := thermal.NewGovernor(thermalOpts, logger.Component(log, "thermal"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(1024, logger.Component(log, "metrics"))
	collector.Start(ctx)

	g := guard.New(interlock, governor, registry, collector, logger.Component(log, "guard"))

	watchdogInterval, err := time.ParseDuration(cfg.Watchdog.Interval)
	if err != nil {
		log.Error("Invalid watchdog interval", slog.Any("err", err))
		os.Exit(1)
	}
	go watchdog.Monitor(ctx, interlock, governor, watchdogInterval,
		cfg.Watchdog.CriticalSamples, logger.Component(log, "watchdog"))

	// Halt promptly if the latch is engaged out-of-process or by the
	// watchdog while we are running.
	halted := make(chan struct{})
	go watchdog.WatchLatch(ctx, interlock, func() { close(halted) },
		logger.Component(log, "watchdog"))

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(g, collector, interlock))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Governor started",
		slog.String("address", cfg.Server.Address),
		slog.String("latch_dir", cfg.Latch.DataDir),
		slog.String("thermal_state_file", cfg.Thermal.StateFile))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-halted:
		log.Error("Shutdown latch engaged, halting")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
		os.Exit(latch.ExitCodeBlocked)
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting status server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildRegistry(cfg *config.Config) (*circuitbreaker.Registry, error) {
	resetTimeout, err := time.ParseDuration(cfg.Breakers.ResetTimeout)
	if err != nil {
		return nil, err
	}

	defaults := circuitbreaker.Settings{
		FailureThreshold: cfg.Breakers.FailureThreshold,
		ResetTimeout:     resetTimeout,
	}

	named := make(map[string]circuitbreaker.Settings, len(cfg.Breakers.Named))
	for name, override := range cfg.Breakers.Named {
		settings := circuitbreaker.Settings{
			FailureThreshold: override.FailureThreshold,
		}
		if override.ResetTimeout != "" {
			timeout, err := time.ParseDuration(override.ResetTimeout)
			if err != nil {
				return nil, err
			}
			settings.ResetTimeout = timeout
		}
		named[name] = settings
	}

	return circuitbreaker.NewRegistry(defaults, named), nil
}

func thermalOptions(cfg *config.Config) (thermal.Options, error) {
	opts := thermal.Options{
		StateFile: cfg.Thermal.StateFile,
		HostProbe: cfg.Thermal.HostProbe,
		Tiers:     cfg.Thermal.Tiers,
	}

	if cfg.Thermal.MaxAge != "" {
		maxAge, err := time.ParseDuration(cfg.Thermal.MaxAge)
		if err != nil {
			return thermal.Options{}, err
		}
		opts.MaxAge = maxAge
	}

	for _, threshold := range cfg.Thermal.TempThresholds {
		opts.TempThresholds = append(opts.TempThresholds, thermal.TempThreshold{
			TempC: threshold.TempC,
			Level: threshold.Level,
		})
	}

	return opts, nil
}
