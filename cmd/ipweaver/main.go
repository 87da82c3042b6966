// ipweaver keeps one subdomain's A and AAAA records pointed at the host's
// current public addresses. It discovers the addresses via external lookup
// services and reconciles the records through the provider's REST API on a
// fixed interval.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"gitlab.bluewillows.net/root/ipweaver/internal/config"
	"gitlab.bluewillows.net/root/ipweaver/internal/health"
	"gitlab.bluewillows.net/root/ipweaver/internal/ipsource"
	"gitlab.bluewillows.net/root/ipweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ipweaver/internal/reconciler"
	"gitlab.bluewillows.net/root/ipweaver/pkg/dnscheck"
	"gitlab.bluewillows.net/root/ipweaver/pkg/httputil"
	"gitlab.bluewillows.net/root/ipweaver/providers/cloudflare"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-08-29"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (overrides IPWEAVER_CONFIG_FILE)")
	setup := flag.Bool("setup", false, "interactively write the API token secret file and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("ipweaver %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
		return
	}

	if *setup {
		if err := runSetup(); err != nil {
			slog.Error("setup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if *configPath != "" {
		os.Setenv("IPWEAVER_CONFIG_FILE", *configPath)
	}

	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration first, failing fast with every problem at once
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("ipweaver starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.String("fqdn", cfg.FQDN()),
		slog.Duration("interval", cfg.Interval),
		slog.Bool("dry_run", cfg.DryRun),
	)

	// A world-readable token file is worth flagging, but secrets mounted
	// by an orchestrator are not always chmod-able, so don't refuse to run.
	if os.Getenv("IPWEAVER_API_TOKEN") == "" {
		if err := verifyPermissions(config.TokenFilePath()); err != nil {
			logger.Warn("token file permissions", slog.String("error", err.Error()))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient := httputil.NewClient(&httputil.ClientConfig{
		Timeout: cfg.APITimeout,
		Logger:  logger,
	})
	dns := cloudflare.NewClient(cfg.APIToken,
		cloudflare.WithAPIEndpoint(cfg.APIBase),
		cloudflare.WithAccountID(cfg.AccountID),
		cloudflare.WithHTTPClient(apiClient),
		cloudflare.WithLogger(logger),
	)

	lookupClient := httputil.NewClient(&httputil.ClientConfig{
		Timeout: cfg.LookupTimeout,
		Logger:  logger,
	})
	resolver := ipsource.New(
		ipsource.WithHTTPClient(lookupClient),
		ipsource.WithServices(cfg.IPv4Services, cfg.IPv6Services),
		ipsource.WithLookupTimeout(cfg.LookupTimeout),
		ipsource.WithLogger(logger),
	)

	recOpts := []reconciler.Option{
		reconciler.WithConfig(reconciler.Config{
			Domain:    cfg.Domain,
			Subdomain: cfg.Subdomain,
			TTL:       cfg.TTL,
			Interval:  cfg.Interval,
			DryRun:    cfg.DryRun,
		}),
		reconciler.WithLogger(logger),
	}
	if cfg.VerifyResolver != "" {
		logger.Info("propagation checks enabled", slog.String("resolver", cfg.VerifyResolver))
		recOpts = append(recOpts, reconciler.WithChecker(
			dnscheck.New(cfg.VerifyResolver, dnscheck.WithLogger(logger)),
		))
	}
	rec := reconciler.New(dns, resolver, recOpts...)

	healthServer := health.New(cfg.HealthPort, health.WithLogger(logger))
	healthServer.RegisterChecker("provider:"+dns.Name(), dns.Ping)
	healthServer.RegisterDegradedChecker("records", func(ctx context.Context) (bool, string) {
		if missing := rec.MissingFamilies(); len(missing) > 0 {
			return true, fmt.Sprintf("no record maintained for: %v", missing)
		}
		return false, ""
	})
	if err := healthServer.Start(); err != nil {
		return fmt.Errorf("starting health server: %w", err)
	}

	err = rec.Run(ctx)

	// Graceful shutdown
	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if shutdownErr := healthServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("health server shutdown error", slog.String("error", shutdownErr.Error()))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("ipweaver shutdown complete")
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
