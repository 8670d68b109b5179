// Package main runs the donorpulse daemon: the sync orchestrator, its
// scheduler and the donor wall HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/peteski22/donorpulse/internal/config"
	"github.com/peteski22/donorpulse/internal/events"
	"github.com/peteski22/donorpulse/internal/givebutter"
	"github.com/peteski22/donorpulse/internal/scheduler"
	"github.com/peteski22/donorpulse/internal/server"
	"github.com/peteski22/donorpulse/internal/storage"
	"github.com/peteski22/donorpulse/internal/sync"
	"github.com/peteski22/donorpulse/internal/telemetry"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", "donorpulse.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "log snapshot writes instead of persisting them")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(context.Background(), cfg, *dryRun, logger); err != nil {
		logger.Error("donorpulse exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	built, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}

	apiKey, err := resolveAPIKey(ctx, cfg)
	if err != nil {
		return err
	}

	client, err := givebutter.NewClient(apiKey,
		givebutter.WithBaseURL(cfg.Givebutter.BaseURL),
		givebutter.WithMaxAttempts(cfg.Givebutter.MaxAttempts),
		givebutter.WithPageSize(cfg.Givebutter.PageSize),
		givebutter.WithRetryWait(cfg.Givebutter.InitialBackoff, cfg.Givebutter.MaxBackoff),
		givebutter.WithTimeout(cfg.Givebutter.Timeout),
	)
	if err != nil {
		return fmt.Errorf("creating givebutter client: %w", err)
	}

	metrics := telemetry.New()

	var publisher sync.Publisher
	if cfg.Events.Enabled {
		rabbit, err := events.NewRabbitMQ(events.Config{
			Exchange:   cfg.Events.Exchange,
			Logger:     logger,
			Queue:      cfg.Events.Queue,
			RoutingKey: cfg.Events.RoutingKey,
			URL:        cfg.Events.URL,
		})
		if err != nil {
			return fmt.Errorf("connecting run event publisher: %w", err)
		}
		defer func() {
			if err := rabbit.Close(); err != nil {
				logger.Warn("failed to close run event publisher", "error", err)
			}
		}()
		publisher = rabbit
	}

	svc, err := sync.New(sync.Config{
		DryRun:          dryRun || cfg.Sync.DryRun,
		History:         cfg.Sync.History,
		Instrumentation: metrics,
		Logger:          logger,
		Publisher:       publisher,
		RunLog:          built.runLog,
		RunTimeout:      cfg.Sync.RunTimeout,
		Snapshots:       built.snapshots,
		Source:          client,
		StateStore:      built.states,
		TopDonors:       cfg.Sync.TopDonors,
	})
	if err != nil {
		return fmt.Errorf("creating sync service: %w", err)
	}

	if err := svc.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrating sync service: %w", err)
	}

	sched, err := scheduler.New(scheduler.Config{
		Interval: cfg.Sync.Interval,
		Logger:   logger,
		States:   built.states,
		Syncer:   svc,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	router := server.NewRouter(svc,
		server.WithMetricsHandler(metrics.Handler()),
		server.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(cfg.Server.RequestTimeout),
			server.LoggingMiddleware(logger),
		),
	)

	srv, err := server.New(server.Config{
		Address:         cfg.Server.Address,
		Handler:         router,
		Logger:          logger,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	logger.Info("starting donorpulse",
		"address", cfg.Server.Address,
		"backend", cfg.Storage.Backend,
		"interval", cfg.Sync.Interval,
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(ctx)
	})
	group.Go(func() error {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("donorpulse stopped")
	return nil
}

// stores bundles the persistence layer picked by the storage backend. Nil
// fields mean the concern has nothing durable behind it.
type stores struct {
	runLog    sync.RunLog
	snapshots sync.SnapshotStore
	states    sync.StateStore
}

func buildStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	built := &stores{}

	switch cfg.Storage.Backend {
	case config.BackendAWS:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}

		snapshots, err := storage.NewSnapshotStore(
			dynamodb.NewFromConfig(awsCfg),
			s3.NewFromConfig(awsCfg),
			cfg.Storage.Bucket,
			cfg.Storage.VersionTable,
			storage.WithKeyPrefix(cfg.Storage.KeyPrefix),
		)
		if err != nil {
			return nil, fmt.Errorf("creating snapshot store: %w", err)
		}
		built.snapshots = snapshots

		if cfg.Storage.RunTable != "" {
			runLog, err := storage.NewRunLog(dynamodb.NewFromConfig(awsCfg), cfg.Storage.RunTable)
			if err != nil {
				return nil, fmt.Errorf("creating run log: %w", err)
			}
			built.runLog = runLog
		}

		if cfg.Storage.StateParameter != "" {
			states, err := storage.NewStateStore(ssm.NewFromConfig(awsCfg), cfg.Storage.StateParameter)
			if err != nil {
				return nil, fmt.Errorf("creating state store: %w", err)
			}
			built.states = states
		}

	case config.BackendFile:
		snapshots, err := storage.NewFileSnapshotStore(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("creating snapshot store: %w", err)
		}
		built.snapshots = snapshots

		states, err := storage.NewFileStateStore(cfg.Storage.StatePath)
		if err != nil {
			return nil, fmt.Errorf("creating state store: %w", err)
		}
		built.states = states

	case config.BackendMemory:
		built.snapshots = storage.NewMemorySnapshotStore()
		built.states = storage.NewMemoryStateStore(time.Time{})
	}

	return built, nil
}

// resolveAPIKey prefers the key from the config file and falls back to
// Secrets Manager when only an ARN is configured.
func resolveAPIKey(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Givebutter.APIKey != "" {
		return cfg.Givebutter.APIKey, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("loading aws config: %w", err)
	}

	secrets, err := storage.NewSecretStore(secretsmanager.NewFromConfig(awsCfg), cfg.Givebutter.APIKeySecretARN)
	if err != nil {
		return "", fmt.Errorf("creating secret store: %w", err)
	}

	key, err := secrets.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving api key: %w", err)
	}

	return key, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
