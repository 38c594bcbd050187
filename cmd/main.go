package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/icexg/internal/adapters/feed"
	"github.com/okian/icexg/internal/adapters/gateway"
	"github.com/okian/icexg/internal/adapters/http/api"
	"github.com/okian/icexg/internal/adapters/http/stream"
	"github.com/okian/icexg/internal/adapters/repository"
	service "github.com/okian/icexg/internal/app"
	"github.com/okian/icexg/internal/config"
	"github.com/okian/icexg/internal/domain/scoring"
	"github.com/okian/icexg/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithFormat(os.Stdout, cfg.LogFormat); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "service failed", logger.Error(err))
		os.Exit(1)
	}
}

// components holds everything run wires together.
type components struct {
	svc *service.Service
	hub *stream.Hub
	mux *http.ServeMux
}

// build wires the service graph from cfg.
func build(cfg *config.Config, log logger.Logger) (*components, error) {
	feedClient := feed.NewClient(feed.Config{
		BaseURL:    cfg.FeedBaseURL,
		Timeout:    cfg.HTTPTimeout(),
		RatePerSec: cfg.FeedRatePerSec,
	})

	gw, err := newGateway(cfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("table store: %w", err)
	}

	hub := stream.NewHub(stream.WithLogger(log.Named("stream")))
	svc := service.New(feedClient, gw,
		service.WithLogger(log.Named("service")),
		service.WithStore(store),
		service.WithPublisher(hub),
		service.WithAutoPoll(cfg.AutoPollInterval()),
		service.WithPollTimeout(cfg.HTTPTimeout()),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithLedgerCapacity(cfg.LedgerCapacity),
	)

	mux := http.NewServeMux()
	api.NewServer(svc, api.WithStream(hub)).Register(mux)
	return &components{svc: svc, hub: hub, mux: mux}, nil
}

// newGateway returns the remote model client, or local logistic models when
// no gateway URL is configured.
func newGateway(cfg *config.Config) (scoring.Gateway, error) {
	if cfg.GatewayURL == "" {
		return scoring.NewInMemoryScorer(scoring.WithInitialModel(cfg.Model)), nil
	}
	client, err := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.GatewayURL,
		Timeout:   cfg.HTTPTimeout(),
		Workspace: cfg.Workspace,
		Model:     cfg.Model,
		Version:   cfg.Version,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newStore(cfg *config.Config) (repository.Store, error) {
	if cfg.TableStore == config.StoreSQLite {
		return repository.OpenSQLiteStore(cfg.SQLitePath)
	}
	return repository.NewMemoryStore(), nil
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	c, err := build(cfg, log)
	if err != nil {
		return err
	}
	if err := c.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer c.svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           c.mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("model", cfg.Model),
			logger.String("table_store", cfg.TableStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	c.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}
