package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/adapters/cache"
	"github.com/Endgame-Tech/choma-sub014/internal/adapters/dispatch"
	"github.com/Endgame-Tech/choma-sub014/internal/adapters/events"
	"github.com/Endgame-Tech/choma-sub014/internal/adapters/httpx"
	"github.com/Endgame-Tech/choma-sub014/internal/adapters/repositories"
	"github.com/Endgame-Tech/choma-sub014/internal/adapters/upstream"
	"github.com/Endgame-Tech/choma-sub014/internal/api"
	"github.com/Endgame-Tech/choma-sub014/internal/config"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/db"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/otel"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
	"github.com/Endgame-Tech/choma-sub014/internal/services"
	"github.com/Endgame-Tech/choma-sub014/internal/worker"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const serviceName = "meal-timeline-service"

// main is the application composition root.
// It wires concrete adapters behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, otel.Options{
		ServiceName:    serviceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	dialect, err := repositories.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}
	conn, err := openDatabase(cfg, dialect)
	if err != nil {
		return err
	}
	defer conn.Close()

	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }

	subs := repositories.NewSQLSubscriptionRepository(conn, dialect, loc)
	store := repositories.NewSQLSlotStatusStore(conn, dialect)

	timelineCache, closeCache, err := newTimelineCache(cfg, now)
	if err != nil {
		return err
	}
	defer closeCache()

	source, err := newStatusSource(cfg)
	if err != nil {
		return err
	}

	var drivers ports.DriverAssigner
	if cfg.DispatchBaseURL != "" {
		client, err := httpx.NewClient(cfg.DispatchBaseURL, cfg.UpstreamAPIKey, cfg.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("dispatch client: %w", err)
		}
		if drivers, err = dispatch.NewHTTPDriverAssigner(client); err != nil {
			return err
		}
	}

	var publisher ports.EventPublisher = &events.LogPublisher{Logger: logger}
	if cfg.AMQPURL != "" {
		rmq, err := events.NewRabbitMQPublisher(cfg.AMQPURL, cfg.EventsExchange, logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer rmq.Close()
		publisher = rmq
	}

	svc := &services.TimelineService{
		Subs:     subs,
		Store:    store,
		Upstream: source,
		Cache:    timelineCache,
		Events:   publisher,
		Drivers:  drivers,
		Logger:   logger,
		Now:      now,
	}

	refresher := worker.NewRefresher(subs, svc, logger, cfg.RefreshSchedule, cfg.RefreshConcurrency)
	if err := refresher.Start(); err != nil {
		return fmt.Errorf("start refresher: %w", err)
	}
	defer func() {
		<-refresher.Stop().Done()
	}()

	router := api.NewRouter(svc, api.RouterConfig{
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
		Now:            now,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server gracefully stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// openDatabase opens the configured database and prepares the schema.
// Local sqlite runs are seeded with demo subscriptions.
func openDatabase(cfg *config.Config, dialect repositories.Dialect) (*sql.DB, error) {
	dsn := cfg.DatabaseURL
	if dialect == repositories.DialectSQLite {
		dsn = cfg.DBPath
	}

	conn, err := db.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, err
	}

	if err := repositories.InitSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if dialect == repositories.DialectSQLite && cfg.SeedPath != "" {
		if err := repositories.SeedFromJSON(conn, dialect, cfg.SeedPath); err != nil {
			conn.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	return conn, nil
}

// newTimelineCache uses Redis when configured and an in-process cache otherwise.
func newTimelineCache(cfg *config.Config, now func() time.Time) (ports.TimelineCache, func(), error) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryTimelineCache(cfg.CacheTTL, now), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return cache.NewRedisTimelineCache(client, cfg.RedisPrefix, cfg.CacheTTL), func() { client.Close() }, nil
}

// newStatusSource reads upstream statuses over HTTP when a base URL is set.
// Without one, an empty in-memory source keeps local runs self-contained.
func newStatusSource(cfg *config.Config) (ports.UpstreamStatusSource, error) {
	if cfg.UpstreamBaseURL == "" {
		return upstream.NewMockStatusSource(), nil
	}

	client, err := httpx.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, cfg.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}
	return upstream.NewHTTPStatusSource(client)
}
