package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workshop/internal/api"
	"workshop/internal/config"
	"workshop/internal/database"
	"workshop/internal/domain"
	"workshop/internal/events"
	"workshop/internal/export"
	"workshop/internal/inventory"
	"workshop/internal/logging"
	"workshop/internal/metrics"
	"workshop/internal/repository"
	"workshop/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	editStates := initEditStates(cfg, redisClient, logger)

	bus := events.NewEventBus()
	inbox := events.NewInbox(0)
	inbox.Attach(bus)
	notifier := events.NewNotifier(bus, logging.Component(logger, "notifier"))

	inv := inventory.NewService(db, logging.Component(logger, "inventory"))
	if err := inv.Refresh(ctx); err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}

	board := service.NewBookingBoard(editStates, logging.Component(logger, "booking-board"))
	bookings := service.NewBookingService(db, board, notifier, bus,
		cfg.Workshop.DefaultTechnicianName, logging.Component(logger, "booking-service"))
	if err := bookings.Refresh(ctx); err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}

	invoices := service.NewInvoiceService(inv, db, db, notifier, bus,
		time.Duration(cfg.Workshop.PreviewTTLMinutes)*time.Minute, logging.Component(logger, "invoice-service"))

	metrics.Register()
	httpServer := api.NewHTTPServer(cfg.API, api.Deps{
		Bookings:  bookings,
		Invoices:  invoices,
		Inventory: inv,
		Inbox:     inbox,
		Exporter:  export.NewExporter(logging.Component(logger, "export")),
		Store:     db,
	}, logging.Component(logger, "http"))

	startMetrics(ctx, cfg, logger)

	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SyncInventory(ctx, cfg.Inventory); err != nil {
		db.Close()
		return nil, fmt.Errorf("sync inventory: %w", err)
	}

	existing, err := db.ListTechnicians(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	if len(existing) == 0 {
		for i := range cfg.Technicians {
			if err := db.CreateTechnician(ctx, &cfg.Technicians[i]); err != nil {
				db.Close()
				return nil, fmt.Errorf("seed technicians: %w", err)
			}
		}
	}

	logger.Info().Int("inventory", len(cfg.Inventory)).Int("technicians", len(cfg.Technicians)).Msg("database ready")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initEditStates keeps edit states in Redis with an in-memory fallback.
func initEditStates(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.EditStateRepository {
	ttl := time.Duration(cfg.Redis.EditStateTTL) * time.Second
	memory := repository.NewMemoryEditStateRepository(ttl)
	if client == nil {
		return memory
	}
	return repository.NewFailoverEditStateRepository(
		repository.NewRedisEditStateRepository(client, ttl),
		memory,
		logging.Component(logger, "edit-states"),
	)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
