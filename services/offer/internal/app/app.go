package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tourhub/offers/pkg/database"
	"github.com/tourhub/offers/pkg/health"
	pkgkafka "github.com/tourhub/offers/pkg/kafka"
	"github.com/tourhub/offers/pkg/middleware"
	"github.com/tourhub/offers/pkg/tracing"
	"github.com/tourhub/offers/services/offer/internal/config"
	"github.com/tourhub/offers/services/offer/internal/event"
	handler "github.com/tourhub/offers/services/offer/internal/handler/http"
	"github.com/tourhub/offers/services/offer/internal/metrics"
	"github.com/tourhub/offers/services/offer/internal/repository/postgres"
	rediscache "github.com/tourhub/offers/services/offer/internal/repository/redis"
	"github.com/tourhub/offers/services/offer/internal/rules"
	"github.com/tourhub/offers/services/offer/internal/service"
	"github.com/tourhub/offers/services/offer/migrations"
)

const serviceName = "offer-service"

// App wires together all dependencies and runs the offer service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(registry, pool, serviceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}
	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, pkgkafka.NewMetrics(registry), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	evaluator, err := rules.NewEvaluator()
	if err != nil {
		pool.Close()
		_ = producer.Close()
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("init rule evaluator: %w", err)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	opts := []service.Option{
		service.WithLocation(cfg.Location()),
		service.WithMetrics(metrics.New(registry)),
	}

	// Redis is optional: the service reads straight from Postgres without it.
	var redisClient *goredis.Client
	if cfg.CacheEnabled() {
		redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:         cfg.RedisHost,
			Port:         cfg.RedisPort,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		if err != nil {
			logger.Warn("redis unavailable, active offer cache disabled",
				slog.String("addr", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)),
				slog.String("error", err.Error()),
			)
			redisClient = nil
		} else {
			client := redisClient
			cache := rediscache.NewActiveOfferCache(client, cfg.CacheTTL())
			// Lists cached by an earlier release may predate the migrations just applied.
			if err := cache.InvalidateAll(ctx); err != nil {
				logger.Warn("failed to flush active offer cache", slog.String("error", err.Error()))
			}
			opts = append(opts, service.WithCache(cache))
			healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})
			logger.Info("active offer cache enabled", slog.Duration("ttl", cfg.CacheTTL()))
		}
	}

	// Build the dependency graph.
	repo := postgres.NewOfferRepository(pool)
	eventProducer := event.NewProducer(producer, logger)
	offerService := service.NewOfferService(repo, evaluator, eventProducer, logger, opts...)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	router := handler.NewRouter(offerService, healthHandler, handler.RouterConfig{
		ServiceName:    serviceName,
		CORS:           corsCfg,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		FeaturedMaxAge: cfg.FeaturedMaxAgeSeconds,
		Registry:       registry,
		Timeout:        timeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		tracerShutdown: tracerShutdown,
		httpServer:     httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components. Every component is closed even
// when an earlier one fails; the failures are joined.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	if err := a.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("kafka producer close: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	a.pool.Close()
	if err := a.tracerShutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("application shutdown finished with errors", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("application shutdown complete")
	return nil
}
