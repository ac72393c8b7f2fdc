package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/analytics"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/config"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/event"
	handler "github.com/BrianNzangi/workit-ecommerce-sub003/internal/handler/http"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/payment"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository/memory"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository/postgres"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/service"
	"github.com/BrianNzangi/workit-ecommerce-sub003/migrations"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/database"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/health"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/httpclient"
	pkgkafka "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/kafka"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/tracing"
)

const (
	serviceName       = "order-engine"
	analyticsGroupID  = "order-engine-analytics"
	idempotencyPrefix = "analytics:events:"
	idempotencyTTL    = 24 * time.Hour
)

// App wires together all dependencies and runs the order engine.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	analytics      *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Components that fail after partial setup are released before returning.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	repos, err := a.initStore(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	var publisher service.EventPublisher
	if cfg.EventsActive() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		if err := pingKafkaWithRetry(ctx, a.producer, logger); err != nil {
			logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		producer := a.producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
		publisher = event.NewProducer(producer, logger)
	} else {
		logger.Info("order events disabled")
	}

	var reader handler.AnalyticsReader
	if cfg.AnalyticsEnabled {
		store, aerr := a.initAnalytics(ctx, healthHandler)
		if aerr != nil {
			return nil, aerr
		}
		reader = store
	}

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return nil, err
	}

	orderService := service.NewOrderService(repos, publisher, service.Options{
		DefaultCurrency:   cfg.DefaultCurrency,
		CodeMaxAttempts:   cfg.CodeMaxAttempts,
		StrictTransitions: cfg.StrictTransitions,
		BcryptCost:        cfg.BcryptCost,
	}, logger)
	paymentService := service.NewPaymentService(repos.Orders, repos.Customers, gateway, publisher, logger)

	h := handler.NewOrderHandler(orderService, paymentService, reader, logger)
	router := handler.NewRouter(h, healthHandler, logger, handler.RouterConfig{
		PprofEnabled:        cfg.PprofEnabled,
		PprofCIDRs:          cfg.PprofAllowedCIDRs,
		WriteRateLimitRPS:   cfg.CheckoutRateLimitRPS,
		WriteRateLimitBurst: cfg.CheckoutRateLimitBurst,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// initStore connects the configured store driver and returns its repositories.
func (a *App) initStore(ctx context.Context, healthHandler *health.Handler) (service.Repositories, error) {
	if a.cfg.StoreDriver == config.DriverMemory {
		store := memory.NewStore()
		seedCatalog(store)
		a.logger.Warn("using in-memory store, data is lost on restart")
		return service.Repositories{
			Customers:       store.Customers(),
			Addresses:       store.Addresses(),
			Variants:        store.Variants(),
			ShippingMethods: store.ShippingMethods(),
			Orders:          store.Orders(),
		}, nil
	}

	pgCfg := a.cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, pgCfg, a.logger)
	if err != nil {
		return service.Repositories{}, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	if err := database.RunMigrations(ctx, pgCfg.DSN(), migrations.FS, a.logger); err != nil {
		return service.Repositories{}, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if a.cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(a.cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	return service.Repositories{
		Customers:       postgres.NewCustomerRepository(pool),
		Addresses:       postgres.NewAddressRepository(pool),
		Variants:        postgres.NewVariantRepository(pool),
		ShippingMethods: postgres.NewShippingMethodRepository(pool),
		Orders:          postgres.NewOrderRepository(pool),
	}, nil
}

// initAnalytics connects Redis and builds the analytics consumer.
func (a *App) initAnalytics(ctx context.Context, healthHandler *health.Handler) (*analytics.RedisStore, error) {
	client, err := database.NewRedisClient(ctx, a.cfg.Redis(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	store := analytics.NewRedisStore(client)
	aggregator := analytics.NewAggregator(store, a.logger)
	idempotency := pkgkafka.NewRedisIdempotencyStore(client, idempotencyPrefix, idempotencyTTL)

	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
	a.analytics = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  a.cfg.KafkaBrokers,
		GroupID:  analyticsGroupID,
		Topics:   aggregator.Topics(),
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(idempotency, aggregator.Handle, a.logger), a.dlq, a.logger)

	a.logger.Info("analytics aggregator enabled",
		slog.String("redis", a.cfg.Redis().Addr()),
		slog.Any("topics", aggregator.Topics()),
	)
	return store, nil
}

func newGateway(cfg *config.Config, logger *slog.Logger) (payment.Gateway, error) {
	switch cfg.PaymentGateway {
	case config.GatewayHTTP:
		clientCfg := httpclient.DefaultConfig()
		clientCfg.Timeout = cfg.PaymentTimeout
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(clientCfg),
			httpclient.DefaultCircuitBreakerConfig("payment-gateway"),
			logger,
		)
		return payment.NewHTTPGateway(client, payment.HTTPConfig{
			BaseURL:     cfg.PaymentBaseURL,
			SecretKey:   cfg.PaymentSecretKey,
			CallbackURL: cfg.PaymentCallbackURL,
		}, logger), nil
	case config.GatewayMock:
		logger.Warn("using mock payment gateway")
		return payment.NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.PaymentGateway)
	}
}

// Run starts the HTTP server and the analytics consumer, then blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.analytics != nil {
		go func() {
			if err := a.analytics.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("analytics consumer: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Analytics consumer and its DLQ
// 4. Kafka producer
// 5. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.release()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release closes the consumer, producers and connections that were opened.
func (a *App) release() []error {
	var errs []error
	closeLogged := func(name string, fn func() error) {
		if err := fn(); err != nil {
			a.logger.Error(name+" close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.analytics != nil {
		closeLogged("analytics consumer", a.analytics.Close)
	}
	if a.dlq != nil {
		closeLogged("dlq producer", a.dlq.Close)
	}
	if a.producer != nil {
		closeLogged("kafka producer", a.producer.Close)
	}
	if a.redis != nil {
		closeLogged("redis", a.redis.Close)
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errs
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
