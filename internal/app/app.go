// Package app wires configuration, storage, services, and the HTTP server
// into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/calliri/hearth/internal/config"
	"github.com/calliri/hearth/internal/domain"
	"github.com/calliri/hearth/internal/event"
	handlerhttp "github.com/calliri/hearth/internal/handler/http"
	"github.com/calliri/hearth/internal/ratelimit"
	"github.com/calliri/hearth/internal/repository/postgres"
	"github.com/calliri/hearth/internal/service"
	"github.com/calliri/hearth/internal/token"
	"github.com/calliri/hearth/migrations"
	"github.com/calliri/hearth/pkg/database"
	"github.com/calliri/hearth/pkg/health"
	"github.com/calliri/hearth/pkg/kafka"
	"github.com/calliri/hearth/pkg/middleware"
	"github.com/calliri/hearth/pkg/tracing"
)

const serviceName = "hearth"

// App is the assembled service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	producer *kafka.Producer
	server   *http.Server

	deviceSvc      *service.DeviceService
	tracerShutdown func(context.Context) error
}

// New builds the application: connects storage, runs migrations, ensures
// the seed accounts, and assembles the HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracerShutdown = shutdownTracer

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	database.RegisterPoolMetrics(pool, serviceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	limiter, err := a.buildLimiter(ctx)
	if err != nil {
		return nil, err
	}

	var publisher event.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
	}
	events := event.NewProducer(publisher, logger)

	tokens := token.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	users := postgres.NewUserRepository(pool)
	devices := postgres.NewDeviceRepository(pool)
	invites := postgres.NewInviteRepository(pool)

	authSvc := service.NewAuthService(users, devices, tokens, limiter, events, logger, cfg.BcryptCost)
	inviteSvc := service.NewInviteService(invites, events, logger, cfg.InviteTTL, cfg.BcryptCost)
	a.deviceSvc = service.NewDeviceService(devices, tokens, events, logger)

	if err := authSvc.EnsureSeedAccounts(ctx, []service.SeedAccount{
		{Email: cfg.SeedAdminEmail, FirstName: cfg.SeedAdminName, Role: domain.RoleAdmin},
		{Email: cfg.SeedUserEmail, FirstName: cfg.SeedUserName, Role: domain.RoleUser},
	}); err != nil {
		return nil, err
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.Register("kafka", a.producer.Ping)
	}

	validate := func(tok string) (*middleware.Claims, error) {
		claims, err := tokens.VerifyAccessToken(tok)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
	}

	router := handlerhttp.NewRouter(handlerhttp.RouterConfig{
		AuthHandler:   handlerhttp.NewAuthHandler(authSvc, inviteSvc, a.deviceSvc, logger),
		DeviceHandler: handlerhttp.NewDeviceHandler(a.deviceSvc, logger),
		AdminHandler:  handlerhttp.NewAdminHandler(inviteSvc, logger),
		Health:        healthHandler,
		Validate:      validate,
		Logger:        logger,
		ServiceName:   serviceName,
		CORSOrigins:   cfg.CORSAllowedOrigins,
	})

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return a, nil
}

// buildLimiter selects the rate limiter backend. With Redis configured the
// failure budget is shared across replicas; without it the limiter lives in
// process memory.
func (a *App) buildLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if !a.cfg.RedisEnabled() {
		a.logger.Info("using in-memory login rate limiter")
		return ratelimit.NewMemoryLimiter(a.cfg.RateLimitMaxFailures, a.cfg.RateLimitWindow), nil
	}

	client, err := database.NewRedisClient(ctx, a.cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("using redis login rate limiter")
	return ratelimit.NewRedisLimiter(client, a.cfg.RateLimitMaxFailures, a.cfg.RateLimitWindow), nil
}

// Run starts the HTTP server and the device expiry sweeper, blocking until
// the context is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go a.sweepLoop(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.DeviceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.deviceSvc.SweepExpired(ctx); err != nil {
				a.logger.ErrorContext(ctx, "device expiry sweep failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Shutdown drains in-flight requests and closes all connections.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.GracefulShutdown)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis client: %w", err))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	a.pool.Close()

	return errors.Join(errs...)
}
