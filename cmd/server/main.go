package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/goexpense/internal/adapter/http"
	"github.com/iho/goexpense/internal/adapter/http/handler"
	"github.com/iho/goexpense/internal/adapter/http/middleware"
	"github.com/iho/goexpense/internal/adapter/repository/resilient"
	"github.com/iho/goexpense/internal/infrastructure/auth"
	"github.com/iho/goexpense/internal/infrastructure/clock"
	"github.com/iho/goexpense/internal/infrastructure/config"
	"github.com/iho/goexpense/internal/infrastructure/eventpublisher"
	"github.com/iho/goexpense/internal/infrastructure/idgen"
	"github.com/iho/goexpense/internal/infrastructure/logger"
	"github.com/iho/goexpense/internal/infrastructure/metrics"
	"github.com/iho/goexpense/internal/infrastructure/storage"
	"github.com/iho/goexpense/internal/usecase"
)

const (
	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 10 * time.Minute
	sessionGaugeInterval   = 15 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	log.Logger = logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, l zerolog.Logger) error {
	m := metrics.New()
	ids := idgen.NewULIDGenerator()

	ledgerClock, err := clock.New(cfg.LedgerTimezone)
	if err != nil {
		return err
	}

	policy, err := usecase.ParseRefreshPolicy(cfg.RefreshPolicy)
	if err != nil {
		return err
	}

	// Storage
	backends, err := storage.Open(ctx, cfg, ids, l)
	if err != nil {
		return err
	}
	defer backends.Close()

	retryCfg := resilient.DefaultConfig()
	retryCfg.Timeout = cfg.PersistenceTimeout
	retryCfg.MaxRetries = cfg.PersistenceMaxRetries
	records := resilient.New(backends.Records, ids, retryCfg,
		resilient.WithObserver(m),
		resilient.WithLogger(l),
	)

	// Events
	publisher, closePublisher, pingers, err := newPublisher(cfg, l)
	if err != nil {
		return err
	}
	defer closePublisher()

	dispatcher := eventpublisher.NewDispatcher(eventpublisher.Config{
		Publisher: publisher,
		IDGen:     ids,
		Observer:  m,
		Logger:    l,
	})

	// Use cases
	sessions := usecase.NewSessionManager(
		func() *usecase.LedgerStore {
			return usecase.NewLedgerStore(records, ledgerClock, policy, dispatcher, m, l)
		},
		func() usecase.IdentityProvider { return auth.NewIdentityFeed() },
		l,
	)
	users := usecase.NewUserUseCase(backends.Users, ids, ledgerClock, backends.Cache, l)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

	// HTTP
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithObserver(m)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AuthHandler:      handler.NewAuthHandler(users, jwtManager, sessions, backends.Blocklist, m, l),
		RecordHandler:    handler.NewRecordHandler(sessions, l),
		HealthHandler:    handler.NewHealthHandler(healthPingers(backends.Pingers, pingers...)...),
		Authenticator:    middleware.NewAuthenticator(jwtManager, backends.Blocklist, sessions, l),
		IdempotencyStore: backends.Idempotency,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      limiter,
		MetricsHandler:   promhttp.Handler(),
		Logger:           l,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := dispatcher.Start(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		l.Info().Str("port", cfg.HTTPPort).Str("storage", cfg.StorageBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		every(gctx, limiterCleanupInterval, func() {
			if n := limiter.CleanupLimiters(limiterMaxIdle); n > 0 {
				l.Debug().Int("removed", n).Msg("removed idle rate limiters")
			}
		})
		return nil
	})

	g.Go(func() error {
		every(gctx, sessionGaugeInterval, func() {
			m.SetActiveSessions(sessions.Len())
		})
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if closeErr := sessions.CloseAll(shutdownCtx); closeErr != nil {
			l.Warn().Err(closeErr).Msg("failed to close sessions")
		}
		return err
	})

	return g.Wait()
}

// newPublisher returns the AMQP publisher when AMQP_URL is set and a log
// publisher otherwise, with its close func and readiness checks.
func newPublisher(cfg *config.Config, l zerolog.Logger) (eventpublisher.Publisher, func(), []handler.Pinger, error) {
	if cfg.AMQPURL == "" {
		return eventpublisher.NewLogPublisher(l), func() {}, nil, nil
	}

	pub, err := eventpublisher.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to amqp: %w", err)
	}
	l.Info().Str("exchange", cfg.AMQPExchange).Msg("connected to amqp")

	closeFn := func() {
		if err := pub.Close(); err != nil {
			l.Warn().Err(err).Msg("failed to close amqp publisher")
		}
	}
	return pub, closeFn, []handler.Pinger{pub}, nil
}

func healthPingers(deps []storage.Pinger, extra ...handler.Pinger) []handler.Pinger {
	out := make([]handler.Pinger, 0, len(deps)+len(extra))
	for _, d := range deps {
		out = append(out, d)
	}
	return append(out, extra...)
}

// every calls fn on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
