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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/directoryhub/onboarding-api/internal/adapters/gormstore"
	gormdegraded "github.com/directoryhub/onboarding-api/internal/adapters/gormstore/degradedstore"
	"github.com/directoryhub/onboarding-api/internal/adapters/httpapi"
	kafkarouting "github.com/directoryhub/onboarding-api/internal/adapters/kafka/routing"
	memdegraded "github.com/directoryhub/onboarding-api/internal/adapters/memory/degradedstore"
	memdrafttracker "github.com/directoryhub/onboarding-api/internal/adapters/memory/drafttracker"
	memidempotency "github.com/directoryhub/onboarding-api/internal/adapters/memory/idempotency"
	memprofilestore "github.com/directoryhub/onboarding-api/internal/adapters/memory/profilestore"
	memrouting "github.com/directoryhub/onboarding-api/internal/adapters/memory/routing"
	postgres "github.com/directoryhub/onboarding-api/internal/adapters/postgres"
	pgidempotency "github.com/directoryhub/onboarding-api/internal/adapters/postgres/idempotency"
	pgprofilestore "github.com/directoryhub/onboarding-api/internal/adapters/postgres/profilestore"
	redisadapter "github.com/directoryhub/onboarding-api/internal/adapters/redis"
	redisdrafttracker "github.com/directoryhub/onboarding-api/internal/adapters/redis/drafttracker"
	"github.com/directoryhub/onboarding-api/internal/app/completion"
	"github.com/directoryhub/onboarding-api/internal/app/onboarding"
	"github.com/directoryhub/onboarding-api/internal/app/schema"
	"github.com/directoryhub/onboarding-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/directoryhub/onboarding-api/internal/platform/clock"
	"github.com/directoryhub/onboarding-api/internal/platform/config"
	"github.com/directoryhub/onboarding-api/internal/platform/logger"
	"github.com/directoryhub/onboarding-api/internal/platform/metrics"
	degradedport "github.com/directoryhub/onboarding-api/internal/ports/out/degradedstore"
	drafttrackerport "github.com/directoryhub/onboarding-api/internal/ports/out/drafttracker"
	idempotencyport "github.com/directoryhub/onboarding-api/internal/ports/out/idempotency"
	profilestoreport "github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
	routingport "github.com/directoryhub/onboarding-api/internal/ports/out/routing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Auth configuration:
	// - Production: require JWT_* env vars and enforce bearer auth
	// - Local dev: set AUTH_MODE=dev to bypass JWT verification and use X-Debug-Subject
	var authMW func(http.Handler) http.Handler
	authIssuer := "dev"
	switch cfg.AuthMode {
	case config.AuthModeDev:
		authMW = httpapi.NewDevAuthMiddleware(cfg.DevSubject, cfg.DevEmail)
		log.Warn("dev auth enabled; do not use in production")
	default:
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(cfg.JWT))
		authIssuer = cfg.JWT.Issuer
	}

	clk := platformclock.NewSystemClock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		store      profilestoreport.Store
		privileged profilestoreport.PrivilegedCommitter
		idemStore  idempotencyport.Store
	)
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{PingTimeout: 5 * time.Second})
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pg := pgprofilestore.NewStore(pool, clk, pgprofilestore.Options{PrimaryRole: cfg.PrimaryDBRole})
		store, privileged = pg, pg
		idemStore = pgidempotency.NewStore(pool, authIssuer, pgidempotency.Options{Retention: cfg.IdempotencyTTL, Clock: clk})
	default:
		mem := memprofilestore.NewStore(clk)
		store, privileged = mem, mem
		idemStore = memidempotency.NewStore(memidempotency.WithRetention(cfg.IdempotencyTTL, clk))
	}
	if !cfg.PrivilegedWrites {
		privileged = nil
	}

	var tracker drafttrackerport.Tracker
	switch cfg.TrackerBackend {
	case config.BackendRedis:
		rc, err := redisadapter.NewClient(ctx, cfg.RedisURL, redisadapter.Options{})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rc.Close() }()
		tracker = redisdrafttracker.NewTracker(rc, clk, cfg.DraftTTL)
	default:
		tracker = memdrafttracker.NewTracker(clk)
	}

	var degraded degradedport.Store
	switch cfg.DegradedBackend {
	case config.BackendSQLite, config.BackendPostgres:
		db, err := gormstore.Open(cfg.DegradedBackend, cfg.DegradedDSN, cfg.LogLevel == "debug", log)
		if err != nil {
			return fmt.Errorf("degraded store: %w", err)
		}
		gs, err := gormdegraded.NewStore(db)
		if err != nil {
			return fmt.Errorf("degraded store: %w", err)
		}
		degraded = gs
	default:
		degraded = memdegraded.NewStore()
	}

	var publisher routingport.Publisher
	switch cfg.RoutingBackend {
	case config.BackendKafka:
		w := kafkarouting.NewWriter(cfg.KafkaBrokers, cfg.RoutingTopic, log)
		defer func() { _ = w.Close() }()
		publisher = kafkarouting.NewPublisher(w, log)
	default:
		publisher = memrouting.NewPublisher()
	}

	coord := completion.NewCoordinator(store, clk, completion.Options{
		Privileged:      privileged,
		Degraded:        degraded,
		DegradedEnabled: cfg.DegradedMode,
		Logger:          log,
		Metrics:         m,
	})
	reconciler := completion.NewReconciler(store, degraded, clk, completion.ReconcilerOptions{
		Privileged:  privileged,
		MaxAttempts: cfg.ReconcileMaxAttempts,
		Logger:      log,
		Metrics:     m,
	})
	svc := onboarding.NewService(schema.NewRegistry(), store, tracker, coord, clk, onboarding.Options{
		Reconciler: reconciler,
		Publisher:  publisher,
		Logger:     log,
		Metrics:    m,
	})

	api := httpapi.NewServer(svc, idemStore, log)
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go reconciler.Run(ctx, cfg.ReconcileInterval)
	if p, ok := idemStore.(idempotencyport.Purger); ok && cfg.IdempotencyTTL > 0 {
		go purgeIdempotency(ctx, p, time.Hour, log)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageBackend),
			zap.String("tracker", cfg.TrackerBackend),
			zap.String("degraded", cfg.DegradedBackend),
			zap.String("routing", cfg.RoutingBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// purgeIdempotency drops expired replay records until ctx ends.
func purgeIdempotency(ctx context.Context, p idempotencyport.Purger, every time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.Purge(ctx)
			if err != nil {
				log.Warn("purge idempotency records", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("purged idempotency records", zap.Int64("count", n))
			}
		}
	}
}
