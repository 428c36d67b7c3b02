package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/cmsadmin/pkg/admin"
	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/auth"
	"github.com/platinummonkey/cmsadmin/pkg/config"
	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/middleware"
	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/rbac"
	"github.com/platinummonkey/cmsadmin/pkg/storage"
	"github.com/platinummonkey/cmsadmin/pkg/storage/sqlstore"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvConfigFile), "Path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("cmsadmin: %v", err)
	}
}

func run(cfg *config.Config) error {
	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Infof("Storage initialized with %s driver", cfg.Storage.Driver)

	redisClient, err := newRedisClient(cfg.Redis)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	hasher, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionCodec([]byte(cfg.Auth.SessionSecret))
	if err != nil {
		return err
	}

	roleStore := rbac.NewStore(db)
	roles := rbac.NewManager(db, roleStore)
	seeded, err := roles.SeedSystemRoles(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed system roles: %w", err)
	}
	if seeded {
		logger.Info("Seeded system roles")
	}

	bootstrapper := auth.NewBootstrapper(db, hasher, cfg.Bootstrap, logger, metrics)
	if _, err := bootstrapper.EnsureSuperAdmin(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap super admin: %w", err)
	}

	limiter, err := newLoginLimiter(cfg.RateLimit, redisClient)
	if err != nil {
		return err
	}

	clientIP, err := httputil.NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	userStore := auth.NewUserStore(db)
	handlers := admin.NewHandlers(admin.Deps{
		Users:         auth.NewUserService(db, userStore, hasher, roles),
		Authenticator: auth.NewAuthenticator(userStore, hasher),
		Sessions:      sessions,
		Bootstrapper:  bootstrapper,
		Roles:         roles,
		Evaluator:     rbac.NewEvaluator(roleStore),
		Audit:         audit.NewLogger(db, logger, metrics),
		Limiter:       limiter,
		Metrics:       metrics,
		SecureCookies: cfg.Server.SecureCookies,
		ClientIP:      clientIP,
	})

	router := mux.NewRouter()
	router.Use(httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		observability.HTTPMetricsMiddleware(metrics),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
	))
	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(db, redisClient, version))
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	}
	handlers.RegisterRoutes(router)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(router, "cmsadmin"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register("store", func(context.Context) error {
		return db.Close()
	})
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	if providers != nil {
		shutdown.Register("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer observability.RecoverPanic(logger, "http server")
		logger.Infof("Starting cmsadmin %s on %s", version, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})
	return g.Wait()
}

// openStore opens the configured document store
func openStore(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	if cfg.Driver == "memory" {
		return storage.NewMemoryStore(), nil
	}
	store, err := sqlstore.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// newRedisClient returns nil when no Redis URL is configured
func newRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return redis.NewClient(opts), nil
}

func newLoginLimiter(cfg config.RateLimitConfig, redisClient *redis.Client) (middleware.LoginLimiter, error) {
	if cfg.Backend == "redis" {
		return middleware.NewRedisLoginLimiter(redisClient, cfg.LoginRateLimitConfig, "")
	}
	return middleware.NewMemoryLoginLimiter(cfg.LoginRateLimitConfig)
}
