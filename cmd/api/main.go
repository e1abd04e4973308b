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

	"bookshelf/internal/auth"
	"bookshelf/internal/config"
	"bookshelf/internal/docstore"
	"bookshelf/internal/httpx"
	"bookshelf/internal/library"
	"bookshelf/internal/platform/logging"
	"bookshelf/internal/user"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxBodyBytes = 1 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.JWTSecret == "" {
		logger.Fatal("missing required environment variable", zap.String("key", "JWT_SECRET"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// deps are the backends the router serves.
type deps struct {
	docs        docstore.Store
	users       user.Repository
	revocations auth.RevocationRepository
	ready       func(ctx context.Context) error
}

func openDeps(ctx context.Context, cfg config.Config, logger *zap.Logger) (deps, func(), error) {
	if cfg.DocStore == config.DocStoreMemory {
		logger.Warn("using in-memory stores; data is lost on exit")
		return deps{
			docs:        docstore.NewMemoryStore(),
			users:       user.NewMemoryRepo(),
			revocations: auth.NewMemoryRepo(),
			ready:       func(context.Context) error { return nil },
		}, func() {}, nil
	}

	pool, err := mustOpenDB(ctx, cfg.DBDSN)
	if err != nil {
		return deps{}, nil, err
	}
	logger.Info("database connection OK", zap.String("dsn", config.RedactDSN(cfg.DBDSN)))
	return deps{
		docs:        docstore.NewPostgresRepo(pool, cfg.DBTimeout, logger),
		users:       user.NewPostgresRepo(pool, cfg.DBTimeout),
		revocations: auth.NewPostgresRepo(pool, cfg.DBTimeout),
		ready:       pool.Ping,
	}, pool.Close, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	d, closeDeps, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDeps()

	userService := user.NewService(d.users)
	authService := auth.NewService(cfg.JWTSecret, cfg.TokenTTL, userService, d.revocations, logger)

	g, gctx := errgroup.WithContext(ctx)
	handler := newRouter(gctx, cfg, d, userService, authService, logger)

	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: /books/stream holds the response open.
		IdleTimeout: 60 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return authService.RunCleanup(gctx, time.Hour)
	})
	return g.Wait()
}

func newRouter(ctx context.Context, cfg config.Config, d deps, userService *user.Service, authService *auth.Service, logger *zap.Logger) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := d.ready(ctx); err != nil {
			httpx.JSONError(w, r, http.StatusServiceUnavailable, "NOT_READY", "db not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	requireAuth := httpx.AuthMiddleware(cfg.JWTSecret, authService)

	userHandler := user.NewHTTPHandler(userService)
	authHandler := auth.NewHTTPHandler(authService)
	router.HandleFunc("POST /users/register", userHandler.RegisterUser)
	router.HandleFunc("POST /users/login", authHandler.Login)
	router.Handle("POST /auth/logout", requireAuth(http.HandlerFunc(authHandler.Logout)))
	router.Handle("GET /me", requireAuth(http.HandlerFunc(userHandler.GetCurrentUser)))

	libraryHandler := library.NewHTTPHandler(library.NewService(d.docs, logger), logger)
	libraryHandler.Routes(router, requireAuth)

	rateLimiter := httpx.NewRateLimitMiddleware(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)

	return httpx.Chain(router,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(logger),
		httpx.RecoveryMiddleware(logger),
		httpx.SecurityHeadersMiddleware(os.Getenv("ENABLE_HSTS") == "true"),
		httpx.CORSMiddleware(cfg.CORSOrigins),
		httpx.RequestSizeLimitMiddleware(maxBodyBytes),
		rateLimiter.Middleware,
	)
}

func mustOpenDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database (%s): %w", config.RedactDSN(dsn), err)
	}
	return pool, nil
}
