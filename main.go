package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicsync/config"
	"civicsync/controllers"
	"civicsync/metrics"
	"civicsync/middlewares"
	"civicsync/routes"
	"civicsync/services"
	"civicsync/store"
	authUtils "civicsync/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()

	redisClient, err := config.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	issueStore := store.NewMongoIssueStore(db)
	userStore := store.NewMongoUserStore(db)
	if err := issueStore.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := userStore.EnsureIndexes(ctx); err != nil {
		return err
	}

	tokens, err := authUtils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	issueService, err := services.NewIssueService(issueStore, userStore,
		services.WithMetrics(m), services.WithLogger(logger))
	if err != nil {
		return err
	}
	authService, err := services.NewAuthService(userStore, tokens, store.NewRedisRevocationStore(redisClient),
		services.WithLogger(logger))
	if err != nil {
		return err
	}

	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(logger), cors.New(corsConfig(cfg)))
	routes.Register(r, routes.Deps{
		Auth:         controllers.NewAuthController(authService, cfg, logger),
		Issues:       controllers.NewIssueController(issueService),
		Users:        controllers.NewUserController(issueService),
		RequireAuth:  middlewares.AuthMiddleware(authService, logger),
		OptionalAuth: middlewares.OptionalAuth(authService),
		IssueLimiter: middlewares.IssueRateLimiter(redisClient, cfg.IssueLimitPrefix, cfg.IssueDailyLimit, logger),
		Gatherer:     prometheus.DefaultGatherer,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func corsConfig(cfg *config.Config) cors.Config {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{middlewares.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}
