package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hirelens/resume-video-service/internal/access"
	"github.com/hirelens/resume-video-service/internal/applications"
	"github.com/hirelens/resume-video-service/internal/bootstrap"
	"github.com/hirelens/resume-video-service/internal/cache"
	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/hosting"
	"github.com/hirelens/resume-video-service/internal/http/middleware"
	"github.com/hirelens/resume-video-service/internal/http/router"
	"github.com/hirelens/resume-video-service/internal/videos"
)

// @title Résumé Video Service API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load config
	cfg := config.MustLoad()
	logger := bootstrap.SetupLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// database setup
	store, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}
	defer closeStore()
	slog.Info("Storage ready", slog.String("backend", cfg.Storage))

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()
	slog.Info("Connected to Redis")

	gateway, err := hosting.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal("Failed to initialize hosting provider:", err)
	}
	slog.Info("Hosting provider ready", slog.String("provider", cfg.Hosting.Provider))

	accessService, err := access.NewService(store, cache.NewTokenCache(redisClient), access.OptionsFromConfig(cfg, logger))
	if err != nil {
		log.Fatal("Failed to initialize access service:", err)
	}
	videoService := videos.NewService(store, gateway, cfg.Media, cfg.Timeouts.Store, logger)

	server := &http.Server{
		Addr: cfg.HTTPServer.Address,
		Handler: router.New(router.Deps{
			JWTSecret:    cfg.JWTSecret,
			MaxFileSize:  cfg.Media.MaxFileSize,
			Users:        store,
			Videos:       videoService,
			Streams:      videoService,
			Access:       accessService,
			Applications: applications.NewService(store, logger),
			RateLimits:   middleware.NewRateLimitConfig(redisClient, cfg.RateLimits),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	operatorServer := &http.Server{
		Addr:              cfg.HTTPServer.OperatorAddress,
		Handler:           router.NewOperator(redisClient),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{server, operatorServer} {
		g.Go(func() error {
			slog.Info("server started", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(server.Shutdown(shutdownCtx), operatorServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", slog.String("error", err.Error()))
		return
	}

	slog.Info("Server stopped")
}
