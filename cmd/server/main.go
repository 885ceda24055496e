package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"arena-ace/internal/api"
	"arena-ace/internal/config"
	"arena-ace/internal/repo"
	"arena-ace/internal/service"
	"arena-ace/internal/service/advisory"
	"arena-ace/internal/service/outbox"
	"arena-ace/internal/storage"
	"arena-ace/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Config
	config.LoadConfig(configPath)
	cfg := config.GlobalConfig

	// 2. Init Logger
	logger.InitLogger(cfg.Server.Mode)
	defer logger.Sync()

	logger.Log.Info("Starting server...", zap.String("mode", cfg.Server.Mode))

	// 3. Init DB & Redis
	repo.InitDB()
	repo.InitRedis()

	// 4. Init Services
	uploader, err := storage.NewS3Uploader(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Fatal("failed to init object storage", zap.Error(err))
	}
	var generator advisory.TextGenerator
	if cfg.Advisory.Endpoint != "" {
		generator = advisory.NewHTTPGenerator(cfg.Advisory.Endpoint, cfg.Advisory.APIKey, cfg.Advisory.Model, cfg.Advisory.Timeout)
	} else {
		logger.Log.Warn("advisory endpoint not configured; follow-up drafts fall back to a fixed reply")
	}

	services := service.NewContainer(service.Deps{
		DB:        repo.DB,
		Redis:     repo.RDB,
		Uploader:  uploader,
		Generator: generator,
		Outbox: outbox.Options{
			Interval:    cfg.Outbox.Interval,
			BatchSize:   cfg.Outbox.BatchSize,
			MaxAttempts: cfg.Outbox.MaxAttempts,
			BaseBackoff: cfg.Outbox.BaseBackoff,
		},
	})
	if err := services.Start(ctx); err != nil {
		logger.Log.Fatal("failed to start services", zap.Error(err))
	}

	// 5. Init Router
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	binding.EnableDecoderDisallowUnknownFields = true
	r := gin.Default()
	api.RegisterRoutes(r, services)

	if len(cfg.Server.AllowedOrigins) == 0 {
		logger.Log.Warn("no allowed origins configured; CORS allows any origin without credentials")
	}
	c := cors.New(corsOptions(cfg.Server.AllowedOrigins))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Start Server
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Log.Fatal("Server stopped with error", zap.Error(err))
	}
}
