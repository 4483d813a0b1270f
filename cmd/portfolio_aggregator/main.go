package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio_aggregator/internal/app"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/restapi"
	"portfolio_aggregator/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "config/config.yml"

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", defaultConfigPath), "path to the YAML configuration")
	flag.Parse()

	cfg, err := configloader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	logger.InitSlog(zapLogger)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to build application", zap.Error(err))
	}
	defer func() {
		if err := application.Close(); err != nil {
			zapLogger.Warn("Failed to release resources", zap.Error(err))
		}
	}()

	handler := restapi.NewPortfolioHandler(application.Portfolio, application.Networks, application.Wallets, application.Health, zapLogger)
	router := restapi.SetupRouter(handler, restapi.RouterOptions{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		MetricsHandler: application.MetricsHandler(),
	}, zapLogger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			zapLogger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
