package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/inkproof/stencil-gateway/internal/admission"
	"github.com/inkproof/stencil-gateway/internal/api"
	"github.com/inkproof/stencil-gateway/internal/config"
	"github.com/inkproof/stencil-gateway/internal/generation"
	"github.com/inkproof/stencil-gateway/internal/identity"
	"github.com/inkproof/stencil-gateway/internal/kvstore"
	"github.com/inkproof/stencil-gateway/internal/quota"
	"github.com/inkproof/stencil-gateway/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("STENCIL_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// The upstream key can also arrive through the conventional env var.
	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Generation.APIKey == "" {
		zapLogger.Warn("no generation API key configured; upstream calls will fail")
	}

	store := kvstore.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		cancel()
		zapLogger.Fatal("Failed to reach counter store", zap.Error(err))
	}
	cancel()

	pipeline := admission.NewPipeline(
		identity.NewResolver(cfg.Quota),
		quota.NewHourlyLimiter(store, cfg.Quota.HourlyLimit, cfg.Quota.BucketWidth),
		quota.NewDeviceRegistry(store, cfg.Quota.DeviceCap, cfg.Quota.DeviceTTL),
		quota.NewTrialCounter(store, cfg.Quota),
		quota.NewLeadRecorder(store, cfg.Quota.LeadTTL, zapLogger),
		zapLogger,
	)
	generator := generation.NewClient(cfg.Generation, zapLogger)
	server := api.NewServer(zapLogger, pipeline, generator, store, cfg.Server)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
