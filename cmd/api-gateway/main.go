package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-presence-api/api/swagger"
	"github.com/noah-isme/sma-presence-api/internal/handler"
	"github.com/noah-isme/sma-presence-api/internal/migrations"
	"github.com/noah-isme/sma-presence-api/internal/repository"
	"github.com/noah-isme/sma-presence-api/internal/scheduler"
	"github.com/noah-isme/sma-presence-api/internal/service"
	"github.com/noah-isme/sma-presence-api/pkg/cache"
	"github.com/noah-isme/sma-presence-api/pkg/config"
	"github.com/noah-isme/sma-presence-api/pkg/database"
	"github.com/noah-isme/sma-presence-api/pkg/logger"
)

// @title SMA Presence API
// @version 1.0.0
// @description Typed data gateway over the school presence store
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.NewClient(cfg.Database, database.TxOptionsFromConfig(cfg.Transaction), logr)
	if err := db.Connect(ctx); err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Disconnect() //nolint:errcheck

	if cfg.Migrations.OnStart {
		if err := migrations.Up(db.DB().DB, logr); err != nil {
			logr.Fatal("migration failed", zap.Error(err))
		}
	}

	metricsSvc := service.NewMetricsService()
	observers := service.Observers{metricsSvc}

	var telemetry *service.TelemetryService
	if cfg.Telemetry.Enabled {
		telemetry = service.NewTelemetryService(service.TelemetryConfig{
			SampleRate: cfg.Telemetry.SampleRate,
			Workers:    cfg.Telemetry.Workers,
			BufferSize: cfg.Telemetry.BufferSize,
		}, logr)
		observers = append(observers, telemetry)
	}

	opts := repository.Options{
		Logger:       logr,
		Observer:     observers,
		CacheTTL:     cfg.QueryCache.DefaultTTL,
		QueryTimeout: cfg.Database.QueryTimeout,
	}
	if cfg.QueryCache.Enabled {
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("query cache disabled, redis unavailable", zap.Error(err))
		} else {
			resultCache := cache.NewResultCache(rdb, logr)
			defer resultCache.Close() //nolint:errcheck
			opts.Cache = service.NewInstrumentedCache(resultCache, metricsSvc)
		}
	}

	client := repository.NewClient(db, opts)

	if telemetry != nil {
		telemetry.Start(ctx, client.DatabaseMetrics)
		defer telemetry.Stop()
	}

	if cfg.Maintenance.Enabled {
		maintenance := scheduler.NewMaintenanceScheduler(scheduler.Purgers{
			VerificationTokens: client.VerificationTokens,
			Sessions:           client.Sessions,
			Metrics:            client.DatabaseMetrics,
		}, scheduler.MaintenanceConfig{
			Schedule:        cfg.Maintenance.Schedule,
			MetricRetention: cfg.Maintenance.MetricRetention,
		}, logr)
		if err := maintenance.Start(ctx); err != nil {
			logr.Fatal("maintenance scheduler failed", zap.Error(err))
		}
		defer maintenance.Stop()
	}

	validate := validator.New()
	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		Secret:           cfg.Gateway.JWTSecret,
		TokenTTL:         cfg.Gateway.TokenTTL,
		Issuer:           cfg.Gateway.Issuer,
		ClientID:         cfg.Gateway.ClientID,
		ClientSecretHash: cfg.Gateway.ClientSecretHash,
	})
	gatewaySvc := service.NewGatewayService(client, validate, logr)
	exportSvc := service.NewExportService(logr, nil, nil)

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxBodyBytes:   cfg.Gateway.MaxBodyBytes,
		EnableDocs:     cfg.Env != config.EnvProduction,
	}, handler.Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Gateway: handler.NewGatewayHandler(gatewaySvc, exportSvc),
		Metrics: handler.NewMetricsHandler(metricsSvc, client),
	}, authSvc, metricsSvc, logr)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
