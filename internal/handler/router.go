package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-presence-api/internal/middleware"
	"github.com/noah-isme/sma-presence-api/internal/service"
	"github.com/noah-isme/sma-presence-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-presence-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-presence-api/pkg/middleware/requestid"
)

// RouterConfig carries the HTTP settings of the gateway.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	MaxBodyBytes   int64
	EnableDocs     bool
}

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Auth    *AuthHandler
	Gateway *GatewayHandler
	Metrics *MetricsHandler
}

// NewRouter mounts every route on a new gin engine.
func NewRouter(cfg RouterConfig, h Handlers, auth *service.AuthService, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	r.POST("/auth/token", h.Auth.Token)

	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix, middleware.JWT(auth))
	api.GET("/$models", h.Gateway.Models)
	api.POST("/$transaction", h.Gateway.Transaction)
	api.POST("/$export/:model", h.Gateway.Export)
	api.POST("/:model/:operation", h.Gateway.Execute)

	return r
}
