package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-presence-api/internal/service"
	"github.com/noah-isme/sma-presence-api/pkg/response"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	db      pinger
	timeout time.Duration
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, db pinger) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, db: db, timeout: 2 * time.Second}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health godoc
// @Summary Liveness probe
// @Tags Observability
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /health [get]
func (h *MetricsHandler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok", "metrics": h.metrics.Snapshot()})
}

// Ready godoc
// @Summary Readiness probe
// @Description Pings the database
// @Tags Observability
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /ready [get]
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "ready"})
}
