package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything health can ping, normally the refresh token store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store       Pinger
	environment string
	logger      *slog.Logger
}

func NewHealthHandler(store Pinger, environment string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, environment: environment, logger: logger.With("component", "health")}
}

func (h *HealthHandler) Health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("token store ping failed", "error", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":      status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": h.environment,
	})
}
