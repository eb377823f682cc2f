package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"pharmacy-service/pkg/logger"
)

// HealthHandler reports liveness and, when a pinger is set, database reachability
type HealthHandler struct {
	serviceName string
	ping        func(ctx context.Context) error
}

func NewHealthHandler(serviceName string, ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, ping: ping}
}

func (h *HealthHandler) HealthCheck(c echo.Context) error {
	if h.ping != nil {
		if err := h.ping(c.Request().Context()); err != nil {
			logger.FromContext(c).Error("Health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status":  "unhealthy",
				"service": h.serviceName,
			})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": h.serviceName,
	})
}
