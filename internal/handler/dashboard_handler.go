package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pharmacy-service/internal/service"
	"pharmacy-service/pkg/response"
)

type DashboardHandler struct {
	dashboard *service.DashboardService
}

func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func (h *DashboardHandler) Stats(c echo.Context) error {
	stats, err := h.dashboard.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Dashboard stats retrieved successfully", stats)
}

// Revenue reports PAID revenue for the last ?months months
func (h *DashboardHandler) Revenue(c echo.Context) error {
	report, err := h.dashboard.Revenue(c.Request().Context(), queryInt(c, "months"))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Revenue retrieved successfully", report)
}

func (h *DashboardHandler) RecentOrders(c echo.Context) error {
	orders, err := h.dashboard.RecentOrders(c.Request().Context(), queryInt(c, "limit"))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Recent orders retrieved successfully", orders)
}

func (h *DashboardHandler) LowStock(c echo.Context) error {
	products, err := h.dashboard.LowStock(c.Request().Context(), queryInt(c, "threshold"))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Low stock products retrieved successfully", products)
}

func (h *DashboardHandler) Expiring(c echo.Context) error {
	products, err := h.dashboard.Expiring(c.Request().Context(), queryInt(c, "days"))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Expiring products retrieved successfully", products)
}
