package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pharmacy-service/internal/service"
	"pharmacy-service/pkg/response"
)

// CartRequest lists the product ids held in a client-side cart
type CartRequest struct {
	ProductIDs []uint `json:"product_ids" validate:"required"`
}

type CartHandler struct {
	cart *service.CartService
}

func NewCartHandler(cart *service.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

// Products resolves the cart ids to current product records
func (h *CartHandler) Products(c echo.Context) error {
	var req CartRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	products, err := h.cart.Products(c.Request().Context(), req.ProductIDs)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Cart products retrieved successfully", products)
}
