package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pharmacy-service/internal/repository"
	"pharmacy-service/internal/service"
	"pharmacy-service/pkg/query"
	"pharmacy-service/pkg/response"
)

type ProductHandler struct {
	products *service.ProductService
}

func NewProductHandler(products *service.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// ListProducts returns non-deleted products matching the query string
func (h *ProductHandler) ListProducts(c echo.Context) error {
	products, meta, err := h.products.List(c.Request().Context(), query.FromEcho(c, repository.ProductFilterKeys()...))
	if err != nil {
		return err
	}
	return response.Paginated(c, "Products retrieved successfully", products, meta)
}

// GetProduct retrieves a specific product by ID
func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	product, err := h.products.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Product retrieved successfully", product)
}

// CreateProduct adds a new product to the catalog
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req service.ProductInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	product, err := h.products.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, "Product created successfully", product)
}

// UpdateProduct applies a partial update
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.ProductPatch
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	product, err := h.products.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Product updated successfully", product)
}

// DeleteProduct soft-deletes a product
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.products.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Product deleted successfully", nil)
}
