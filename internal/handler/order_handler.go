package handler

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"pharmacy-service/internal/middleware"
	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
	"pharmacy-service/internal/service"
	"pharmacy-service/pkg/apperror"
	"pharmacy-service/pkg/logger"
	"pharmacy-service/pkg/query"
	"pharmacy-service/pkg/response"
)

const maxPrescriptionMemory = 10 << 20

// CreateOrderRequest is the order form. Over multipart the products list
// arrives as a JSON string in the "products" field.
type CreateOrderRequest struct {
	Products        []service.OrderItemInput `json:"products" validate:"required,min=1,dive"`
	CustomerName    string                   `json:"customer_name" validate:"required"`
	CustomerEmail   string                   `json:"customer_email" validate:"required,email"`
	CustomerPhone   string                   `json:"customer_phone" validate:"required"`
	ShippingAddress string                   `json:"shipping_address" validate:"required"`
	PaymentMethod   model.PaymentMethod      `json:"payment_method" validate:"required,oneof=COD ONLINE"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" validate:"required"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus model.PaymentStatus `json:"payment_status" validate:"required"`
}

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder places an order for the authenticated customer
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	log := logger.FromContext(c)

	req, prescription, err := h.readCreateRequest(c)
	if err != nil {
		return err
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	in := service.CreateOrderInput{
		Products:        req.Products,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}

	if prescription != nil {
		file, err := prescription.Open()
		if err != nil {
			log.Error("Failed to open prescription upload", zap.Error(err))
			return apperror.BadRequest("Invalid prescription file")
		}
		defer file.Close()
		in.Prescription = &service.PrescriptionFile{
			Filename:    prescription.Filename,
			ContentType: prescription.Header.Get(echo.HeaderContentType),
			Content:     file,
		}
	}

	order, err := h.orders.Create(c.Request().Context(), middleware.UserID(c), in)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, "Order placed successfully", order)
}

func (h *OrderHandler) readCreateRequest(c echo.Context) (*CreateOrderRequest, *multipart.FileHeader, error) {
	req := &CreateOrderRequest{}

	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := c.Bind(req); err != nil {
			return nil, nil, apperror.BadRequest("Invalid request data")
		}
		return req, nil, nil
	}

	if err := c.Request().ParseMultipartForm(maxPrescriptionMemory); err != nil {
		return nil, nil, apperror.BadRequest("Invalid multipart form")
	}
	if raw := c.FormValue("products"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Products); err != nil {
			return nil, nil, apperror.BadRequest("products must be a JSON list of {product_id, quantity}")
		}
	}
	req.CustomerName = c.FormValue("customer_name")
	req.CustomerEmail = c.FormValue("customer_email")
	req.CustomerPhone = c.FormValue("customer_phone")
	req.ShippingAddress = c.FormValue("shipping_address")
	req.PaymentMethod = model.PaymentMethod(c.FormValue("payment_method"))

	fh, err := c.FormFile("prescription")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return nil, nil, apperror.BadRequest("Invalid prescription file")
	}
	return req, fh, nil
}

// MyOrders lists the caller's orders, newest first
func (h *OrderHandler) MyOrders(c echo.Context) error {
	orders, err := h.orders.ListMine(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Orders retrieved successfully", orders)
}

// MyOrder returns one of the caller's orders
func (h *OrderHandler) MyOrder(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.orders.GetMine(c.Request().Context(), middleware.UserID(c), id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Order retrieved successfully", order)
}

// ListOrders returns every order matching the query string
func (h *OrderHandler) ListOrders(c echo.Context) error {
	orders, meta, err := h.orders.List(c.Request().Context(), query.FromEcho(c, repository.OrderFilterKeys()...))
	if err != nil {
		return err
	}
	return response.Paginated(c, "Orders retrieved successfully", orders, meta)
}

// GetOrder returns any order with its payment
func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.orders.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Order retrieved successfully", order)
}

// UpdateStatus moves an order along its lifecycle
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateOrderStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	order, err := h.orders.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Order status updated successfully", order)
}

// UpdatePaymentStatus records a manual payment outcome
func (h *OrderHandler) UpdatePaymentStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req UpdatePaymentStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	detail, err := h.orders.UpdatePaymentStatus(c.Request().Context(), id, req.PaymentStatus)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, "Payment status updated successfully", detail)
}
