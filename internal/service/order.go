package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
	"pharmacy-service/pkg/apperror"
	"pharmacy-service/pkg/logger"
	"pharmacy-service/pkg/query"
	"pharmacy-service/pkg/storage"
	"pharmacy-service/prometheus"
)

// OrderItemInput is one requested product and quantity
type OrderItemInput struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gt=0"`
}

// PrescriptionFile is an uploaded prescription document
type PrescriptionFile struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// CreateOrderInput carries everything needed to place an order
type CreateOrderInput struct {
	Products        []OrderItemInput
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string
	PaymentMethod   model.PaymentMethod
	Prescription    *PrescriptionFile
}

// OrderDetail is an order together with its payment record
type OrderDetail struct {
	*model.Order
	Payment *model.Payment `json:"payment,omitempty"`
}

// OrderService runs order placement, status changes and order queries
type OrderService struct {
	users    repository.UserRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	tx       repository.TxManager
	uploader storage.Uploader
	log      *zap.Logger
}

func NewOrderService(repos *repository.Repositories, uploader storage.Uploader, log *zap.Logger) *OrderService {
	return &OrderService{
		users:    repos.Users,
		products: repos.Products,
		orders:   repos.Orders,
		payments: repos.Payments,
		tx:       repos.Tx,
		uploader: uploader,
		log:      log,
	}
}

// Create validates stock and prescription rules, then writes the order, the
// stock decrements and a PENDING payment in one transaction.
func (s *OrderService) Create(ctx context.Context, userID uint, in CreateOrderInput) (*model.Order, error) {
	log := logger.FromStdContext(ctx, s.log)

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Unauthorized("You are not authorized")
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, apperror.Unauthorized("You are not authorized")
	}

	if in.PaymentMethod != model.PaymentCOD && in.PaymentMethod != model.PaymentOnline {
		return nil, apperror.BadRequest("Invalid payment method")
	}

	requested, ids, err := mergeItems(in.Products)
	if err != nil {
		return nil, err
	}

	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return nil, apperror.NotFound("Product not found: %s", strings.Join(missing, ", "))
	}

	items := make([]model.OrderLineItem, 0, len(ids))
	for _, id := range ids {
		p := byID[id]
		qty := requested[id]
		if qty > p.Stock {
			return nil, apperror.BadRequest("Insufficient stock for %s: requested %d, available %d", p.Name, qty, p.Stock)
		}
		items = append(items, model.OrderLineItem{
			ProductID:            p.ID,
			Name:                 p.Name,
			Price:                p.Price,
			Dosage:               p.Dosage,
			Discount:             p.Discount,
			DiscountType:         p.DiscountType,
			Quantity:             qty,
			RequiresPrescription: p.RequiresPrescription,
		})
	}

	order := &model.Order{
		OrderID:         NewOrderID(),
		CustomerID:      user.ID,
		Products:        items,
		CustomerName:    in.CustomerName,
		CustomerEmail:   in.CustomerEmail,
		CustomerPhone:   in.CustomerPhone,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		OrderStatus:     model.OrderPlaced,
		PaymentStatus:   model.PaymentPending,
		TransactionID:   NewTransactionID(),
	}

	if order.NeedsPrescription() && in.Prescription == nil {
		return nil, apperror.BadRequest("Prescription is required for one or more products in this order")
	}
	var prescriptionKey string
	if in.Prescription != nil {
		prescriptionKey = prescriptionKeyFor(order.OrderID, in.Prescription.Filename)
		url, err := s.uploader.Upload(ctx, prescriptionKey, in.Prescription.Content, in.Prescription.ContentType)
		if err != nil {
			log.Error("Failed to upload prescription", zap.String("order_id", order.OrderID), zap.Error(err))
			return nil, apperror.Internal(err, "Failed to upload prescription")
		}
		order.Prescription = url
	}

	totals := PriceItems(items)
	order.Subtotal = totals.Subtotal
	order.DeliveryCharge = totals.DeliveryCharge
	order.GrandTotal = totals.GrandTotal

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}
		for _, item := range items {
			if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return apperror.BadRequest("Insufficient stock for %s", item.Name)
				}
				return err
			}
		}
		return s.payments.Create(ctx, &model.Payment{
			OrderID:       order.ID,
			Amount:        order.GrandTotal,
			TransactionID: order.TransactionID,
			PaymentStatus: model.PaymentPending,
		})
	})
	if err != nil {
		log.Warn("Order creation rolled back", zap.String("order_id", order.OrderID), zap.Error(err))
		if prescriptionKey != "" {
			if delErr := s.uploader.Delete(context.WithoutCancel(ctx), prescriptionKey); delErr != nil {
				log.Error("Failed to remove orphaned prescription",
					zap.String("key", prescriptionKey), zap.Error(delErr))
			}
		}
		return nil, err
	}

	prometheus.RecordOrderCreated(string(order.PaymentMethod), order.GrandTotal)
	log.Info("Order placed",
		zap.String("order_id", order.OrderID),
		zap.Uint("customer_id", order.CustomerID),
		zap.Int("items", len(items)),
		zap.Float64("grand_total", order.GrandTotal))

	return order, nil
}

// mergeItems sums quantities per product and keeps first-seen order
func mergeItems(in []OrderItemInput) (map[uint]int, []uint, error) {
	if len(in) == 0 {
		return nil, nil, apperror.BadRequest("At least one product is required")
	}
	requested := make(map[uint]int, len(in))
	ids := make([]uint, 0, len(in))
	for _, item := range in {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, nil, apperror.BadRequest("Each product needs a product_id and a positive quantity")
		}
		if _, ok := requested[item.ProductID]; !ok {
			ids = append(ids, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}
	return requested, ids, nil
}

func prescriptionKeyFor(orderID, filename string) string {
	return "prescriptions/" + orderID + strings.ToLower(filepath.Ext(filename))
}

// UpdateStatus moves an order along the status table and applies the side
// effects of the target status.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, to model.OrderStatus) (*model.Order, error) {
	log := logger.FromStdContext(ctx, s.log)

	if !IsOrderStatus(to) {
		return nil, apperror.BadRequest("Invalid order status: %s", to)
	}

	var updated *model.Order
	var from model.OrderStatus
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "Order not found")
		}
		from = order.OrderStatus

		if from == to {
			return apperror.BadRequest("Order is already %s", to)
		}
		if !CanTransition(from, to) {
			return apperror.BadRequest("Cannot change order status from %s to %s", from, to)
		}

		payment, err := s.payments.FindByOrderID(ctx, order.ID)
		if err != nil {
			return notFound(err, "Payment record not found")
		}

		switch to {
		case model.OrderConfirmed:
			if order.NeedsPrescription() && order.Prescription == "" {
				return apperror.BadRequest("Cannot confirm an order that needs a prescription without one")
			}
		case model.OrderShipped:
			if order.PaymentMethod != model.PaymentCOD && payment.PaymentStatus != model.PaymentPaid {
				return apperror.BadRequest("Cannot ship an online order before payment is completed")
			}
		case model.OrderDelivered:
			if order.PaymentMethod == model.PaymentCOD {
				payment.PaymentStatus = model.PaymentPaid
				order.PaymentStatus = model.PaymentPaid
			}
		case model.OrderCancelled:
			for _, item := range order.Products {
				if err := s.products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			payment.PaymentStatus = model.PaymentCancelled
			order.PaymentStatus = model.PaymentCancelled
		}

		order.OrderStatus = to
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordOrderTransition(string(from), string(to))
	log.Info("Order status updated",
		zap.String("order_id", updated.OrderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	return updated, nil
}

// UpdatePaymentStatus records a manual payment outcome on an order
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id uint, to model.PaymentStatus) (*OrderDetail, error) {
	log := logger.FromStdContext(ctx, s.log)

	var detail *OrderDetail
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "Order not found")
		}
		if order.OrderStatus == model.OrderCancelled {
			return apperror.BadRequest("Cannot update payment of a cancelled order")
		}

		payment, err := s.payments.FindByOrderID(ctx, order.ID)
		if err != nil {
			return notFound(err, "Payment record not found")
		}
		if !canUpdatePayment(payment.PaymentStatus, to) {
			return apperror.BadRequest("Cannot change payment status from %s to %s", payment.PaymentStatus, to)
		}

		payment.PaymentStatus = to
		payment.PaymentGatewayData = map[string]interface{}{
			"source":     "manual",
			"status":     string(to),
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		}
		order.PaymentStatus = to

		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
		detail = &OrderDetail{Order: order, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordPaymentStatus(string(to))
	log.Info("Payment status updated",
		zap.String("order_id", detail.OrderID),
		zap.String("payment_status", string(to)))

	return detail, nil
}

// ListMine returns the caller's orders, newest first
func (s *OrderService) ListMine(ctx context.Context, userID uint) ([]model.Order, error) {
	return s.orders.ListByCustomer(ctx, userID)
}

// GetMine returns one of the caller's orders
func (s *OrderService) GetMine(ctx context.Context, userID, id uint) (*model.Order, error) {
	order, err := s.orders.FindByIDForCustomer(ctx, id, userID)
	if err != nil {
		return nil, notFound(err, "Order not found")
	}
	return order, nil
}

// List returns a filtered page of all orders
func (s *OrderService) List(ctx context.Context, p query.Params) ([]model.Order, query.Meta, error) {
	orders, total, err := s.orders.List(ctx, p)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return orders, query.NewMeta(p, total), nil
}

// Get returns any order with its payment record
func (s *OrderService) Get(ctx context.Context, id uint) (*OrderDetail, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Order not found")
	}
	payment, err := s.payments.FindByOrderID(ctx, order.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return &OrderDetail{Order: order, Payment: payment}, nil
}

// notFound converts a repository miss into a 404 and passes other errors through
func notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("%s", message)
	}
	return err
}
