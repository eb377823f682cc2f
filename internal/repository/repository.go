package repository

import (
	"context"
	"errors"
	"time"

	"pharmacy-service/internal/model"
	"pharmacy-service/pkg/query"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique column already holds the value
	ErrDuplicate = errors.New("duplicate record")
	// ErrInsufficientStock is returned when a conditional stock decrement matches no row
	ErrInsufficientStock = errors.New("insufficient stock")
)

// MonthlyRevenue is the PAID payment total of one calendar month (YYYY-MM)
type MonthlyRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Orders  int64   `json:"orders"`
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	// FindByEmail only considers users that are not deleted
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u *model.User) error
	List(ctx context.Context, p query.Params) ([]model.User, int64, error)
	CountByRole(ctx context.Context, role model.Role) (int64, error)
}

// ProductRepository reads and writes catalog items. Lookups skip soft-deleted rows.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	SoftDelete(ctx context.Context, id uint) error
	List(ctx context.Context, p query.Params) ([]model.Product, int64, error)
	// DecrementStock removes qty only when at least qty is on hand
	DecrementStock(ctx context.Context, id uint, qty int) error
	IncrementStock(ctx context.Context, id uint, qty int) error
	Count(ctx context.Context) (int64, error)
	// LowStock lists products with stock below threshold, lowest first. limit <= 0 means all.
	LowStock(ctx context.Context, threshold, limit int) ([]model.Product, error)
	// Expiring lists products expiring between now and before, soonest first. limit <= 0 means all.
	Expiring(ctx context.Context, now, before time.Time, limit int) ([]model.Product, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	// FindByIDForUpdate locks the order row until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Order, error)
	FindByIDForCustomer(ctx context.Context, id, customerID uint) (*model.Order, error)
	ListByCustomer(ctx context.Context, customerID uint) ([]model.Order, error)
	List(ctx context.Context, p query.Params) ([]model.Order, int64, error)
	Update(ctx context.Context, o *model.Order) error
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[model.OrderStatus]int64, error)
	Recent(ctx context.Context, limit int) ([]model.Order, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	FindByOrderID(ctx context.Context, orderID uint) (*model.Payment, error)
	Update(ctx context.Context, p *model.Payment) error
	SumPaid(ctx context.Context) (float64, error)
	MonthlyPaid(ctx context.Context, since time.Time) ([]MonthlyRevenue, error)
}

// TxManager runs fn inside one transaction. Repository calls made with the
// ctx handed to fn join that transaction. Any error from fn rolls back and is
// returned unchanged.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories bundles one backend's repositories
type Repositories struct {
	Users    UserRepository
	Products ProductRepository
	Orders   OrderRepository
	Payments PaymentRepository
	Tx       TxManager
}

var (
	userSchema = query.Schema{
		Searchable:  []string{"name", "email"},
		Filterable:  map[string]string{"role": "role", "status": "status", "is_blocked": "is_blocked"},
		Sortable:    map[string]string{"name": "name", "email": "email", "created_at": "created_at"},
		Selectable:  map[string]string{"name": "name", "email": "email", "role": "role", "status": "status", "is_blocked": "is_blocked", "created_at": "created_at"},
		DefaultSort: "created_at DESC",
	}

	productSchema = query.Schema{
		Searchable: []string{"name", "category", "manufacturer"},
		Filterable: map[string]string{
			"category":              "category",
			"requires_prescription": "requires_prescription",
			"in_stock":              "in_stock",
			"manufacturer":          "manufacturer",
		},
		Sortable: map[string]string{
			"name":        "name",
			"price":       "price",
			"stock":       "stock",
			"expiry_date": "expiry_date",
			"created_at":  "created_at",
		},
		Selectable: map[string]string{
			"name":                  "name",
			"description":           "description",
			"category":              "category",
			"dosage":                "dosage",
			"price":                 "price",
			"discount":              "discount",
			"discount_type":         "discount_type",
			"stock":                 "stock",
			"in_stock":              "in_stock",
			"requires_prescription": "requires_prescription",
			"manufacturer":          "manufacturer",
			"expiry_date":           "expiry_date",
			"created_at":            "created_at",
		},
		DefaultSort: "created_at DESC",
	}

	orderSchema = query.Schema{
		Searchable: []string{"order_id", "customer_name", "customer_email", "customer_phone"},
		Filterable: map[string]string{
			"order_status":   "order_status",
			"payment_status": "payment_status",
			"payment_method": "payment_method",
			"customer_id":    "customer_id",
		},
		Sortable: map[string]string{
			"created_at":   "created_at",
			"grand_total":  "grand_total",
			"order_status": "order_status",
			"order_id":     "order_id",
		},
		Selectable: map[string]string{
			"order_id":         "order_id",
			"customer_id":      "customer_id",
			"products":         "products",
			"customer_name":    "customer_name",
			"customer_email":   "customer_email",
			"customer_phone":   "customer_phone",
			"shipping_address": "shipping_address",
			"payment_method":   "payment_method",
			"prescription":     "prescription",
			"subtotal":         "subtotal",
			"delivery_charge":  "delivery_charge",
			"grand_total":      "grand_total",
			"transaction_id":   "transaction_id",
			"order_status":     "order_status",
			"payment_status":   "payment_status",
			"created_at":       "created_at",
		},
		DefaultSort: "created_at DESC",
	}
)

// OrderFilterKeys are the query-string keys accepted as order list filters
func OrderFilterKeys() []string { return keys(orderSchema.Filterable) }

// ProductFilterKeys are the query-string keys accepted as product list filters
func ProductFilterKeys() []string { return keys(productSchema.Filterable) }

// UserFilterKeys are the query-string keys accepted as user list filters
func UserFilterKeys() []string { return keys(userSchema.Filterable) }

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
