package model

import "time"

type OrderStatus string

const (
	OrderPlaced    OrderStatus = "PLACED"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// OrderStatuses lists every order status
var OrderStatuses = []OrderStatus{OrderPlaced, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// OrderLineItem is the snapshot of a product taken when the order is placed
type OrderLineItem struct {
	ProductID            uint         `json:"product_id"`
	Name                 string       `json:"name"`
	Price                float64      `json:"price"`
	Dosage               string       `json:"dosage,omitempty"`
	Discount             float64      `json:"discount"`
	DiscountType         DiscountType `json:"discount_type"`
	Quantity             int          `json:"quantity"`
	RequiresPrescription bool         `json:"requires_prescription"`
}

// Order is a customer order with embedded line items
type Order struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	OrderID         string          `json:"order_id" gorm:"type:varchar(6);uniqueIndex;not null"`
	CustomerID      uint            `json:"customer_id" gorm:"index;not null"`
	Products        []OrderLineItem `json:"products" gorm:"type:jsonb;serializer:json;not null"`
	CustomerName    string          `json:"customer_name" gorm:"type:varchar(100)"`
	CustomerEmail   string          `json:"customer_email" gorm:"type:varchar(100)"`
	CustomerPhone   string          `json:"customer_phone" gorm:"type:varchar(30)"`
	ShippingAddress string          `json:"shipping_address" gorm:"type:text"`
	PaymentMethod   PaymentMethod   `json:"payment_method" gorm:"type:varchar(20);not null"`
	Prescription    string          `json:"prescription,omitempty" gorm:"type:text"`
	Subtotal        float64         `json:"subtotal" gorm:"type:numeric(12,2)"`
	DeliveryCharge  float64         `json:"delivery_charge" gorm:"type:numeric(12,2)"`
	GrandTotal      float64         `json:"grand_total" gorm:"type:numeric(12,2)"`
	TransactionID   string          `json:"transaction_id" gorm:"type:varchar(20);index"`
	OrderStatus     OrderStatus     `json:"order_status" gorm:"type:varchar(20);not null;default:'PLACED';index"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);not null;default:'PENDING'"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NeedsPrescription reports whether any line item is prescription-only
func (o *Order) NeedsPrescription() bool {
	for _, item := range o.Products {
		if item.RequiresPrescription {
			return true
		}
	}
	return false
}
