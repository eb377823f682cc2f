package model

import "time"

// Payment records the payment attached to exactly one order
type Payment struct {
	ID                 uint                   `json:"id" gorm:"primaryKey"`
	OrderID            uint                   `json:"order_id" gorm:"uniqueIndex;not null"`
	Amount             float64                `json:"amount" gorm:"type:numeric(12,2);not null"`
	TransactionID      string                 `json:"transaction_id" gorm:"type:varchar(20);uniqueIndex;not null"`
	PaymentStatus      PaymentStatus          `json:"payment_status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	PaymentGatewayData map[string]interface{} `json:"payment_gateway_data,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`

	Order *Order `json:"-" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}
