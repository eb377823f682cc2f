package model

import (
	"time"

	"gorm.io/gorm"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFlat       DiscountType = "FLAT"
)

// Product represents a catalog item
type Product struct {
	ID                   uint         `json:"id" gorm:"primarykey"`
	Name                 string       `json:"name" gorm:"type:varchar(255);not null;index"`
	Description          string       `json:"description" gorm:"type:text"`
	Category             string       `json:"category" gorm:"type:varchar(100);index"`
	Dosage               string       `json:"dosage" gorm:"type:varchar(100)"`
	Price                float64      `json:"price" gorm:"type:numeric(12,2);not null"`
	Discount             float64      `json:"discount" gorm:"type:numeric(12,2);default:0"`
	DiscountType         DiscountType `json:"discount_type" gorm:"type:varchar(20);default:'PERCENTAGE'"`
	Stock                int          `json:"stock" gorm:"default:0"`
	InStock              bool         `json:"in_stock" gorm:"default:false"`
	RequiresPrescription bool         `json:"requires_prescription" gorm:"default:false"`
	Manufacturer         string       `json:"manufacturer" gorm:"type:varchar(255)"`
	ExpiryDate           *time.Time   `json:"expiry_date,omitempty" gorm:"index"`
	IsDeleted            bool         `json:"is_deleted" gorm:"default:false;index"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// BeforeSave keeps the in_stock flag derived from stock
func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.SyncInStock()
	return nil
}

// SyncInStock recomputes InStock from Stock
func (p *Product) SyncInStock() {
	p.InStock = p.Stock > 0
}
