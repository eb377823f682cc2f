package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
	"pharmacy-service/pkg/apperror"
	"pharmacy-service/pkg/logger"
	"pharmacy-service/pkg/query"
	"pharmacy-service/prometheus"
)

// ProductInput holds the fields of a new product
type ProductInput struct {
	Name                 string             `json:"name" validate:"required"`
	Description          string             `json:"description"`
	Category             string             `json:"category" validate:"required"`
	Dosage               string             `json:"dosage"`
	Price                float64            `json:"price" validate:"required,gt=0"`
	Discount             float64            `json:"discount" validate:"gte=0"`
	DiscountType         model.DiscountType `json:"discount_type" validate:"omitempty,oneof=PERCENTAGE FLAT"`
	Stock                int                `json:"stock" validate:"gte=0"`
	RequiresPrescription bool               `json:"requires_prescription"`
	Manufacturer         string             `json:"manufacturer"`
	ExpiryDate           *time.Time         `json:"expiry_date"`
}

// ProductPatch holds the fields of a partial product update. Nil fields are kept.
type ProductPatch struct {
	Name                 *string             `json:"name" validate:"omitempty,min=1"`
	Description          *string             `json:"description"`
	Category             *string             `json:"category" validate:"omitempty,min=1"`
	Dosage               *string             `json:"dosage"`
	Price                *float64            `json:"price" validate:"omitempty,gt=0"`
	Discount             *float64            `json:"discount" validate:"omitempty,gte=0"`
	DiscountType         *model.DiscountType `json:"discount_type" validate:"omitempty,oneof=PERCENTAGE FLAT"`
	Stock                *int                `json:"stock" validate:"omitempty,gte=0"`
	RequiresPrescription *bool               `json:"requires_prescription"`
	Manufacturer         *string             `json:"manufacturer"`
	ExpiryDate           *time.Time          `json:"expiry_date"`
}

type ProductService struct {
	products repository.ProductRepository
	log      *zap.Logger
}

func NewProductService(products repository.ProductRepository, log *zap.Logger) *ProductService {
	return &ProductService{products: products, log: log}
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	log := logger.FromStdContext(ctx, s.log)

	p := &model.Product{
		Name:                 in.Name,
		Description:          in.Description,
		Category:             in.Category,
		Dosage:               in.Dosage,
		Price:                in.Price,
		Discount:             in.Discount,
		DiscountType:         in.DiscountType,
		Stock:                in.Stock,
		RequiresPrescription: in.RequiresPrescription,
		Manufacturer:         in.Manufacturer,
		ExpiryDate:           in.ExpiryDate,
	}
	if p.DiscountType == "" {
		p.DiscountType = model.DiscountPercentage
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	prometheus.RecordProductOperation("create")
	log.Info("Product created", zap.Uint("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id uint) (*model.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Product not found")
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context, p query.Params) ([]model.Product, query.Meta, error) {
	products, total, err := s.products.List(ctx, p)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return products, query.NewMeta(p, total), nil
}

func (s *ProductService) Update(ctx context.Context, id uint, patch ProductPatch) (*model.Product, error) {
	log := logger.FromStdContext(ctx, s.log)

	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Product not found")
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Dosage != nil {
		p.Dosage = *patch.Dosage
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Discount != nil {
		p.Discount = *patch.Discount
	}
	if patch.DiscountType != nil {
		p.DiscountType = *patch.DiscountType
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.RequiresPrescription != nil {
		p.RequiresPrescription = *patch.RequiresPrescription
	}
	if patch.Manufacturer != nil {
		p.Manufacturer = *patch.Manufacturer
	}
	if patch.ExpiryDate != nil {
		p.ExpiryDate = patch.ExpiryDate
	}

	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}

	prometheus.RecordProductOperation("update")
	log.Info("Product updated", zap.Uint("product_id", p.ID))
	return p, nil
}

// Delete soft-deletes a product
func (s *ProductService) Delete(ctx context.Context, id uint) error {
	log := logger.FromStdContext(ctx, s.log)

	if err := s.products.SoftDelete(ctx, id); err != nil {
		return notFound(err, "Product not found")
	}

	prometheus.RecordProductOperation("delete")
	log.Info("Product deleted", zap.Uint("product_id", id))
	return nil
}

func validateProduct(p *model.Product) error {
	switch {
	case p.Price <= 0:
		return apperror.BadRequest("Price must be greater than 0")
	case p.Discount < 0:
		return apperror.BadRequest("Discount cannot be negative")
	case p.Stock < 0:
		return apperror.BadRequest("Stock cannot be negative")
	case p.DiscountType != model.DiscountPercentage && p.DiscountType != model.DiscountFlat:
		return apperror.BadRequest("Invalid discount type: %s", p.DiscountType)
	case p.DiscountType == model.DiscountPercentage && p.Discount > 100:
		return apperror.BadRequest("Percentage discount cannot exceed 100")
	}
	return nil
}
