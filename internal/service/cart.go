package service

import (
	"context"

	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
)

// CartService resolves the products a client keeps in its cart
type CartService struct {
	products repository.ProductRepository
}

func NewCartService(products repository.ProductRepository) *CartService {
	return &CartService{products: products}
}

// Products returns the live products among ids. Unknown or deleted ids are dropped.
func (s *CartService) Products(ctx context.Context, ids []uint) ([]model.Product, error) {
	return s.products.FindByIDs(ctx, ids)
}
