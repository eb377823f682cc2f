package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
)

// DashboardStats is the admin overview
type DashboardStats struct {
	TotalCustomers int64                       `json:"totalCustomers"`
	TotalProducts  int64                       `json:"totalProducts"`
	TotalOrders    int64                       `json:"totalOrders"`
	TotalRevenue   float64                     `json:"totalRevenue"`
	OrdersByStatus map[model.OrderStatus]int64 `json:"ordersByStatus"`
}

// RevenueReport is total PAID revenue plus its monthly breakdown
type RevenueReport struct {
	TotalRevenue float64                     `json:"totalRevenue"`
	Monthly      []repository.MonthlyRevenue `json:"monthly"`
}

// DashboardService computes read-only admin rollups
type DashboardService struct {
	users    repository.UserRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	now      func() time.Time
}

func NewDashboardService(repos *repository.Repositories) *DashboardService {
	return &DashboardService{
		users:    repos.Users,
		products: repos.Products,
		orders:   repos.Orders,
		payments: repos.Payments,
		now:      time.Now,
	}
}

// Stats runs the independent counts concurrently
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.TotalCustomers, err = s.users.CountByRole(ctx, model.RoleCustomer)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalProducts, err = s.products.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalOrders, err = s.orders.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalRevenue, err = s.payments.SumPaid(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.OrdersByStatus, err = s.orders.CountByStatus(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Revenue reports PAID revenue for the current month and the months-1 before it
func (s *DashboardService) Revenue(ctx context.Context, months int) (*RevenueReport, error) {
	if months <= 0 {
		months = 6
	}
	now := s.now()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)

	var report RevenueReport
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		report.TotalRevenue, err = s.payments.SumPaid(ctx)
		return err
	})
	g.Go(func() (err error) {
		report.Monthly, err = s.payments.MonthlyPaid(ctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *DashboardService) RecentOrders(ctx context.Context, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.orders.Recent(ctx, limit)
}

func (s *DashboardService) LowStock(ctx context.Context, threshold int) ([]model.Product, error) {
	if threshold <= 0 {
		threshold = 10
	}
	return s.products.LowStock(ctx, threshold, 0)
}

// Expiring lists products whose expiry date falls within the next days
func (s *DashboardService) Expiring(ctx context.Context, days int) ([]model.Product, error) {
	if days <= 0 {
		days = 30
	}
	now := s.now()
	return s.products.Expiring(ctx, now, now.AddDate(0, 0, days), 0)
}
