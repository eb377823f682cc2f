package service

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
	"pharmacy-service/pkg/query"
)

func TestDashboard(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	cod := f.place(t, model.PaymentCOD, OrderItemInput{ProductID: f.napa.ID, Quantity: 1})
	online := f.place(t, model.PaymentOnline, OrderItemInput{ProductID: f.napa.ID, Quantity: 2})
	_, err := f.svc.UpdatePaymentStatus(ctx, online.ID, model.PaymentPaid)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, cod.ID, model.OrderCancelled)
	require.NoError(t, err)

	dash := NewDashboardService(f.repos)

	stats, err := dash.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalCustomers)
	assert.Equal(t, int64(2), stats.TotalProducts)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, online.GrandTotal, stats.TotalRevenue)
	assert.Equal(t, int64(1), stats.OrdersByStatus[model.OrderPlaced])
	assert.Equal(t, int64(1), stats.OrdersByStatus[model.OrderCancelled])
	assert.Equal(t, int64(0), stats.OrdersByStatus[model.OrderShipped])

	revenue, err := dash.Revenue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, online.GrandTotal, revenue.TotalRevenue)
	require.Len(t, revenue.Monthly, 1)
	assert.Equal(t, time.Now().Format("2006-01"), revenue.Monthly[0].Month)

	recent, err := dash.RecentOrders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, online.ID, recent[0].ID)

	low, err := dash.LowStock(ctx, 6)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, f.amox.ID, low[0].ID)
}

func TestDashboardExpiring(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	ctx := context.Background()
	now := time.Now()
	in10 := now.AddDate(0, 0, 10)
	in60 := now.AddDate(0, 0, 60)
	past := now.AddDate(0, 0, -1)

	for _, p := range []*model.Product{
		{Name: "Soon", Price: 1, Stock: 20, ExpiryDate: &in10},
		{Name: "Later", Price: 1, Stock: 20, ExpiryDate: &in60},
		{Name: "Expired", Price: 1, Stock: 20, ExpiryDate: &past},
		{Name: "Undated", Price: 1, Stock: 20},
	} {
		require.NoError(t, repos.Products.Create(ctx, p))
	}

	dash := NewDashboardService(repos)
	expiring, err := dash.Expiring(ctx, 30)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "Soon", expiring[0].Name)

	expiring, err = dash.Expiring(ctx, 90)
	require.NoError(t, err)
	require.Len(t, expiring, 2)
	assert.Equal(t, "Later", expiring[1].Name)

	monitor := NewInventoryMonitor(repos.Products, 10, 30*24*time.Hour, zap.NewNop())
	low, exp, err := monitor.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, low)
	assert.Equal(t, 1, exp)

	require.NoError(t, monitor.Start("@every 1h"))
	monitor.Stop()
	assert.Error(t, NewInventoryMonitor(repos.Products, 10, time.Hour, zap.NewNop()).Start("not a spec"))
}

type slowProducts struct {
	repository.ProductRepository
	checked atomic.Bool
}

func (p *slowProducts) Expiring(ctx context.Context, from, to time.Time, limit int) ([]model.Product, error) {
	time.Sleep(50 * time.Millisecond)
	defer p.checked.Store(true)
	return p.ProductRepository.Expiring(ctx, from, to, limit)
}

func TestInventoryMonitor_StopWaitsForInitialCheck(t *testing.T) {
	products := &slowProducts{ProductRepository: repository.NewMemoryRepositories().Products}
	monitor := NewInventoryMonitor(products, 10, time.Hour, zap.NewNop())

	require.NoError(t, monitor.Start("@every 1h"))
	monitor.Stop()
	assert.True(t, products.checked.Load())
}

func TestProductService(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	svc := NewProductService(repos.Products, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, ProductInput{Name: "Bad", Category: "Pain", Price: 10, Discount: 120})
	assertStatus(t, err, http.StatusBadRequest)

	p, err := svc.Create(ctx, ProductInput{Name: "Napa", Category: "Pain", Price: 10, Stock: 0})
	require.NoError(t, err)
	assert.Equal(t, model.DiscountPercentage, p.DiscountType)
	assert.False(t, p.InStock)

	stock := 12
	flat := model.DiscountFlat
	discount := 120.0
	p, err = svc.Update(ctx, p.ID, ProductPatch{Stock: &stock, DiscountType: &flat, Discount: &discount})
	require.NoError(t, err)
	assert.True(t, p.InStock)
	assert.Equal(t, 12, p.Stock)
	assert.Equal(t, "0", FinalPrice(p.Price, p.Discount, p.DiscountType).String())

	list, meta, err := svc.List(ctx, query.Params{SearchTerm: "nap", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(1), meta.Total)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assertStatus(t, err, http.StatusNotFound)
	assertStatus(t, svc.Delete(ctx, p.ID), http.StatusNotFound)

	cart := NewCartService(repos.Products)
	items, err := cart.Products(ctx, []uint{p.ID, 42})
	require.NoError(t, err)
	assert.Empty(t, items)
}
