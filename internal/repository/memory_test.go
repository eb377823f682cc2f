package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-service/internal/model"
	"pharmacy-service/pkg/query"
)

func seedProduct(t *testing.T, repos *Repositories, p model.Product) *model.Product {
	t.Helper()
	require.NoError(t, repos.Products.Create(context.Background(), &p))
	return &p
}

func TestMemoryDecrementStock(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()
	p := seedProduct(t, repos, model.Product{Name: "Napa", Price: 10, Stock: 3})

	require.NoError(t, repos.Products.DecrementStock(ctx, p.ID, 3))
	got, err := repos.Products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.False(t, got.InStock)

	assert.ErrorIs(t, repos.Products.DecrementStock(ctx, p.ID, 1), ErrInsufficientStock)

	require.NoError(t, repos.Products.IncrementStock(ctx, p.ID, 2))
	got, _ = repos.Products.FindByID(ctx, p.ID)
	assert.Equal(t, 2, got.Stock)
	assert.True(t, got.InStock)
}

func TestMemoryTransactionRollback(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()
	p := seedProduct(t, repos, model.Product{Name: "Napa", Price: 10, Stock: 5})
	sentinel := errors.New("payment insert failed")

	err := repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := repos.Products.DecrementStock(ctx, p.ID, 2); err != nil {
			return err
		}
		if err := repos.Orders.Create(ctx, &model.Order{OrderID: "ABC123", CustomerID: 1}); err != nil {
			return err
		}
		return sentinel
	})
	assert.Same(t, sentinel, err)

	got, _ := repos.Products.FindByID(ctx, p.ID)
	assert.Equal(t, 5, got.Stock)
	count, _ := repos.Orders.Count(ctx)
	assert.Equal(t, int64(0), count)

	// ids are rolled back with the data
	o := &model.Order{OrderID: "XYZ789", CustomerID: 1}
	require.NoError(t, repos.Orders.Create(ctx, o))
	assert.Equal(t, uint(1), o.ID)
}

func TestMemoryUsers(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	u := &model.User{Name: "Karim", Email: "karim@example.com", Password: "secret12"}
	require.NoError(t, repos.Users.Create(ctx, u))
	assert.Equal(t, model.RoleCustomer, u.Role)
	assert.True(t, u.PasswordMatches("secret12"))

	assert.ErrorIs(t, repos.Users.Create(ctx, &model.User{Email: "karim@example.com", Password: "x"}), ErrDuplicate)

	exists, err := repos.Users.ExistsByEmail(ctx, "karim@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	u.IsDeleted = true
	require.NoError(t, repos.Users.Update(ctx, u))
	_, err = repos.Users.FindByEmail(ctx, "karim@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryOrderListQuery(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	orders := []model.Order{
		{OrderID: "AAA111", CustomerID: 1, CustomerName: "Alice", OrderStatus: model.OrderPlaced, GrandTotal: 100, CreatedAt: base},
		{OrderID: "BBB222", CustomerID: 2, CustomerName: "Bob", OrderStatus: model.OrderShipped, GrandTotal: 300, CreatedAt: base.Add(time.Hour)},
		{OrderID: "CCC333", CustomerID: 1, CustomerName: "Alicia", OrderStatus: model.OrderPlaced, GrandTotal: 200, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range orders {
		require.NoError(t, repos.Orders.Create(ctx, &orders[i]))
	}

	got, total, err := repos.Orders.List(ctx, query.Params{Page: 1, Limit: 10}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "CCC333", got[0].OrderID, "newest first by default")

	got, total, err = repos.Orders.List(ctx, query.Params{
		SearchTerm: "ali",
		Filters:    map[string]string{"order_status": "PLACED"},
		Sort:       []query.SortField{{Field: "grand_total"}},
		Page:       1,
		Limit:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, got, 1)
	assert.Equal(t, "AAA111", got[0].OrderID)

	mine, err := repos.Orders.ListByCustomer(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "CCC333", mine[0].OrderID)

	_, err = repos.Orders.FindByIDForCustomer(ctx, orders[1].ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	counts, err := repos.Orders.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.OrderPlaced])
	assert.Equal(t, int64(0), counts[model.OrderDelivered])
}

func TestMemoryProductQueries(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()
	now := time.Now()
	soon := now.Add(5 * 24 * time.Hour)
	later := now.Add(90 * 24 * time.Hour)

	a := seedProduct(t, repos, model.Product{Name: "Napa", Category: "Pain", Price: 10, Stock: 2, ExpiryDate: &soon})
	seedProduct(t, repos, model.Product{Name: "Seclo", Category: "Gastric", Price: 5, Stock: 50, ExpiryDate: &later})
	c := seedProduct(t, repos, model.Product{Name: "Ace", Category: "Pain", Price: 8, Stock: 0, RequiresPrescription: true})

	low, err := repos.Products.LowStock(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, c.ID, low[0].ID)

	expiring, err := repos.Products.Expiring(ctx, now, now.Add(30*24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, a.ID, expiring[0].ID)

	list, total, err := repos.Products.List(ctx, query.Params{
		Filters: map[string]string{"category": "Pain", "in_stock": "true"},
		Page:    1,
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Napa", list[0].Name)

	require.NoError(t, repos.Products.SoftDelete(ctx, a.ID))
	_, err = repos.Products.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	found, err := repos.Products.FindByIDs(ctx, []uint{a.ID, c.ID, 999})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, c.ID, found[0].ID)
}

func TestMemoryMonthlyPaid(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()
	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	payments := []model.Payment{
		{OrderID: 1, TransactionID: "TRX-1", Amount: 100, PaymentStatus: model.PaymentPaid, CreatedAt: jan},
		{OrderID: 2, TransactionID: "TRX-2", Amount: 50, PaymentStatus: model.PaymentPaid, CreatedAt: feb},
		{OrderID: 3, TransactionID: "TRX-3", Amount: 70, PaymentStatus: model.PaymentPaid, CreatedAt: feb},
		{OrderID: 4, TransactionID: "TRX-4", Amount: 999, PaymentStatus: model.PaymentPending, CreatedAt: feb},
	}
	for i := range payments {
		require.NoError(t, repos.Payments.Create(ctx, &payments[i]))
	}

	sum, err := repos.Payments.SumPaid(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 220, sum, 0.001)

	monthly, err := repos.Payments.MonthlyPaid(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []MonthlyRevenue{
		{Month: "2025-01", Revenue: 100, Orders: 1},
		{Month: "2025-02", Revenue: 120, Orders: 2},
	}, monthly)
}
