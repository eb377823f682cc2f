package service

import (
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"pharmacy-service/internal/model"
)

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		name         string
		price        float64
		discount     float64
		discountType model.DiscountType
		want         string
	}{
		{"percentage", 100, 20, model.DiscountPercentage, "80"},
		{"flat", 100, 15, model.DiscountFlat, "85"},
		{"flat above price clamps", 100, 150, model.DiscountFlat, "0"},
		{"full percentage", 100, 100, model.DiscountPercentage, "0"},
		{"rounds to cents", 9.99, 33, model.DiscountPercentage, "6.69"},
		{"no discount", 42.5, 0, model.DiscountPercentage, "42.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FinalPrice(tt.price, tt.discount, tt.discountType).String())
		})
	}
}

func TestPriceItems_DeliveryThreshold(t *testing.T) {
	totals := PriceItems([]model.OrderLineItem{{Price: 600, Quantity: 2, DiscountType: model.DiscountPercentage}})
	assert.Equal(t, 1200.0, totals.Subtotal)
	assert.Equal(t, 0.0, totals.DeliveryCharge)
	assert.Equal(t, 1200.0, totals.GrandTotal)

	totals = PriceItems([]model.OrderLineItem{{Price: 250, Quantity: 2, DiscountType: model.DiscountPercentage}})
	assert.Equal(t, 500.0, totals.Subtotal)
	assert.Equal(t, 50.0, totals.DeliveryCharge)
	assert.Equal(t, 550.0, totals.GrandTotal)

	totals = PriceItems([]model.OrderLineItem{{Price: 1000, Quantity: 1, DiscountType: model.DiscountFlat}})
	assert.Equal(t, 50.0, totals.DeliveryCharge, "exactly 1000 is not above the threshold")
}

func TestPriceItems_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		items := make([]model.OrderLineItem, 1+rng.Intn(4))
		for j := range items {
			dt := model.DiscountPercentage
			discount := float64(rng.Intn(101))
			if rng.Intn(2) == 0 {
				dt = model.DiscountFlat
				discount = float64(rng.Intn(800))
			}
			items[j] = model.OrderLineItem{
				Price:        float64(rng.Intn(70000)) / 100,
				Discount:     discount,
				DiscountType: dt,
				Quantity:     1 + rng.Intn(5),
			}
			assert.False(t, FinalPrice(items[j].Price, items[j].Discount, items[j].DiscountType).IsNegative())
		}

		totals := PriceItems(items)
		assert.InDelta(t, totals.Subtotal+totals.DeliveryCharge, totals.GrandTotal, 0.0001)
		if totals.Subtotal > 1000 {
			assert.Equal(t, 0.0, totals.DeliveryCharge)
		} else {
			assert.Equal(t, 50.0, totals.DeliveryCharge)
		}
	}
}

func TestIDs(t *testing.T) {
	orderID := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	trxID := regexp.MustCompile(`^TRX-[A-Z0-9]{10}$`)
	for i := 0; i < 100; i++ {
		assert.Regexp(t, orderID, NewOrderID())
		assert.Regexp(t, trxID, NewTransactionID())
	}
}

func TestTransitionTableIsTotal(t *testing.T) {
	allowed := map[[2]model.OrderStatus]bool{
		{model.OrderPlaced, model.OrderConfirmed}:    true,
		{model.OrderPlaced, model.OrderCancelled}:    true,
		{model.OrderConfirmed, model.OrderShipped}:   true,
		{model.OrderConfirmed, model.OrderCancelled}: true,
		{model.OrderShipped, model.OrderDelivered}:   true,
		{model.OrderShipped, model.OrderCancelled}:   true,
	}
	statuses := append([]model.OrderStatus{"UNKNOWN"}, model.OrderStatuses...)
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[[2]model.OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, IsOrderStatus("UNKNOWN"))
	assert.True(t, IsOrderStatus(model.OrderShipped))
}
