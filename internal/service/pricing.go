package service

import (
	"github.com/shopspring/decimal"

	"pharmacy-service/internal/model"
)

var (
	freeDeliveryAbove = decimal.NewFromInt(1000)
	deliveryFee       = decimal.NewFromInt(50)
	hundred           = decimal.NewFromInt(100)
)

// Totals is the priced summary of an order
type Totals struct {
	Subtotal       float64
	DeliveryCharge float64
	GrandTotal     float64
}

// FinalPrice applies the discount to price, never going below zero
func FinalPrice(price, discount float64, discountType model.DiscountType) decimal.Decimal {
	p := decimal.NewFromFloat(price)
	d := decimal.NewFromFloat(discount)

	var final decimal.Decimal
	switch discountType {
	case model.DiscountFlat:
		final = p.Sub(d)
	default:
		final = p.Sub(p.Mul(d).Div(hundred))
	}

	if final.IsNegative() {
		return decimal.Zero
	}
	return final.Round(2)
}

// DeliveryCharge is free above the threshold and flat otherwise
func DeliveryCharge(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(freeDeliveryAbove) {
		return decimal.Zero
	}
	return deliveryFee
}

// PriceItems computes subtotal, delivery charge and grand total of line items
func PriceItems(items []model.OrderLineItem) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		line := FinalPrice(item.Price, item.Discount, item.DiscountType).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}
	subtotal = subtotal.Round(2)
	delivery := DeliveryCharge(subtotal)

	return Totals{
		Subtotal:       subtotal.InexactFloat64(),
		DeliveryCharge: delivery.InexactFloat64(),
		GrandTotal:     subtotal.Add(delivery).Round(2).InexactFloat64(),
	}
}
