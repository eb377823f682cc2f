package service

import "pharmacy-service/internal/model"

// allowedTransitions lists the successors each status may move to.
// Pairs missing from the table are rejected.
var allowedTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPlaced:    {model.OrderConfirmed, model.OrderCancelled},
	model.OrderConfirmed: {model.OrderShipped, model.OrderCancelled},
	model.OrderShipped:   {model.OrderDelivered, model.OrderCancelled},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOrderStatus reports whether s names a known order status
func IsOrderStatus(s model.OrderStatus) bool {
	for _, known := range model.OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// allowedPaymentUpdates lists the manual payment moves an admin may make
var allowedPaymentUpdates = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentPending: {model.PaymentPaid, model.PaymentFailed},
	model.PaymentFailed:  {model.PaymentPaid},
}

func canUpdatePayment(from, to model.PaymentStatus) bool {
	for _, next := range allowedPaymentUpdates[from] {
		if next == to {
			return true
		}
	}
	return false
}
