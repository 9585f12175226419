package domain

import (
	"fmt"
	"time"
)

// transitions is the authoritative table of legal lifecycle moves. Anything
// not listed here is rejected, except cancellation, which is legal from every
// non-terminal state.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusReadyForAssignment: {OrderStatusAssigned},
	OrderStatusAssigned:           {OrderStatusDelivering, OrderStatusReadyForAssignment},
	OrderStatusDelivering:         {OrderStatusArrived, OrderStatusDelivered},
	OrderStatusArrived:            {OrderStatusWaitingForCustomer, OrderStatusDelivered},
	OrderStatusWaitingForCustomer: {OrderStatusDelivered, OrderStatusDeliveryFailed},
	OrderStatusDeliveryFailed:     {OrderStatusReturning},
	OrderStatusReturning:          {OrderStatusReturned},
}

func CanTransition(from, to OrderStatus) bool {
	if to == OrderStatusCancelled {
		return !IsTerminal(from)
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the order to the target status and stamps the timestamp
// for the entered state. Timestamps are append-only: a stamp that is already
// set is never overwritten, so retried transitions cannot rewrite history.
func Transition(order *Order, to OrderStatus, now time.Time) error {
	if !CanTransition(order.Status, to) {
		return fmt.Errorf("transition %s -> %s: %w", order.Status, to, ErrStateConflict)
	}
	order.Status = to
	order.UpdatedAt = now
	stamp := func(field **time.Time) {
		if *field == nil {
			t := now
			*field = &t
		}
	}
	switch to {
	case OrderStatusReadyForAssignment:
		stamp(&order.ReadyAt)
	case OrderStatusAssigned:
		stamp(&order.AssignedAt)
	case OrderStatusDelivering:
		stamp(&order.DeliveringAt)
	case OrderStatusArrived:
		stamp(&order.ArrivedAt)
	case OrderStatusWaitingForCustomer:
		stamp(&order.WaitingStartedAt)
	case OrderStatusDelivered:
		stamp(&order.DeliveredAt)
	case OrderStatusDeliveryFailed:
		stamp(&order.DeliveryFailedAt)
	case OrderStatusReturning:
		stamp(&order.ReturningAt)
	case OrderStatusReturned:
		stamp(&order.ReturnedAt)
	case OrderStatusCancelled:
		stamp(&order.CancelledAt)
	}
	return nil
}
