package delivery

import (
	"skybite/internal/domain"
	"skybite/internal/geo"
)

type OrderView struct {
	Order           *domain.Order
	CurrentLocation *domain.Location
	ETASeconds      *int64
}

// CurrentLocation reports where the package is right now, as far as the
// tracking view is concerned.
func CurrentLocation(order *domain.Order, drone *domain.Drone) *domain.Location {
	switch order.Status {
	case domain.OrderStatusReadyForAssignment, domain.OrderStatusAssigned:
		loc := order.Pickup
		return &loc
	case domain.OrderStatusDelivering, domain.OrderStatusReturning:
		if drone != nil {
			loc := drone.CurrentLocation
			return &loc
		}
	case domain.OrderStatusArrived, domain.OrderStatusWaitingForCustomer, domain.OrderStatusDelivered:
		loc := order.Dropoff
		return &loc
	}
	return nil
}

// ComputeETA estimates seconds until the drone reaches the dropoff, nil when
// no flight is pending or the speed is unusable.
func ComputeETA(order *domain.Order, drone *domain.Drone) *int64 {
	if domain.IsTerminal(order.Status) {
		return nil
	}
	var from domain.Location
	switch order.Status {
	case domain.OrderStatusReadyForAssignment, domain.OrderStatusAssigned:
		from = order.Pickup
	case domain.OrderStatusDelivering:
		if drone == nil {
			return nil
		}
		from = drone.CurrentLocation
	default:
		return nil
	}
	if drone == nil || drone.SpeedKmh <= 0 {
		return nil
	}
	dist := geo.DistanceKm(from, order.Dropoff)
	seconds := int64(dist / drone.SpeedKmh * 3600)
	if seconds < 0 {
		seconds = 0
	}
	return &seconds
}
