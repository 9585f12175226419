package transport

import (
	"time"

	"skybite/internal/delivery"
	"skybite/internal/domain"
)

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type OrderResponse struct {
	ID               string     `json:"id"`
	CustomerID       string     `json:"customer_id"`
	RestaurantID     string     `json:"restaurant_id"`
	Pickup           Location   `json:"pickup"`
	Dropoff          Location   `json:"dropoff"`
	Status           string     `json:"status"`
	AssignedDroneID  *string    `json:"assigned_drone_id,omitempty"`
	DeliveryAttempts int        `json:"delivery_attempts"`
	TimerPhase       *string    `json:"timer_phase,omitempty"`
	TimerDeadline    *time.Time `json:"timer_deadline,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ReadyAt          *time.Time `json:"ready_at,omitempty"`
	AssignedAt       *time.Time `json:"assigned_at,omitempty"`
	DeliveringAt     *time.Time `json:"delivering_at,omitempty"`
	ArrivedAt        *time.Time `json:"arrived_at,omitempty"`
	WaitingStartedAt *time.Time `json:"waiting_started_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	DeliveryFailedAt *time.Time `json:"delivery_failed_at,omitempty"`
	ReturningAt      *time.Time `json:"returning_at,omitempty"`
	ReturnedAt       *time.Time `json:"returned_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CancelReason     *string    `json:"cancel_reason,omitempty"`
}

type OrderViewResponse struct {
	Order           OrderResponse `json:"order"`
	CurrentLocation *Location     `json:"current_location,omitempty"`
	ETASeconds      *int64        `json:"eta_seconds,omitempty"`
}

type DroneResponse struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	BatteryLevel    int       `json:"battery_level"`
	CurrentLocation Location  `json:"current_location"`
	HomeLocation    Location  `json:"home_location"`
	SpeedKmh        float64   `json:"speed_kmh"`
	CurrentOrderID  *string   `json:"current_order_id,omitempty"`
	TotalFlights    int       `json:"total_flights"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func FromOrder(order *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:               order.ID,
		CustomerID:       order.CustomerID,
		RestaurantID:     order.RestaurantID,
		Pickup:           Location{Lat: order.Pickup.Lat, Lng: order.Pickup.Lng},
		Dropoff:          Location{Lat: order.Dropoff.Lat, Lng: order.Dropoff.Lng},
		Status:           string(order.Status),
		AssignedDroneID:  order.AssignedDroneID,
		DeliveryAttempts: order.DeliveryAttempts,
		TimerDeadline:    order.TimerDeadline,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
		ReadyAt:          order.ReadyAt,
		AssignedAt:       order.AssignedAt,
		DeliveringAt:     order.DeliveringAt,
		ArrivedAt:        order.ArrivedAt,
		WaitingStartedAt: order.WaitingStartedAt,
		DeliveredAt:      order.DeliveredAt,
		DeliveryFailedAt: order.DeliveryFailedAt,
		ReturningAt:      order.ReturningAt,
		ReturnedAt:       order.ReturnedAt,
		CancelledAt:      order.CancelledAt,
		CancelReason:     order.CancelReason,
	}
	if order.TimerPhase != nil {
		phase := string(*order.TimerPhase)
		resp.TimerPhase = &phase
	}
	return resp
}

func FromOrderView(view *delivery.OrderView) OrderViewResponse {
	resp := OrderViewResponse{
		Order:      FromOrder(view.Order),
		ETASeconds: view.ETASeconds,
	}
	if view.CurrentLocation != nil {
		resp.CurrentLocation = &Location{Lat: view.CurrentLocation.Lat, Lng: view.CurrentLocation.Lng}
	}
	return resp
}

func FromDrone(drone *domain.Drone) DroneResponse {
	return DroneResponse{
		ID:              drone.ID,
		Status:          string(drone.Status),
		BatteryLevel:    drone.BatteryLevel,
		CurrentLocation: Location{Lat: drone.CurrentLocation.Lat, Lng: drone.CurrentLocation.Lng},
		HomeLocation:    Location{Lat: drone.HomeLocation.Lat, Lng: drone.HomeLocation.Lng},
		SpeedKmh:        drone.SpeedKmh,
		CurrentOrderID:  drone.CurrentOrderID,
		TotalFlights:    drone.TotalFlights,
		CreatedAt:       drone.CreatedAt,
		UpdatedAt:       drone.UpdatedAt,
	}
}
