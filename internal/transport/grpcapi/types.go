package grpcapi

import "skybite/internal/transport"

type TokenRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type DroneIDRequest struct {
	DroneID string `json:"drone_id"`
}

type AssignOrderRequest struct {
	OrderID string `json:"order_id"`
	// DroneID empty means pick the nearest eligible drone.
	DroneID string `json:"drone_id"`
}

type ReassignOrderRequest struct {
	OrderID     string `json:"order_id"`
	FromDroneID string `json:"from_drone_id"`
	ToDroneID   string `json:"to_drone_id"`
	Reason      string `json:"reason"`
}

type DispatchRequest struct {
	OrderID string `json:"order_id"`
	DroneID string `json:"drone_id"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type RegisterDroneRequest struct {
	ID           string             `json:"id"`
	HomeLocation transport.Location `json:"home_location"`
	SpeedKmh     float64            `json:"speed_kmh"`
	BatteryLevel int                `json:"battery_level"`
}

type ListOrdersRequest struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
