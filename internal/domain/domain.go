package domain

import "time"

const (
	RoleAdmin      = "admin"
	RoleCustomer   = "customer"
	RoleRestaurant = "restaurant"
)

type OrderStatus string

const (
	OrderStatusReadyForAssignment OrderStatus = "ready_for_assignment"
	OrderStatusAssigned           OrderStatus = "assigned"
	OrderStatusDelivering         OrderStatus = "delivering"
	OrderStatusArrived            OrderStatus = "arrived"
	OrderStatusWaitingForCustomer OrderStatus = "waiting_for_customer"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusDeliveryFailed     OrderStatus = "delivery_failed"
	OrderStatusReturning          OrderStatus = "returning_to_restaurant"
	OrderStatusReturned           OrderStatus = "returned"
	OrderStatusCancelled          OrderStatus = "cancelled"
)

type DroneStatus string

const (
	DroneStatusAvailable   DroneStatus = "available"
	DroneStatusBusy        DroneStatus = "busy"
	DroneStatusReturning   DroneStatus = "returning"
	DroneStatusCharging    DroneStatus = "charging"
	DroneStatusMaintenance DroneStatus = "maintenance"
	DroneStatusOffline     DroneStatus = "offline"
)

// TimerPhase identifies which lifecycle timer is pending for an order. The
// phase and its deadline are persisted with the order so a restarted process
// can re-arm or resolve the timer instead of stranding the order.
type TimerPhase string

const (
	TimerPhaseSimulation     TimerPhase = "simulation"
	TimerPhaseArrivalGrace   TimerPhase = "arrival_grace"
	TimerPhaseResponseWindow TimerPhase = "response_window"
	TimerPhaseReturnFlight   TimerPhase = "return_flight"
)

type Location struct {
	Lat float64
	Lng float64
}

type Order struct {
	ID              string
	CustomerID      string
	RestaurantID    string
	Pickup          Location
	Dropoff         Location
	Status          OrderStatus
	AssignedDroneID *string

	// DeliveryAttempts counts started customer-response windows.
	DeliveryAttempts int

	TimerPhase    *TimerPhase
	TimerDeadline *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	ReadyAt          *time.Time
	AssignedAt       *time.Time
	DeliveringAt     *time.Time
	ArrivedAt        *time.Time
	WaitingStartedAt *time.Time
	DeliveredAt      *time.Time
	DeliveryFailedAt *time.Time
	ReturningAt      *time.Time
	ReturnedAt       *time.Time
	CancelledAt      *time.Time
	CancelReason     *string
}

type Drone struct {
	ID              string
	Status          DroneStatus
	BatteryLevel    int
	CurrentLocation Location
	HomeLocation    Location
	SpeedKmh        float64
	CurrentOrderID  *string
	TotalFlights    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func IsTerminal(status OrderStatus) bool {
	switch status {
	case OrderStatusDelivered, OrderStatusReturned, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ActiveFlight reports whether the status implies an assigned drone. The
// order's AssignedDroneID must be non-nil exactly while one of these holds.
func ActiveFlight(status OrderStatus) bool {
	switch status {
	case OrderStatusAssigned, OrderStatusDelivering, OrderStatusArrived,
		OrderStatusWaitingForCustomer, OrderStatusDeliveryFailed, OrderStatusReturning:
		return true
	default:
		return false
	}
}
