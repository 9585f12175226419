package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"skybite/internal/domain"
)

const (
	AggregateOrder = "order"
	AggregateDrone = "drone"
)

// Canonical event names. Exactly one shape per event; consumers must tolerate
// redelivery and reordering.
const (
	EventLocationUpdate     = "location-update"
	EventOrderStatusChanged = "order-status-changed"
	EventAssignmentSuccess  = "assignment-success"
	EventAssignmentFailed   = "assignment-failed"
	EventEmergency          = "emergency"
)

type Event struct {
	ID            string
	Type          string
	AggregateType string
	AggregateID   string
	Payload       json.RawMessage
	OccurredAt    time.Time
}

func NewEvent(eventType, aggregateType, aggregateID string, payload any, occurredAt time.Time) Event {
	data, _ := json.Marshal(payload)
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		OccurredAt:    occurredAt,
	}
}

// NewStatusEvent records an order lifecycle change.
func NewStatusEvent(order *domain.Order, occurredAt time.Time) Event {
	payload := map[string]any{
		"order_id":   order.ID,
		"drone_id":   order.AssignedDroneID,
		"new_status": order.Status,
		"timestamp":  occurredAt,
	}
	return NewEvent(EventOrderStatusChanged, AggregateOrder, order.ID, payload, occurredAt)
}

// NewLocationEvent records a simulated position update for a drone in flight.
func NewLocationEvent(orderID string, drone *domain.Drone, progress float64, occurredAt time.Time) Event {
	payload := map[string]any{
		"order_id":  orderID,
		"drone_id":  drone.ID,
		"lat":       drone.CurrentLocation.Lat,
		"lng":       drone.CurrentLocation.Lng,
		"progress":  progress,
		"timestamp": occurredAt,
	}
	return NewEvent(EventLocationUpdate, AggregateDrone, drone.ID, payload, occurredAt)
}

// NewAssignmentEvent records an assignment outcome. Reason carries the
// rejection cause or the reassignment audit note.
func NewAssignmentEvent(eventType, orderID, droneID, reason string, occurredAt time.Time) Event {
	payload := map[string]any{
		"order_id":  orderID,
		"drone_id":  droneID,
		"timestamp": occurredAt,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	return NewEvent(eventType, AggregateOrder, orderID, payload, occurredAt)
}

// NewEmergencyEvent records operator interventions: stopped simulations and
// drones pulled for maintenance mid-flight.
func NewEmergencyEvent(orderID, droneID, reason string, occurredAt time.Time) Event {
	payload := map[string]any{
		"order_id":  orderID,
		"drone_id":  droneID,
		"reason":    reason,
		"timestamp": occurredAt,
	}
	return NewEvent(EventEmergency, AggregateDrone, droneID, payload, occurredAt)
}
