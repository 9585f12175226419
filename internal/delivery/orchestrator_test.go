package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"skybite/internal/domain"
	"skybite/internal/events"
)

// Flight of roughly 1.1 km; at 100000 km/h the simulated flight lasts about
// 40ms, so a full lifecycle fits comfortably in a test.
var (
	testPickup  = domain.Location{Lat: 0, Lng: 0}
	testDropoff = domain.Location{Lat: 0, Lng: 0.01}
)

func fastConfig() Config {
	return Config{
		TickInterval:   5 * time.Millisecond,
		ArrivalGrace:   10 * time.Millisecond,
		ResponseWindow: 30 * time.Millisecond,
		MinBattery:     30,
	}
}

func seedFlight(store *memStore, orderID, droneID string) (*domain.Order, *domain.Drone) {
	now := time.Now().UTC()
	order := &domain.Order{
		ID:              orderID,
		CustomerID:      "cust-1",
		RestaurantID:    "rest-1",
		Pickup:          testPickup,
		Dropoff:         testDropoff,
		Status:          domain.OrderStatusAssigned,
		AssignedDroneID: &droneID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	drone := &domain.Drone{
		ID:              droneID,
		Status:          domain.DroneStatusBusy,
		BatteryLevel:    80,
		CurrentLocation: testPickup,
		HomeLocation:    testPickup,
		SpeedKmh:        100000,
		CurrentOrderID:  &orderID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	store.orders[orderID] = order
	store.drones[droneID] = drone
	return order, drone
}

func waitForStatus(t *testing.T, store *memStore, orderID string, want domain.OrderStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		order, err := store.GetOrder(context.Background(), orderID)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if order.Status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	order, _ := store.GetOrder(context.Background(), orderID)
	t.Fatalf("order never reached %s, stuck at %s", want, order.Status)
}

func waitForDroneRelease(t *testing.T, store *memStore, droneID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		drone, err := store.GetDrone(context.Background(), droneID)
		if err != nil {
			t.Fatalf("get drone: %v", err)
		}
		if drone.Status == domain.DroneStatusAvailable && drone.CurrentOrderID == nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("drone %s never released", droneID)
}

func TestFlightReachesCustomerWindow(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, fastConfig(), nil)
	defer orch.Close()
	seedFlight(store, "o1", "d1")

	order, err := orch.StartSimulation(context.Background(), "o1", "d1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if order.Status != domain.OrderStatusDelivering {
		t.Fatalf("expected delivering, got %s", order.Status)
	}
	if order.TimerPhase == nil || *order.TimerPhase != domain.TimerPhaseSimulation {
		t.Fatalf("expected persisted simulation phase")
	}
	if order.TimerDeadline == nil {
		t.Fatalf("expected persisted deadline")
	}

	waitForStatus(t, store, "o1", domain.OrderStatusWaitingForCustomer)
	got, _ := store.GetOrder(context.Background(), "o1")
	if got.DeliveryAttempts != 1 {
		t.Fatalf("expected one delivery attempt, got %d", got.DeliveryAttempts)
	}
	if got.ArrivedAt == nil || got.WaitingStartedAt == nil {
		t.Fatalf("expected arrival and waiting timestamps")
	}
	drone, _ := store.GetDrone(context.Background(), "d1")
	if drone.CurrentLocation != testDropoff {
		t.Fatalf("expected drone at dropoff, got %+v", drone.CurrentLocation)
	}
	if !store.hasEvent(events.EventLocationUpdate) {
		t.Fatalf("expected location updates during flight")
	}
}

func TestConfirmDeliveryReleasesDrone(t *testing.T) {
	store := newMemStore()
	cfg := fastConfig()
	cfg.ResponseWindow = 500 * time.Millisecond
	orch := NewOrchestrator(store, cfg, nil)
	defer orch.Close()
	seedFlight(store, "o1", "d1")

	if _, err := orch.StartSimulation(context.Background(), "o1", "d1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, store, "o1", domain.OrderStatusWaitingForCustomer)

	order, err := orch.ConfirmDelivery(context.Background(), "o1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", order.Status)
	}
	if order.AssignedDroneID != nil || order.TimerPhase != nil || order.TimerDeadline != nil {
		t.Fatalf("expected drone and timers cleared on completion")
	}
	drone, _ := store.GetDrone(context.Background(), "d1")
	if drone.Status != domain.DroneStatusAvailable || drone.CurrentOrderID != nil {
		t.Fatalf("expected drone released")
	}
	if drone.TotalFlights != 1 {
		t.Fatalf("expected flight counted, got %d", drone.TotalFlights)
	}

	// Confirming again is a no-op success.
	again, err := orch.ConfirmDelivery(context.Background(), "o1")
	if err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}
	if again.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected delivered on repeat confirm")
	}
}

func TestResponseTimeoutReturnsDrone(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, fastConfig(), nil)
	defer orch.Close()
	seedFlight(store, "o1", "d1")

	if _, err := orch.StartSimulation(context.Background(), "o1", "d1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, store, "o1", domain.OrderStatusReturned)

	order, _ := store.GetOrder(context.Background(), "o1")
	if order.DeliveryFailedAt == nil || order.ReturningAt == nil || order.ReturnedAt == nil {
		t.Fatalf("expected failure and return timestamps")
	}
	if order.AssignedDroneID != nil || order.TimerPhase != nil {
		t.Fatalf("expected drone and timers cleared")
	}
	waitForDroneRelease(t, store, "d1")
	drone, _ := store.GetDrone(context.Background(), "d1")
	if drone.CurrentLocation != drone.HomeLocation {
		t.Fatalf("expected drone back home")
	}
	if drone.TotalFlights != 1 {
		t.Fatalf("expected flight counted")
	}
}

func TestConfirmBeatsTimeout(t *testing.T) {
	store := newMemStore()
	cfg := fastConfig()
	cfg.ResponseWindow = 60 * time.Millisecond
	orch := NewOrchestrator(store, cfg, nil)
	defer orch.Close()
	seedFlight(store, "o1", "d1")

	if _, err := orch.StartSimulation(context.Background(), "o1", "d1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, store, "o1", domain.OrderStatusWaitingForCustomer)
	if _, err := orch.ConfirmDelivery(context.Background(), "o1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Past the original response deadline: a late timer must not fail the
	// delivered order.
	time.Sleep(2 * cfg.ResponseWindow)
	order, _ := store.GetOrder(context.Background(), "o1")
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("late timeout overrode confirmation, got %s", order.Status)
	}
}

func TestStopSimulationFreesDrone(t *testing.T) {
	store := newMemStore()
	cfg := fastConfig()
	cfg.TickInterval = 2 * time.Millisecond
	orch := NewOrchestrator(store, cfg, nil)
	defer orch.Close()
	seedFlight(store, "o1", "d1")

	if _, err := orch.StartSimulation(context.Background(), "o1", "d1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	drone, err := orch.StopSimulation(context.Background(), "d1")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if drone.Status != domain.DroneStatusAvailable || drone.CurrentOrderID != nil {
		t.Fatalf("expected drone freed")
	}
	order, _ := store.GetOrder(context.Background(), "o1")
	if order.TimerPhase != nil || order.TimerDeadline != nil {
		t.Fatalf("expected timers cleared")
	}
	if !store.hasEvent(events.EventEmergency) {
		t.Fatalf("expected emergency event")
	}

	// A second stop has nothing to act on.
	if _, err := orch.StopSimulation(context.Background(), "d1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on repeat stop, got %v", err)
	}
}

func TestCancelOrderReleasesDrone(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, fastConfig(), nil)
	defer orch.Close()
	seedFlight(store, "o1", "d1")

	if _, err := orch.StartSimulation(context.Background(), "o1", "d1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	order, err := orch.CancelOrder(context.Background(), "o1", "customer changed mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
	if order.CancelReason == nil || *order.CancelReason != "customer changed mind" {
		t.Fatalf("expected cancel reason recorded")
	}
	drone, _ := store.GetDrone(context.Background(), "d1")
	if drone.Status != domain.DroneStatusAvailable || drone.CurrentOrderID != nil {
		t.Fatalf("expected drone released")
	}

	// Idempotent on repeat.
	if _, err := orch.CancelOrder(context.Background(), "o1", "again"); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}

	// Cancelling a delivered order is a state conflict.
	seedFlight(store, "o2", "d2")
	store.orders["o2"].Status = domain.OrderStatusDelivered
	if _, err := orch.CancelOrder(context.Background(), "o2", ""); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestStartSimulationRejectsUnreservedDrone(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, fastConfig(), nil)
	defer orch.Close()
	seedFlight(store, "o1", "d1")

	if _, err := orch.StartSimulation(context.Background(), "o1", "other"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStartSimulationReplacesRunningFlight(t *testing.T) {
	store := newMemStore()
	cfg := fastConfig()
	cfg.TickInterval = 2 * time.Millisecond
	orch := NewOrchestrator(store, cfg, nil)
	defer orch.Close()
	seedFlight(store, "o1", "d1")

	if _, err := orch.StartSimulation(context.Background(), "o1", "d1"); err != nil {
		t.Fatalf("start first: %v", err)
	}

	// Operator re-reserves the same drone for another order without stopping
	// the first flight.
	now := time.Now().UTC()
	droneID := "d1"
	orderID := "o2"
	store.mu.Lock()
	store.orders["o2"] = &domain.Order{
		ID:              orderID,
		CustomerID:      "cust-2",
		RestaurantID:    "rest-1",
		Pickup:          testPickup,
		Dropoff:         testDropoff,
		Status:          domain.OrderStatusAssigned,
		AssignedDroneID: &droneID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	store.drones["d1"].CurrentOrderID = &orderID
	store.mu.Unlock()

	if _, err := orch.StartSimulation(context.Background(), "o2", "d1"); err != nil {
		t.Fatalf("start second: %v", err)
	}
	orch.mu.Lock()
	current := orch.sims["d1"]
	orch.mu.Unlock()
	if current != "o2" {
		t.Fatalf("expected new flight to own the drone, got %s", current)
	}
	waitForStatus(t, store, "o2", domain.OrderStatusWaitingForCustomer)
}

func TestRecoverResolvesExpiredWindow(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, fastConfig(), nil)
	defer orch.Close()
	order, _ := seedFlight(store, "o1", "d1")

	past := time.Now().UTC().Add(-time.Second)
	phase := domain.TimerPhaseResponseWindow
	order.Status = domain.OrderStatusWaitingForCustomer
	order.DeliveryAttempts = 1
	order.TimerPhase = &phase
	order.TimerDeadline = &past

	if err := orch.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	waitForStatus(t, store, "o1", domain.OrderStatusReturned)
	waitForDroneRelease(t, store, "d1")
}

func TestRecoverRearmsPendingTimer(t *testing.T) {
	store := newMemStore()
	orch := NewOrchestrator(store, fastConfig(), nil)
	defer orch.Close()
	order, _ := seedFlight(store, "o1", "d1")

	soon := time.Now().UTC().Add(20 * time.Millisecond)
	phase := domain.TimerPhaseArrivalGrace
	order.Status = domain.OrderStatusArrived
	order.TimerPhase = &phase
	order.TimerDeadline = &soon

	if err := orch.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	waitForStatus(t, store, "o1", domain.OrderStatusWaitingForCustomer)
}
