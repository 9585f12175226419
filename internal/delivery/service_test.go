package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"skybite/internal/domain"
	"skybite/internal/events"
)

func seedOrder(store *memStore, id string, status domain.OrderStatus) *domain.Order {
	now := time.Now().UTC()
	order := &domain.Order{
		ID:           id,
		CustomerID:   "cust-1",
		RestaurantID: "rest-1",
		Pickup:       domain.Location{Lat: 24.7136, Lng: 46.6753},
		Dropoff:      domain.Location{Lat: 24.7743, Lng: 46.7386},
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	store.orders[id] = order
	return order
}

func seedDrone(store *memStore, id string, battery int, loc domain.Location) *domain.Drone {
	now := time.Now().UTC()
	drone := &domain.Drone{
		ID:              id,
		Status:          domain.DroneStatusAvailable,
		BatteryLevel:    battery,
		CurrentLocation: loc,
		HomeLocation:    loc,
		SpeedKmh:        60,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	store.drones[id] = drone
	return drone
}

func TestFindNearest(t *testing.T) {
	pickup := domain.Location{Lat: 0, Lng: 0}
	near := &domain.Drone{ID: "near", Status: domain.DroneStatusAvailable, BatteryLevel: 80, CurrentLocation: domain.Location{Lat: 0, Lng: 0.1}}
	far := &domain.Drone{ID: "far", Status: domain.DroneStatusAvailable, BatteryLevel: 80, CurrentLocation: domain.Location{Lat: 0, Lng: 5}}
	lowBattery := &domain.Drone{ID: "low", Status: domain.DroneStatusAvailable, BatteryLevel: 10, CurrentLocation: pickup}
	busy := &domain.Drone{ID: "busy", Status: domain.DroneStatusBusy, BatteryLevel: 100, CurrentLocation: pickup}

	got, err := FindNearest(pickup, []*domain.Drone{far, lowBattery, busy, near}, 30)
	if err != nil {
		t.Fatalf("find nearest: %v", err)
	}
	if got.ID != "near" {
		t.Fatalf("expected near, got %s", got.ID)
	}

	_, err = FindNearest(pickup, []*domain.Drone{lowBattery, busy}, 30)
	if !errors.Is(err, domain.ErrNoDroneAvailable) {
		t.Fatalf("expected no drone available, got %v", err)
	}
}

func TestSubmitOrderRejectsBadCoordinates(t *testing.T) {
	svc := NewService(newMemStore(), Config{}, nil)
	_, err := svc.SubmitOrder(context.Background(), "rest-1", "cust-1",
		domain.Location{Lat: 91, Lng: 0}, domain.Location{Lat: 0, Lng: 0})
	if !errors.Is(err, domain.ErrInvalidCoordinates) {
		t.Fatalf("expected invalid coordinates, got %v", err)
	}
}

func TestSubmitOrderStartsReadyForAssignment(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	order, err := svc.SubmitOrder(context.Background(), "rest-1", "cust-1",
		domain.Location{Lat: 1, Lng: 1}, domain.Location{Lat: 2, Lng: 2})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if order.Status != domain.OrderStatusReadyForAssignment {
		t.Fatalf("expected ready_for_assignment, got %s", order.Status)
	}
	if order.ReadyAt == nil {
		t.Fatalf("expected ready timestamp")
	}
	if !store.hasEvent(events.EventOrderStatusChanged) {
		t.Fatalf("expected status event")
	}
}

func TestManualAssignPairsOrderAndDrone(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	seedOrder(store, "o1", domain.OrderStatusReadyForAssignment)
	seedDrone(store, "d1", 80, domain.Location{Lat: 24.7, Lng: 46.7})

	order, err := svc.ManualAssign(context.Background(), "o1", "d1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if order.Status != domain.OrderStatusAssigned {
		t.Fatalf("expected assigned, got %s", order.Status)
	}
	if order.AssignedDroneID == nil || *order.AssignedDroneID != "d1" {
		t.Fatalf("expected drone reserved on order")
	}
	if order.AssignedAt == nil {
		t.Fatalf("expected assigned timestamp")
	}
	drone, _ := store.GetDrone(context.Background(), "d1")
	if drone.Status != domain.DroneStatusBusy {
		t.Fatalf("expected busy drone, got %s", drone.Status)
	}
	if drone.CurrentOrderID == nil || *drone.CurrentOrderID != "o1" {
		t.Fatalf("expected order reserved on drone")
	}
	if !store.hasEvent(events.EventAssignmentSuccess) {
		t.Fatalf("expected assignment-success event")
	}
}

func TestManualAssignBatteryLow(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	seedOrder(store, "o1", domain.OrderStatusReadyForAssignment)
	seedDrone(store, "d1", 20, domain.Location{Lat: 24.7, Lng: 46.7})

	_, err := svc.ManualAssign(context.Background(), "o1", "d1")
	if !errors.Is(err, domain.ErrBatteryLow) {
		t.Fatalf("expected battery low, got %v", err)
	}
	order, _ := store.GetOrder(context.Background(), "o1")
	if order.Status != domain.OrderStatusReadyForAssignment || order.AssignedDroneID != nil {
		t.Fatalf("expected order untouched after rejection")
	}
	if !store.hasEvent(events.EventAssignmentFailed) {
		t.Fatalf("expected assignment-failed event")
	}
}

func TestManualAssignAlreadyAssigned(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	order := seedOrder(store, "o1", domain.OrderStatusAssigned)
	droneID := "other"
	order.AssignedDroneID = &droneID
	seedDrone(store, "d1", 80, domain.Location{Lat: 24.7, Lng: 46.7})

	_, err := svc.ManualAssign(context.Background(), "o1", "d1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestConcurrentAssignSameDrone(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	seedOrder(store, "o1", domain.OrderStatusReadyForAssignment)
	seedOrder(store, "o2", domain.OrderStatusReadyForAssignment)
	seedDrone(store, "d1", 80, domain.Location{Lat: 24.7, Lng: 46.7})

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, orderID := range []string{"o1", "o2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.ManualAssign(context.Background(), id, "d1")
			results <- err
		}(orderID)
	}
	wg.Wait()
	close(results)

	var success, rejected int
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, domain.ErrDroneUnavailable) {
			rejected++
		}
	}
	if success != 1 || rejected != 1 {
		t.Fatalf("expected one success and one rejection, got success=%d rejected=%d", success, rejected)
	}
}

func TestAutoAssignPicksNearest(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	order := seedOrder(store, "o1", domain.OrderStatusReadyForAssignment)
	seedDrone(store, "far", 80, domain.Location{Lat: order.Pickup.Lat + 3, Lng: order.Pickup.Lng})
	seedDrone(store, "near", 80, domain.Location{Lat: order.Pickup.Lat + 0.01, Lng: order.Pickup.Lng})

	got, err := svc.AutoAssign(context.Background(), "o1")
	if err != nil {
		t.Fatalf("auto assign: %v", err)
	}
	if got.AssignedDroneID == nil || *got.AssignedDroneID != "near" {
		t.Fatalf("expected nearest drone assigned")
	}
}

func TestMaintenanceReleasesAssignedOrder(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	order := seedOrder(store, "o1", domain.OrderStatusAssigned)
	drone := seedDrone(store, "d1", 80, domain.Location{Lat: 24.7, Lng: 46.7})
	drone.Status = domain.DroneStatusBusy
	orderID := order.ID
	drone.CurrentOrderID = &orderID
	droneID := drone.ID
	order.AssignedDroneID = &droneID

	got, err := svc.MarkDroneMaintenance(context.Background(), "d1")
	if err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	if got.Status != domain.DroneStatusMaintenance || got.CurrentOrderID != nil {
		t.Fatalf("expected drone pulled and released")
	}
	released, _ := store.GetOrder(context.Background(), "o1")
	if released.Status != domain.OrderStatusReadyForAssignment || released.AssignedDroneID != nil {
		t.Fatalf("expected order back in assignment queue, got %s", released.Status)
	}
	if !store.hasEvent(events.EventEmergency) {
		t.Fatalf("expected emergency event")
	}
}

func TestMaintenanceRefusesMidFlight(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	order := seedOrder(store, "o1", domain.OrderStatusDelivering)
	drone := seedDrone(store, "d1", 80, domain.Location{Lat: 24.7, Lng: 46.7})
	drone.Status = domain.DroneStatusBusy
	orderID := order.ID
	drone.CurrentOrderID = &orderID
	droneID := drone.ID
	order.AssignedDroneID = &droneID

	_, err := svc.MarkDroneMaintenance(context.Background(), "d1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for in-flight drone, got %v", err)
	}
}

func TestReassignSwapsDrones(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	order := seedOrder(store, "o1", domain.OrderStatusDelivering)
	from := seedDrone(store, "a", 80, domain.Location{Lat: 24.7, Lng: 46.7})
	seedDrone(store, "b", 90, domain.Location{Lat: 24.8, Lng: 46.8})
	from.Status = domain.DroneStatusBusy
	orderID := order.ID
	from.CurrentOrderID = &orderID
	fromID := from.ID
	order.AssignedDroneID = &fromID

	got, err := svc.Reassign(context.Background(), "o1", "a", "b", "drone a failing")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if got.AssignedDroneID == nil || *got.AssignedDroneID != "b" {
		t.Fatalf("expected order on drone b")
	}
	a, _ := store.GetDrone(context.Background(), "a")
	b, _ := store.GetDrone(context.Background(), "b")
	if a.Status != domain.DroneStatusAvailable || a.CurrentOrderID != nil {
		t.Fatalf("expected drone a released")
	}
	if b.Status != domain.DroneStatusBusy || b.CurrentOrderID == nil || *b.CurrentOrderID != "o1" {
		t.Fatalf("expected drone b reserved")
	}
}

func TestGetOrderViewAccess(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)
	seedOrder(store, "o1", domain.OrderStatusReadyForAssignment)

	if _, err := svc.GetOrderView(context.Background(), "cust-1", domain.RoleCustomer, "o1"); err != nil {
		t.Fatalf("customer view: %v", err)
	}
	if _, err := svc.GetOrderView(context.Background(), "someone-else", domain.RoleCustomer, "o1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.GetOrderView(context.Background(), "admin", domain.RoleAdmin, "o1"); err != nil {
		t.Fatalf("admin view: %v", err)
	}
}

func TestRegisterDroneValidates(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Config{}, nil)

	if _, err := svc.RegisterDrone(context.Background(), "", domain.Location{Lat: 1, Lng: 1}, 0, 80); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid speed, got %v", err)
	}
	drone, err := svc.RegisterDrone(context.Background(), "", domain.Location{Lat: 1, Lng: 1}, 60, 80)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if drone.ID == "" || drone.Status != domain.DroneStatusAvailable {
		t.Fatalf("expected provisioned drone")
	}
}
