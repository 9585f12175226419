package delivery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skybite/internal/domain"
	"skybite/internal/events"
	"skybite/internal/geo"
)

// Config carries the timing and assignment constants for the delivery
// lifecycle. Durations are fixed configuration, not computed at runtime.
type Config struct {
	TickInterval   time.Duration
	ArrivalGrace   time.Duration
	ResponseWindow time.Duration
	MinBattery     int
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.ArrivalGrace <= 0 {
		c.ArrivalGrace = 5 * time.Second
	}
	if c.ResponseWindow <= 0 {
		c.ResponseWindow = 40 * time.Second
	}
	if c.MinBattery <= 0 {
		c.MinBattery = 30
	}
	return c
}

// Service covers order intake, drone assignment and the fleet admin
// operations. Timer-driven transitions live on the Orchestrator.
type Service struct {
	store Store
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		cfg:   cfg.withDefaults(),
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SubmitOrder enters a prepared order into the lifecycle. The restaurant
// calls this once the food is ready for pickup; upstream order capture is a
// separate system.
func (s *Service) SubmitOrder(ctx context.Context, restaurantID, customerID string, pickup, dropoff domain.Location) (*domain.Order, error) {
	if err := domain.ValidateLocation(pickup); err != nil {
		return nil, fmt.Errorf("pickup: %w", err)
	}
	if err := domain.ValidateLocation(dropoff); err != nil {
		return nil, fmt.Errorf("dropoff: %w", err)
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := s.now()
	order := &domain.Order{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		CustomerID:   customerID,
		Pickup:       pickup,
		Dropoff:      dropoff,
		Status:       domain.OrderStatusReadyForAssignment,
		ReadyAt:      &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// ManualAssign reserves a specific drone for an order. The order and drone
// rows are mutated in one transaction so the reservation either fully holds
// or fully fails.
func (s *Service) ManualAssign(ctx context.Context, orderID, droneID string) (*domain.Order, error) {
	order, err := s.assign(ctx, orderID, droneID)
	if err != nil {
		s.recordAssignmentFailure(ctx, orderID, droneID, err)
		return nil, err
	}
	return order, nil
}

// AutoAssign picks the nearest eligible drone to the order's pickup point.
func (s *Service) AutoAssign(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	drones, err := s.store.ListDrones(ctx)
	if err != nil {
		return nil, err
	}
	nearest, err := FindNearest(order.Pickup, drones, s.cfg.MinBattery)
	if err != nil {
		s.recordAssignmentFailure(ctx, orderID, "", err)
		return nil, err
	}
	return s.ManualAssign(ctx, orderID, nearest.ID)
}

// FindNearest filters candidates to available drones with enough battery and
// returns the closest to pickup. Ties keep the first candidate encountered.
func FindNearest(pickup domain.Location, candidates []*domain.Drone, minBattery int) (*domain.Drone, error) {
	var best *domain.Drone
	var bestDist float64
	for _, drone := range candidates {
		if drone.Status != domain.DroneStatusAvailable || drone.BatteryLevel < minBattery {
			continue
		}
		dist := geo.DistanceKm(drone.CurrentLocation, pickup)
		if best == nil || dist < bestDist {
			best = drone
			bestDist = dist
		}
	}
	if best == nil {
		return nil, domain.ErrNoDroneAvailable
	}
	return best, nil
}

// Reassign moves an in-progress order from one drone to another, recording
// the operator's reason. A running simulation is not touched; the operator
// stops and restarts it separately.
func (s *Service) Reassign(ctx context.Context, orderID, fromDroneID, toDroneID, reason string) (*domain.Order, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.AssignedDroneID == nil || *order.AssignedDroneID != fromDroneID {
		return nil, fmt.Errorf("order %s not assigned to drone %s: %w", orderID, fromDroneID, domain.ErrConflict)
	}
	if !domain.ActiveFlight(order.Status) {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, order.Status, domain.ErrStateConflict)
	}
	toDrone, err := tx.GetDroneForUpdate(ctx, toDroneID)
	if err != nil {
		return nil, err
	}
	if err := droneEligible(toDrone, s.cfg.MinBattery); err != nil {
		return nil, err
	}
	fromDrone, err := tx.GetDroneForUpdate(ctx, fromDroneID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fromDrone.Status = domain.DroneStatusAvailable
	fromDrone.CurrentOrderID = nil
	fromDrone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, fromDrone); err != nil {
		return nil, err
	}
	toDrone.Status = domain.DroneStatusBusy
	toDrone.CurrentOrderID = &order.ID
	toDrone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, toDrone); err != nil {
		return nil, err
	}
	order.AssignedDroneID = &toDrone.ID
	order.UpdatedAt = now
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewAssignmentEvent(events.EventAssignmentSuccess, order.ID, toDrone.ID, reason, now)); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewEmergencyEvent(order.ID, fromDroneID, "reassigned: "+reason, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) GetOrderView(ctx context.Context, requesterID, role, orderID string) (*OrderView, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch role {
	case domain.RoleAdmin:
	case domain.RoleCustomer:
		if order.CustomerID != requesterID {
			return nil, domain.ErrForbidden
		}
	case domain.RoleRestaurant:
		if order.RestaurantID != requesterID {
			return nil, domain.ErrForbidden
		}
	default:
		return nil, domain.ErrForbidden
	}
	return s.buildOrderView(ctx, order)
}

func (s *Service) AdminListOrders(ctx context.Context, filter OrderFilter) ([]*OrderView, error) {
	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*OrderView, 0, len(orders))
	for _, order := range orders {
		view, err := s.buildOrderView(ctx, order)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Order.CreatedAt.Before(views[j].Order.CreatedAt)
	})
	return views, nil
}

func (s *Service) AdminListDrones(ctx context.Context) ([]*domain.Drone, error) {
	return s.store.ListDrones(ctx)
}

// RegisterDrone provisions a new fleet drone at its home base.
func (s *Service) RegisterDrone(ctx context.Context, id string, home domain.Location, speedKmh float64, battery int) (*domain.Drone, error) {
	if err := domain.ValidateLocation(home); err != nil {
		return nil, err
	}
	if speedKmh <= 0 {
		return nil, fmt.Errorf("speed %v km/h: %w", speedKmh, domain.ErrInvalidInput)
	}
	if battery < 0 || battery > 100 {
		return nil, fmt.Errorf("battery %d: %w", battery, domain.ErrInvalidInput)
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := s.now()
	drone := &domain.Drone{
		ID:              id,
		Status:          domain.DroneStatusAvailable,
		BatteryLevel:    battery,
		CurrentLocation: home,
		HomeLocation:    home,
		SpeedKmh:        speedKmh,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if drone.ID == "" {
		drone.ID = uuid.NewString()
	}
	if err := tx.CreateDrone(ctx, drone); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return drone, nil
}

// MarkDroneMaintenance pulls a drone from service. A drone that is merely
// assigned (not yet flying) releases its order back to the assignment queue;
// a drone in flight must be reassigned or stopped first.
func (s *Service) MarkDroneMaintenance(ctx context.Context, droneID string) (*domain.Drone, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	drone, err := tx.GetDroneForUpdate(ctx, droneID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if drone.CurrentOrderID != nil {
		order, err := tx.GetOrderForUpdate(ctx, *drone.CurrentOrderID)
		if err != nil {
			return nil, err
		}
		if order.Status != domain.OrderStatusAssigned {
			return nil, fmt.Errorf("drone %s is on an active flight: %w", droneID, domain.ErrConflict)
		}
		if err := domain.Transition(order, domain.OrderStatusReadyForAssignment, now); err != nil {
			return nil, err
		}
		order.AssignedDroneID = nil
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return nil, err
		}
		if err := tx.EnqueueEvent(ctx, events.NewEmergencyEvent(order.ID, droneID, "drone pulled for maintenance", now)); err != nil {
			return nil, err
		}
		if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
			return nil, err
		}
		drone.CurrentOrderID = nil
	}
	drone.Status = domain.DroneStatusMaintenance
	drone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, drone); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return drone, nil
}

// MarkDroneAvailable returns a drone to service at its home base.
func (s *Service) MarkDroneAvailable(ctx context.Context, droneID string) (*domain.Drone, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	drone, err := tx.GetDroneForUpdate(ctx, droneID)
	if err != nil {
		return nil, err
	}
	if drone.CurrentOrderID != nil {
		return nil, fmt.Errorf("drone %s still holds an order: %w", droneID, domain.ErrConflict)
	}
	drone.Status = domain.DroneStatusAvailable
	drone.UpdatedAt = s.now()
	if err := tx.UpdateDrone(ctx, drone); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return drone, nil
}

func (s *Service) assign(ctx context.Context, orderID, droneID string) (*domain.Order, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.AssignedDroneID != nil {
		return nil, fmt.Errorf("order %s already assigned: %w", orderID, domain.ErrConflict)
	}
	if err := domain.ValidateLocation(order.Pickup); err != nil {
		return nil, err
	}
	if err := domain.ValidateLocation(order.Dropoff); err != nil {
		return nil, err
	}
	drone, err := tx.GetDroneForUpdate(ctx, droneID)
	if err != nil {
		return nil, err
	}
	if err := droneEligible(drone, s.cfg.MinBattery); err != nil {
		return nil, err
	}

	now := s.now()
	if err := domain.Transition(order, domain.OrderStatusAssigned, now); err != nil {
		return nil, err
	}
	order.AssignedDroneID = &drone.ID
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	drone.Status = domain.DroneStatusBusy
	drone.CurrentOrderID = &order.ID
	drone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, drone); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewAssignmentEvent(events.EventAssignmentSuccess, order.ID, drone.ID, "", now)); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

func droneEligible(drone *domain.Drone, minBattery int) error {
	if drone.Status != domain.DroneStatusAvailable || drone.CurrentOrderID != nil {
		return fmt.Errorf("drone %s is %s: %w", drone.ID, drone.Status, domain.ErrDroneUnavailable)
	}
	if drone.BatteryLevel < minBattery {
		return fmt.Errorf("drone %s battery %d%% below %d%%: %w", drone.ID, drone.BatteryLevel, minBattery, domain.ErrBatteryLow)
	}
	return nil
}

// recordAssignmentFailure writes the assignment-failed event outside the
// failed transaction. Best effort: losing this event only loses telemetry.
func (s *Service) recordAssignmentFailure(ctx context.Context, orderID, droneID string, cause error) {
	if errors.Is(cause, domain.ErrNotFound) {
		return
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		s.log.Warn("assignment failure not recorded", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	defer tx.Rollback(ctx)
	evt := events.NewAssignmentEvent(events.EventAssignmentFailed, orderID, droneID, cause.Error(), s.now())
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		s.log.Warn("assignment failure not recorded", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		s.log.Warn("assignment failure not recorded", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) buildOrderView(ctx context.Context, order *domain.Order) (*OrderView, error) {
	var drone *domain.Drone
	if order.AssignedDroneID != nil {
		var err error
		drone, err = s.store.GetDrone(ctx, *order.AssignedDroneID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return &OrderView{
		Order:           order,
		CurrentLocation: CurrentLocation(order, drone),
		ETASeconds:      ComputeETA(order, drone),
	}, nil
}
