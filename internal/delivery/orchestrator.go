package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"skybite/internal/domain"
	"skybite/internal/events"
	"skybite/internal/geo"
)

var errSimulationStale = errors.New("simulation no longer owns the drone")

// Orchestrator owns every wall-clock timer that drives the delivery
// lifecycle: the flight simulation ticks, the arrival grace delay, the
// customer response window and the return flight. Timer callbacks re-read
// the order under lock and verify the expected status before mutating, so a
// stale timer firing after a race resolves is always a no-op.
type Orchestrator struct {
	store    Store
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
	registry *timerRegistry

	mu   sync.Mutex
	sims map[string]string // drone id -> order id of the running simulation
}

func NewOrchestrator(store Store, cfg Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:    store,
		cfg:      cfg.withDefaults(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		registry: newTimerRegistry(),
		sims:     make(map[string]string),
	}
}

// Close cancels every pending timer. Orders keep their persisted timer
// phase, so Recover on the next start picks the work back up.
func (o *Orchestrator) Close() {
	o.registry.cancelAll()
	o.mu.Lock()
	o.sims = make(map[string]string)
	o.mu.Unlock()
}

// StartSimulation begins the timed flight for an assigned order. The order
// moves to delivering and the drone's reported position advances from pickup
// to dropoff every tick until the computed flight time elapses.
func (o *Orchestrator) StartSimulation(ctx context.Context, orderID, droneID string) (*domain.Order, error) {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.AssignedDroneID == nil || *order.AssignedDroneID != droneID {
		return nil, fmt.Errorf("order %s not reserved by drone %s: %w", orderID, droneID, domain.ErrConflict)
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
	if drone.CurrentOrderID == nil || *drone.CurrentOrderID != orderID {
		return nil, fmt.Errorf("drone %s not reserved for order %s: %w", droneID, orderID, domain.ErrConflict)
	}

	dist := geo.DistanceKm(order.Pickup, order.Dropoff)
	total, err := geo.FlightDuration(dist, drone.SpeedKmh)
	if err != nil {
		return nil, err
	}

	now := o.now()
	if err := domain.Transition(order, domain.OrderStatusDelivering, now); err != nil {
		return nil, err
	}
	start := now
	deadline := start.Add(total)
	phase := domain.TimerPhaseSimulation
	order.TimerPhase = &phase
	order.TimerDeadline = &deadline
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	drone.CurrentLocation = order.Pickup
	drone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, drone); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.launchSimulation(orderID, droneID, order.Pickup, order.Dropoff, start, total)
	o.log.Info("simulation started",
		zap.String("order_id", orderID),
		zap.String("drone_id", droneID),
		zap.Float64("distance_km", dist),
		zap.Duration("flight_time", total))
	return order, nil
}

// ConfirmDelivery completes the order on customer confirmation. Valid while
// the order is waiting for the customer, and tolerated slightly early while
// still delivering or arrived. Confirming an already delivered order is a
// no-op success so redelivered events and client retries stay harmless.
func (o *Orchestrator) ConfirmDelivery(ctx context.Context, orderID string) (*domain.Order, error) {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusDelivered {
		return order, nil
	}
	var droneID string
	if order.AssignedDroneID != nil {
		droneID = *order.AssignedDroneID
	}

	now := o.now()
	if err := domain.Transition(order, domain.OrderStatusDelivered, now); err != nil {
		return nil, err
	}
	order.TimerPhase = nil
	order.TimerDeadline = nil
	order.AssignedDroneID = nil
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	if droneID != "" {
		drone, err := tx.GetDroneForUpdate(ctx, droneID)
		if err != nil {
			return nil, err
		}
		drone.Status = domain.DroneStatusAvailable
		drone.CurrentOrderID = nil
		drone.CurrentLocation = order.Dropoff
		drone.TotalFlights++
		drone.UpdatedAt = now
		if err := tx.UpdateDrone(ctx, drone); err != nil {
			return nil, err
		}
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.registry.cancelOrder(orderID)
	if droneID != "" {
		o.clearSim(droneID, orderID)
	}
	o.log.Info("delivery confirmed", zap.String("order_id", orderID), zap.String("drone_id", droneID))
	return order, nil
}

// StopSimulation is the operator escape hatch: it kills the drone's timers
// and frees the drone, leaving the order status for the operator to
// reconcile.
func (o *Orchestrator) StopSimulation(ctx context.Context, droneID string) (*domain.Drone, error) {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	drone, err := tx.GetDroneForUpdate(ctx, droneID)
	if err != nil {
		return nil, err
	}
	if drone.CurrentOrderID == nil {
		return nil, fmt.Errorf("drone %s has no active delivery: %w", droneID, domain.ErrConflict)
	}
	orderID := *drone.CurrentOrderID
	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := o.now()
	order.TimerPhase = nil
	order.TimerDeadline = nil
	order.UpdatedAt = now
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	drone.Status = domain.DroneStatusAvailable
	drone.CurrentOrderID = nil
	drone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, drone); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewEmergencyEvent(orderID, droneID, "simulation stopped by operator", now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.registry.cancelOrder(orderID)
	o.clearSim(droneID, orderID)
	o.log.Warn("simulation stopped", zap.String("order_id", orderID), zap.String("drone_id", droneID))
	return drone, nil
}

// CancelOrder cancels any non-terminal order, killing its timers and
// releasing its drone. Cancelling an already cancelled order is a no-op.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}
	var droneID string
	if order.AssignedDroneID != nil {
		droneID = *order.AssignedDroneID
	}

	now := o.now()
	if err := domain.Transition(order, domain.OrderStatusCancelled, now); err != nil {
		return nil, err
	}
	if reason != "" {
		order.CancelReason = &reason
	}
	order.TimerPhase = nil
	order.TimerDeadline = nil
	order.AssignedDroneID = nil
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	if droneID != "" {
		drone, err := tx.GetDroneForUpdate(ctx, droneID)
		if err != nil {
			return nil, err
		}
		drone.Status = domain.DroneStatusAvailable
		drone.CurrentOrderID = nil
		drone.UpdatedAt = now
		if err := tx.UpdateDrone(ctx, drone); err != nil {
			return nil, err
		}
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.registry.cancelOrder(orderID)
	if droneID != "" {
		o.clearSim(droneID, orderID)
	}
	o.log.Info("order cancelled", zap.String("order_id", orderID), zap.String("reason", reason))
	return order, nil
}

// Recover re-arms the lifecycle timers persisted with the orders. Deadlines
// already in the past resolve immediately, so a restart cannot strand an
// order in waiting_for_customer or returning_to_restaurant.
func (o *Orchestrator) Recover(ctx context.Context) error {
	orders, err := o.store.ListPendingTimers(ctx)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if order.TimerPhase == nil || order.TimerDeadline == nil {
			continue
		}
		if order.AssignedDroneID == nil {
			o.log.Warn("pending timer without a drone", zap.String("order_id", order.ID))
			continue
		}
		orderID := order.ID
		droneID := *order.AssignedDroneID
		remaining := order.TimerDeadline.Sub(o.now())

		switch *order.TimerPhase {
		case domain.TimerPhaseSimulation:
			if remaining <= 0 || order.DeliveringAt == nil {
				o.arrive(orderID, droneID)
				continue
			}
			total := order.TimerDeadline.Sub(*order.DeliveringAt)
			o.launchSimulation(orderID, droneID, order.Pickup, order.Dropoff, *order.DeliveringAt, total)
		case domain.TimerPhaseArrivalGrace:
			if remaining <= 0 {
				o.beginWait(orderID, droneID)
				continue
			}
			o.armPhase(orderID, domain.TimerPhaseArrivalGrace, remaining, func() { o.beginWait(orderID, droneID) })
		case domain.TimerPhaseResponseWindow:
			if remaining <= 0 {
				o.responseTimeout(orderID, droneID)
				continue
			}
			o.armPhase(orderID, domain.TimerPhaseResponseWindow, remaining, func() { o.responseTimeout(orderID, droneID) })
		case domain.TimerPhaseReturnFlight:
			if remaining <= 0 {
				o.returnComplete(orderID, droneID)
				continue
			}
			o.armPhase(orderID, domain.TimerPhaseReturnFlight, remaining, func() { o.returnComplete(orderID, droneID) })
		}
		o.log.Info("timer recovered",
			zap.String("order_id", orderID),
			zap.String("phase", string(*order.TimerPhase)),
			zap.Duration("remaining", remaining))
	}
	return nil
}

func (o *Orchestrator) launchSimulation(orderID, droneID string, pickup, dropoff domain.Location, start time.Time, total time.Duration) {
	o.mu.Lock()
	if prev, ok := o.sims[droneID]; ok && prev != orderID {
		o.log.Warn("replacing running simulation",
			zap.String("drone_id", droneID),
			zap.String("old_order_id", prev),
			zap.String("new_order_id", orderID))
		o.registry.cancel(timerKey{orderID: prev, phase: domain.TimerPhaseSimulation})
	}
	o.sims[droneID] = orderID
	o.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	o.registry.put(timerKey{orderID: orderID, phase: domain.TimerPhaseSimulation}, cancel)
	go o.runSimulation(ctx, orderID, droneID, pickup, dropoff, start, total)
}

func (o *Orchestrator) runSimulation(ctx context.Context, orderID, droneID string, pickup, dropoff domain.Location, start time.Time, total time.Duration) {
	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.clearSim(droneID, orderID)
			return
		case <-ticker.C:
			elapsed := o.now().Sub(start)
			if total <= 0 || elapsed >= total {
				o.registry.remove(timerKey{orderID: orderID, phase: domain.TimerPhaseSimulation})
				o.clearSim(droneID, orderID)
				o.arrive(orderID, droneID)
				return
			}
			progress := float64(elapsed) / float64(total)
			if err := o.tick(orderID, droneID, pickup, dropoff, progress); err != nil {
				if errors.Is(err, errSimulationStale) {
					o.log.Info("simulation superseded", zap.String("order_id", orderID), zap.String("drone_id", droneID))
				} else {
					o.log.Error("simulation tick aborted", zap.String("order_id", orderID), zap.Error(err))
				}
				o.registry.remove(timerKey{orderID: orderID, phase: domain.TimerPhaseSimulation})
				o.clearSim(droneID, orderID)
				return
			}
		}
	}
}

// tick persists one position update. A write failure aborts the simulation
// rather than keep emitting events against data the store no longer reflects.
func (o *Orchestrator) tick(orderID, droneID string, pickup, dropoff domain.Location, progress float64) error {
	ctx := context.Background()
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	drone, err := tx.GetDroneForUpdate(ctx, droneID)
	if err != nil {
		return err
	}
	if drone.CurrentOrderID == nil || *drone.CurrentOrderID != orderID {
		return errSimulationStale
	}
	now := o.now()
	drone.CurrentLocation = geo.Interpolate(pickup, dropoff, progress)
	drone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, drone); err != nil {
		return err
	}
	if err := tx.EnqueueEvent(ctx, events.NewLocationEvent(orderID, drone, progress, now)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// arrive fires when the simulated flight reaches the dropoff. After the
// arrival grace delay the customer response window opens.
func (o *Orchestrator) arrive(orderID, droneID string) {
	ctx := context.Background()
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		o.log.Error("arrival aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		o.log.Error("arrival aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if order.Status != domain.OrderStatusDelivering {
		o.log.Info("stale arrival ignored", zap.String("order_id", orderID), zap.String("status", string(order.Status)))
		return
	}
	now := o.now()
	if err := domain.Transition(order, domain.OrderStatusArrived, now); err != nil {
		o.log.Error("arrival aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	deadline := now.Add(o.cfg.ArrivalGrace)
	phase := domain.TimerPhaseArrivalGrace
	order.TimerPhase = &phase
	order.TimerDeadline = &deadline
	if err := tx.UpdateOrder(ctx, order); err != nil {
		o.log.Error("arrival aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	drone, err := tx.GetDroneForUpdate(ctx, droneID)
	if err != nil {
		o.log.Error("arrival aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	drone.CurrentLocation = order.Dropoff
	drone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, drone); err != nil {
		o.log.Error("arrival aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		o.log.Error("arrival aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		o.log.Error("arrival aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}

	o.armPhase(orderID, domain.TimerPhaseArrivalGrace, o.cfg.ArrivalGrace, func() { o.beginWait(orderID, droneID) })
	o.log.Info("drone arrived", zap.String("order_id", orderID), zap.String("drone_id", droneID))
}

// beginWait opens the customer response window.
func (o *Orchestrator) beginWait(orderID, droneID string) {
	ctx := context.Background()
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		o.log.Error("response window aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		o.log.Error("response window aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if order.Status != domain.OrderStatusArrived {
		o.log.Info("stale wait ignored", zap.String("order_id", orderID), zap.String("status", string(order.Status)))
		return
	}
	now := o.now()
	if err := domain.Transition(order, domain.OrderStatusWaitingForCustomer, now); err != nil {
		o.log.Error("response window aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	order.DeliveryAttempts++
	deadline := now.Add(o.cfg.ResponseWindow)
	phase := domain.TimerPhaseResponseWindow
	order.TimerPhase = &phase
	order.TimerDeadline = &deadline
	if err := tx.UpdateOrder(ctx, order); err != nil {
		o.log.Error("response window aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		o.log.Error("response window aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		o.log.Error("response window aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}

	o.armPhase(orderID, domain.TimerPhaseResponseWindow, o.cfg.ResponseWindow, func() { o.responseTimeout(orderID, droneID) })
	o.log.Info("waiting for customer",
		zap.String("order_id", orderID),
		zap.Int("attempt", order.DeliveryAttempts),
		zap.Duration("window", o.cfg.ResponseWindow))
}

// responseTimeout fails the delivery after the customer window expires and
// sends the drone back to the restaurant. If the customer confirmed in the
// meantime the timer lost the race and backs off.
func (o *Orchestrator) responseTimeout(orderID, droneID string) {
	ctx := context.Background()
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if order.Status != domain.OrderStatusWaitingForCustomer {
		o.log.Info("stale timeout ignored", zap.String("order_id", orderID), zap.String("status", string(order.Status)))
		return
	}
	now := o.now()
	if err := domain.Transition(order, domain.OrderStatusDeliveryFailed, now); err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := domain.Transition(order, domain.OrderStatusReturning, now); err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}

	drone, err := tx.GetDroneForUpdate(ctx, droneID)
	if err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	// Return flight mirrors the outbound leg: same distance, same speed.
	returnTime, err := geo.FlightDuration(geo.DistanceKm(order.Dropoff, order.Pickup), drone.SpeedKmh)
	if err != nil {
		returnTime = 0
	}
	deadline := now.Add(returnTime)
	phase := domain.TimerPhaseReturnFlight
	order.TimerPhase = &phase
	order.TimerDeadline = &deadline
	if err := tx.UpdateOrder(ctx, order); err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	drone.Status = domain.DroneStatusReturning
	drone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, drone); err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		o.log.Error("timeout aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}

	o.armPhase(orderID, domain.TimerPhaseReturnFlight, returnTime, func() { o.returnComplete(orderID, droneID) })
	o.log.Warn("response window expired",
		zap.String("order_id", orderID),
		zap.String("drone_id", droneID),
		zap.Duration("return_flight", returnTime))
}

// returnComplete lands the drone back at the restaurant and closes the
// failed delivery.
func (o *Orchestrator) returnComplete(orderID, droneID string) {
	ctx := context.Background()
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		o.log.Error("return aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		o.log.Error("return aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if order.Status != domain.OrderStatusReturning {
		o.log.Info("stale return ignored", zap.String("order_id", orderID), zap.String("status", string(order.Status)))
		return
	}
	now := o.now()
	if err := domain.Transition(order, domain.OrderStatusReturned, now); err != nil {
		o.log.Error("return aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	order.TimerPhase = nil
	order.TimerDeadline = nil
	order.AssignedDroneID = nil
	if err := tx.UpdateOrder(ctx, order); err != nil {
		o.log.Error("return aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	drone, err := tx.GetDroneForUpdate(ctx, droneID)
	if err != nil {
		o.log.Error("return aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	drone.Status = domain.DroneStatusAvailable
	drone.CurrentOrderID = nil
	drone.CurrentLocation = drone.HomeLocation
	drone.TotalFlights++
	drone.UpdatedAt = now
	if err := tx.UpdateDrone(ctx, drone); err != nil {
		o.log.Error("return aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.EnqueueEvent(ctx, events.NewStatusEvent(order, now)); err != nil {
		o.log.Error("return aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		o.log.Error("return aborted", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	o.log.Info("drone returned", zap.String("order_id", orderID), zap.String("drone_id", droneID))
}

func (o *Orchestrator) armPhase(orderID string, phase domain.TimerPhase, d time.Duration, fn func()) {
	o.registry.arm(timerKey{orderID: orderID, phase: phase}, d, fn)
}

func (o *Orchestrator) clearSim(droneID, orderID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if current, ok := o.sims[droneID]; ok && current == orderID {
		delete(o.sims, droneID)
	}
}
