package delivery

import (
	"context"
	"sync"

	"skybite/internal/domain"
	"skybite/internal/events"
)

type memStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	drones map[string]*domain.Drone
	events []events.Event
}

type memTx struct {
	store  *memStore
	closed bool
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]*domain.Order),
		drones: make(map[string]*domain.Drone),
	}
}

func (m *memStore) BeginTx(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	return &memTx{store: m}, nil
}

func (m *memStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *order
	return &copy, nil
}

func (m *memStore) ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*domain.Order
	for _, order := range m.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		copy := *order
		orders = append(orders, &copy)
	}
	return orders, nil
}

func (m *memStore) GetDrone(ctx context.Context, id string) (*domain.Drone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drone, ok := m.drones[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *drone
	return &copy, nil
}

func (m *memStore) ListDrones(ctx context.Context) ([]*domain.Drone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var drones []*domain.Drone
	for _, drone := range m.drones {
		copy := *drone
		drones = append(drones, &copy)
	}
	return drones, nil
}

func (m *memStore) ListPendingTimers(ctx context.Context) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*domain.Order
	for _, order := range m.orders {
		if order.TimerPhase == nil {
			continue
		}
		copy := *order
		orders = append(orders, &copy)
	}
	return orders, nil
}

func (m *memStore) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, evt := range m.events {
		types = append(types, evt.Type)
	}
	return types
}

func (m *memStore) hasEvent(eventType string) bool {
	for _, t := range m.eventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

func (t *memTx) Commit(ctx context.Context) error {
	return t.close()
}

func (t *memTx) Rollback(ctx context.Context) error {
	return t.close()
}

func (t *memTx) close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	order, ok := t.store.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *order
	return &copy, nil
}

func (t *memTx) GetDroneForUpdate(ctx context.Context, id string) (*domain.Drone, error) {
	drone, ok := t.store.drones[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *drone
	return &copy, nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	if _, ok := t.store.orders[order.ID]; ok {
		return domain.ErrConflict
	}
	copy := *order
	t.store.orders[order.ID] = &copy
	return nil
}

func (t *memTx) CreateDrone(ctx context.Context, drone *domain.Drone) error {
	if _, ok := t.store.drones[drone.ID]; ok {
		return domain.ErrConflict
	}
	copy := *drone
	t.store.drones[drone.ID] = &copy
	return nil
}

func (t *memTx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	copy := *order
	t.store.orders[order.ID] = &copy
	return nil
}

func (t *memTx) UpdateDrone(ctx context.Context, drone *domain.Drone) error {
	copy := *drone
	t.store.drones[drone.ID] = &copy
	return nil
}

func (t *memTx) EnqueueEvent(ctx context.Context, event events.Event) error {
	t.store.events = append(t.store.events, event)
	return nil
}
