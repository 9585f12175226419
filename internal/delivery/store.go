package delivery

import (
	"context"

	"skybite/internal/domain"
	"skybite/internal/events"
)

// Store is the persistence collaborator. Reads outside a transaction are
// plain snapshots; every mutation goes through a Tx so the paired order and
// drone writes commit or roll back together.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	GetDrone(ctx context.Context, id string) (*domain.Drone, error)
	ListDrones(ctx context.Context) ([]*domain.Drone, error)
	// ListPendingTimers returns orders with a persisted timer phase, used to
	// re-arm lifecycle timers after a process restart.
	ListPendingTimers(ctx context.Context) ([]*domain.Order, error)
}

type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error)
	GetDroneForUpdate(ctx context.Context, id string) (*domain.Drone, error)
	CreateOrder(ctx context.Context, order *domain.Order) error
	CreateDrone(ctx context.Context, drone *domain.Drone) error
	UpdateOrder(ctx context.Context, order *domain.Order) error
	UpdateDrone(ctx context.Context, drone *domain.Drone) error
	EnqueueEvent(ctx context.Context, event events.Event) error
}

type OrderFilter struct {
	Status *domain.OrderStatus
	Limit  int
	Offset int
}
