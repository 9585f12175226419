package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skybite/internal/delivery"
	"skybite/internal/domain"
	"skybite/internal/events"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) BeginTx(ctx context.Context) (delivery.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, orderSelectByIDSQL, id)
	return scanOrder(row)
}

func (s *Store) ListOrders(ctx context.Context, filter delivery.OrderFilter) ([]*domain.Order, error) {
	status := sql.NullString{}
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, orderListSQL, status, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return orders, nil
}

func (s *Store) GetDrone(ctx context.Context, id string) (*domain.Drone, error) {
	row := s.pool.QueryRow(ctx, droneSelectByIDSQL, id)
	return scanDrone(row)
}

func (s *Store) ListDrones(ctx context.Context) ([]*domain.Drone, error) {
	rows, err := s.pool.Query(ctx, droneListSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drones []*domain.Drone
	for rows.Next() {
		drone, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		drones = append(drones, drone)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return drones, nil
}

func (s *Store) ListPendingTimers(ctx context.Context) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, orderPendingTimersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return orders, nil
}

type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *Tx) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	row := t.tx.QueryRow(ctx, orderSelectByIDForUpdateSQL, id)
	return scanOrder(row)
}

func (t *Tx) GetDroneForUpdate(ctx context.Context, id string) (*domain.Drone, error) {
	row := t.tx.QueryRow(ctx, droneSelectByIDForUpdateSQL, id)
	return scanDrone(row)
}

func (t *Tx) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.Exec(ctx, orderInsertSQL,
		order.ID,
		order.CustomerID,
		order.RestaurantID,
		order.Pickup.Lat,
		order.Pickup.Lng,
		order.Dropoff.Lat,
		order.Dropoff.Lng,
		order.Status,
		nullString(order.AssignedDroneID),
		order.DeliveryAttempts,
		nullPhase(order.TimerPhase),
		nullTime(order.TimerDeadline),
		order.CreatedAt,
		order.UpdatedAt,
		nullTime(order.ReadyAt),
		nullTime(order.AssignedAt),
		nullTime(order.DeliveringAt),
		nullTime(order.ArrivedAt),
		nullTime(order.WaitingStartedAt),
		nullTime(order.DeliveredAt),
		nullTime(order.DeliveryFailedAt),
		nullTime(order.ReturningAt),
		nullTime(order.ReturnedAt),
		nullTime(order.CancelledAt),
		nullString(order.CancelReason),
	)
	return err
}

func (t *Tx) CreateDrone(ctx context.Context, drone *domain.Drone) error {
	_, err := t.tx.Exec(ctx, droneInsertSQL,
		drone.ID,
		drone.Status,
		drone.BatteryLevel,
		drone.CurrentLocation.Lat,
		drone.CurrentLocation.Lng,
		drone.HomeLocation.Lat,
		drone.HomeLocation.Lng,
		drone.SpeedKmh,
		nullString(drone.CurrentOrderID),
		drone.TotalFlights,
		drone.CreatedAt,
		drone.UpdatedAt,
	)
	return err
}

func (t *Tx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.Exec(ctx, orderUpdateSQL,
		order.Status,
		nullString(order.AssignedDroneID),
		order.DeliveryAttempts,
		nullPhase(order.TimerPhase),
		nullTime(order.TimerDeadline),
		order.UpdatedAt,
		nullTime(order.ReadyAt),
		nullTime(order.AssignedAt),
		nullTime(order.DeliveringAt),
		nullTime(order.ArrivedAt),
		nullTime(order.WaitingStartedAt),
		nullTime(order.DeliveredAt),
		nullTime(order.DeliveryFailedAt),
		nullTime(order.ReturningAt),
		nullTime(order.ReturnedAt),
		nullTime(order.CancelledAt),
		nullString(order.CancelReason),
		order.ID,
	)
	return err
}

func (t *Tx) UpdateDrone(ctx context.Context, drone *domain.Drone) error {
	_, err := t.tx.Exec(ctx, droneUpdateSQL,
		drone.Status,
		drone.BatteryLevel,
		drone.CurrentLocation.Lat,
		drone.CurrentLocation.Lng,
		drone.HomeLocation.Lat,
		drone.HomeLocation.Lng,
		drone.SpeedKmh,
		nullString(drone.CurrentOrderID),
		drone.TotalFlights,
		drone.UpdatedAt,
		drone.ID,
	)
	return err
}

func (t *Tx) EnqueueEvent(ctx context.Context, event events.Event) error {
	_, err := t.tx.Exec(ctx, outboxInsertSQL,
		event.ID,
		event.Type,
		event.AggregateType,
		event.AggregateID,
		event.Payload,
		event.OccurredAt,
	)
	return err
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		assignedDroneID  sql.NullString
		timerPhase       sql.NullString
		timerDeadline    sql.NullTime
		readyAt          sql.NullTime
		assignedAt       sql.NullTime
		deliveringAt     sql.NullTime
		arrivedAt        sql.NullTime
		waitingStartedAt sql.NullTime
		deliveredAt      sql.NullTime
		deliveryFailedAt sql.NullTime
		returningAt      sql.NullTime
		returnedAt       sql.NullTime
		cancelledAt      sql.NullTime
		cancelReason     sql.NullString
	)
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.RestaurantID,
		&order.Pickup.Lat,
		&order.Pickup.Lng,
		&order.Dropoff.Lat,
		&order.Dropoff.Lng,
		&order.Status,
		&assignedDroneID,
		&order.DeliveryAttempts,
		&timerPhase,
		&timerDeadline,
		&order.CreatedAt,
		&order.UpdatedAt,
		&readyAt,
		&assignedAt,
		&deliveringAt,
		&arrivedAt,
		&waitingStartedAt,
		&deliveredAt,
		&deliveryFailedAt,
		&returningAt,
		&returnedAt,
		&cancelledAt,
		&cancelReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if assignedDroneID.Valid {
		order.AssignedDroneID = &assignedDroneID.String
	}
	if timerPhase.Valid {
		phase := domain.TimerPhase(timerPhase.String)
		order.TimerPhase = &phase
	}
	order.TimerDeadline = timePtr(timerDeadline)
	order.ReadyAt = timePtr(readyAt)
	order.AssignedAt = timePtr(assignedAt)
	order.DeliveringAt = timePtr(deliveringAt)
	order.ArrivedAt = timePtr(arrivedAt)
	order.WaitingStartedAt = timePtr(waitingStartedAt)
	order.DeliveredAt = timePtr(deliveredAt)
	order.DeliveryFailedAt = timePtr(deliveryFailedAt)
	order.ReturningAt = timePtr(returningAt)
	order.ReturnedAt = timePtr(returnedAt)
	order.CancelledAt = timePtr(cancelledAt)
	if cancelReason.Valid {
		order.CancelReason = &cancelReason.String
	}
	return order, nil
}

func scanDrone(row pgx.Row) (*domain.Drone, error) {
	var currentOrderID sql.NullString
	drone := &domain.Drone{}
	err := row.Scan(
		&drone.ID,
		&drone.Status,
		&drone.BatteryLevel,
		&drone.CurrentLocation.Lat,
		&drone.CurrentLocation.Lng,
		&drone.HomeLocation.Lat,
		&drone.HomeLocation.Lng,
		&drone.SpeedKmh,
		&currentOrderID,
		&drone.TotalFlights,
		&drone.CreatedAt,
		&drone.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if currentOrderID.Valid {
		drone.CurrentOrderID = &currentOrderID.String
	}
	return drone, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullPhase(v *domain.TimerPhase) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
