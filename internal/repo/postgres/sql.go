package postgres

const orderColumns = `
id, customer_id, restaurant_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
status, assigned_drone_id, delivery_attempts, timer_phase, timer_deadline,
created_at, updated_at, ready_at, assigned_at, delivering_at, arrived_at,
waiting_started_at, delivered_at, delivery_failed_at, returning_at, returned_at,
cancelled_at, cancel_reason`

const orderSelectByIDSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

const orderSelectByIDForUpdateSQL = orderSelectByIDSQL + " FOR UPDATE"

const orderListSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at
LIMIT $2 OFFSET $3
`

const orderPendingTimersSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE timer_phase IS NOT NULL
ORDER BY timer_deadline
`

const orderInsertSQL = `
INSERT INTO orders (
  id, customer_id, restaurant_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
  status, assigned_drone_id, delivery_attempts, timer_phase, timer_deadline,
  created_at, updated_at, ready_at, assigned_at, delivering_at, arrived_at,
  waiting_started_at, delivered_at, delivery_failed_at, returning_at, returned_at,
  cancelled_at, cancel_reason
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,
  $8,$9,$10,$11,$12,
  $13,$14,$15,$16,$17,$18,
  $19,$20,$21,$22,$23,
  $24,$25
)
`

const orderUpdateSQL = `
UPDATE orders SET
  status = $1,
  assigned_drone_id = $2,
  delivery_attempts = $3,
  timer_phase = $4,
  timer_deadline = $5,
  updated_at = $6,
  ready_at = $7,
  assigned_at = $8,
  delivering_at = $9,
  arrived_at = $10,
  waiting_started_at = $11,
  delivered_at = $12,
  delivery_failed_at = $13,
  returning_at = $14,
  returned_at = $15,
  cancelled_at = $16,
  cancel_reason = $17
WHERE id = $18
`

const droneColumns = `
id, status, battery_level, current_lat, current_lng, home_lat, home_lng,
speed_kmh, current_order_id, total_flights, created_at, updated_at`

const droneSelectByIDSQL = `
SELECT ` + droneColumns + `
FROM drones
WHERE id = $1
`

const droneSelectByIDForUpdateSQL = droneSelectByIDSQL + " FOR UPDATE"

const droneListSQL = `
SELECT ` + droneColumns + `
FROM drones
ORDER BY id
`

const droneInsertSQL = `
INSERT INTO drones (
  id, status, battery_level, current_lat, current_lng, home_lat, home_lng,
  speed_kmh, current_order_id, total_flights, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,
  $8,$9,$10,$11,$12
)
`

const droneUpdateSQL = `
UPDATE drones SET
  status = $1,
  battery_level = $2,
  current_lat = $3,
  current_lng = $4,
  home_lat = $5,
  home_lng = $6,
  speed_kmh = $7,
  current_order_id = $8,
  total_flights = $9,
  updated_at = $10
WHERE id = $11
`

const outboxInsertSQL = `
INSERT INTO outbox_events (
  id, event_type, aggregate_type, aggregate_id, payload, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6)
`

const outboxFetchPendingSQL = `
SELECT id, event_type, aggregate_type, aggregate_id, payload, occurred_at
FROM outbox_events
WHERE published_at IS NULL
ORDER BY occurred_at
LIMIT $1
`

const outboxMarkPublishedSQL = `
UPDATE outbox_events
SET published_at = now()
WHERE id = ANY($1::uuid[])
`
