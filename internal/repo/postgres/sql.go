package postgres

const orderColumns = `id, user_id, pos_x, pos_y, weight_kg, priority, arrival, status,
       assigned_drone_id, created_at, updated_at, delivered_at`

const orderSelectByIDSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

const orderListSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR user_id = $2)
ORDER BY arrival
LIMIT $3 OFFSET $4
`

// an empty status array locks every order
const orderListForUpdateSQL = `
SELECT ` + orderColumns + `
FROM orders
WHERE cardinality($1::text[]) = 0 OR status = ANY($1)
ORDER BY arrival
FOR UPDATE
`

const orderInsertSQL = `
INSERT INTO orders (
  id, user_id, pos_x, pos_y, weight_kg, priority, arrival, status,
  assigned_drone_id, created_at, updated_at, delivered_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,
  $9,$10,$11,$12
)
`

const orderUpdateSQL = `
UPDATE orders SET
  status = $1,
  assigned_drone_id = $2,
  updated_at = $3,
  delivered_at = $4
WHERE id = $5
`

const droneColumns = `id, capacity_kg, range_km, pos_x, pos_y, battery, status,
       route, route_cursor, target_order_id, created_at, updated_at`

const droneSelectByIDSQL = `
SELECT ` + droneColumns + `
FROM drones
WHERE id = $1
`

const droneListSQL = `
SELECT ` + droneColumns + `
FROM drones
ORDER BY id
`

const droneListForUpdateSQL = droneListSQL + " FOR UPDATE"

const droneMaxIDSQL = `SELECT COALESCE(MAX(id), 0) FROM drones`

const droneInsertSQL = `
INSERT INTO drones (
  id, capacity_kg, range_km, pos_x, pos_y, battery, status,
  route, route_cursor, target_order_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,
  $8,$9,$10,$11,$12
)
`

const droneUpdateSQL = `
UPDATE drones SET
  pos_x = $1,
  pos_y = $2,
  battery = $3,
  status = $4,
  route = $5,
  route_cursor = $6,
  target_order_id = $7,
  updated_at = $8
WHERE id = $9
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
ORDER BY occurred_at, seq
LIMIT $1
`

const outboxMarkPublishedSQL = `
UPDATE outbox_events
SET published_at = now()
WHERE id = ANY($1::uuid[])
`
