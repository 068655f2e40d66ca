package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, first_name, last_name, email, phone, note, allergy,
placed_at, pickup_date, pickup_time, status, paid, cancel_reason, cancelled_at,
total_amount, total_cost, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.FirstName, &o.LastName, &o.Email, &o.Phone, &o.Note, &o.Allergy,
		&o.PlacedAt, &o.PickupDate, &o.PickupTime, &o.Status, &o.Paid,
		&o.CancelReason, &o.CancelledAt, &o.TotalAmount, &o.TotalCost,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

const createOrder = `
INSERT INTO orders (
    first_name, last_name, email, phone, note, allergy,
    placed_at, pickup_date, pickup_time, status, paid, total_amount, total_cost
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, $11, $12)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Note        pgtype.Text
	Allergy     pgtype.Text
	PlacedAt    pgtype.Timestamptz
	PickupDate  pgtype.Date
	PickupTime  string
	Status      string
	TotalAmount int32
	TotalCost   pgtype.Numeric
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.FirstName, arg.LastName, arg.Email, arg.Phone, arg.Note, arg.Allergy,
		arg.PlacedAt, arg.PickupDate, arg.PickupTime, arg.Status,
		arg.TotalAmount, arg.TotalCost,
	))
}

const createOrderItem = `
INSERT INTO order_items (order_id, position, name, price, package_quantity, package_count)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, position, name, price, package_quantity, package_count
`

type CreateOrderItemParams struct {
	OrderID         uuid.UUID
	Position        int32
	Name            string
	Price           pgtype.Numeric
	PackageQuantity int32
	PackageCount    int32
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var item OrderItem
	err := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.Position, arg.Name, arg.Price, arg.PackageQuantity, arg.PackageCount,
	).Scan(&item.ID, &item.OrderID, &item.Position, &item.Name, &item.Price, &item.PackageQuantity, &item.PackageCount)
	return item, err
}

const createOrderItemFlavour = `
INSERT INTO order_item_flavours (order_item_id, position, name, quantity)
VALUES ($1, $2, $3, $4)
RETURNING id, order_item_id, position, name, quantity
`

type CreateOrderItemFlavourParams struct {
	OrderItemID uuid.UUID
	Position    int32
	Name        string
	Quantity    int32
}

func (q *Queries) CreateOrderItemFlavour(ctx context.Context, arg CreateOrderItemFlavourParams) (OrderItemFlavour, error) {
	var f OrderItemFlavour
	err := q.db.QueryRow(ctx, createOrderItemFlavour,
		arg.OrderItemID, arg.Position, arg.Name, arg.Quantity,
	).Scan(&f.ID, &f.OrderItemID, &f.Position, &f.Name, &f.Quantity)
	return f, err
}

const getOrder = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

// GetOrderForUpdate takes a row lock so lifecycle transitions on the same
// order serialize within their transactions.
const getOrderForUpdate = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::date IS NULL OR pickup_date = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersParams struct {
	Status     pgtype.Text
	PickupDate pgtype.Date
	Limit      int32
	Offset     int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.PickupDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrderItemsByOrder = `
SELECT id, order_id, position, name, price, package_quantity, package_count
FROM order_items
WHERE order_id = $1
ORDER BY position
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Position, &item.Name, &item.Price, &item.PackageQuantity, &item.PackageCount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const listOrderItemFlavoursByItem = `
SELECT id, order_item_id, position, name, quantity
FROM order_item_flavours
WHERE order_item_id = $1
ORDER BY position
`

func (q *Queries) ListOrderItemFlavoursByItem(ctx context.Context, orderItemID uuid.UUID) ([]OrderItemFlavour, error) {
	rows, err := q.db.Query(ctx, listOrderItemFlavoursByItem, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flavours []OrderItemFlavour
	for rows.Next() {
		var f OrderItemFlavour
		if err := rows.Scan(&f.ID, &f.OrderItemID, &f.Position, &f.Name, &f.Quantity); err != nil {
			return nil, err
		}
		flavours = append(flavours, f)
	}
	return flavours, rows.Err()
}

const updateOrderStatus = `
UPDATE orders
SET status = $2,
    paid = $3,
    cancel_reason = COALESCE($4, cancel_reason),
    cancelled_at = COALESCE($5, cancelled_at),
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID           uuid.UUID
	Status       string
	Paid         bool
	CancelReason pgtype.Text
	CancelledAt  pgtype.Timestamptz
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID, arg.Status, arg.Paid, arg.CancelReason, arg.CancelledAt,
	))
}

const updateOrderPickupDate = `
UPDATE orders
SET pickup_date = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderPickupDateParams struct {
	ID         uuid.UUID
	PickupDate pgtype.Date
}

func (q *Queries) UpdateOrderPickupDate(ctx context.Context, arg UpdateOrderPickupDateParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderPickupDate, arg.ID, arg.PickupDate))
}
