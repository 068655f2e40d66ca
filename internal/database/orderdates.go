package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderDateColumns = `id, date, remaining_orders, day_off, created_at, updated_at`

func scanOrderDate(row pgx.Row) (OrderDate, error) {
	var d OrderDate
	err := row.Scan(&d.ID, &d.Date, &d.RemainingOrders, &d.DayOff, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const yearHasOrderDates = `
SELECT EXISTS (
    SELECT 1 FROM order_dates
    WHERE date >= make_date($1, 1, 1) AND date < make_date($1 + 1, 1, 1)
)
`

// YearHasOrderDates reports whether any ledger row exists for the given year.
func (q *Queries) YearHasOrderDates(ctx context.Context, year int32) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, yearHasOrderDates, year).Scan(&exists)
	return exists, err
}

const createOrderDate = `
INSERT INTO order_dates (date, remaining_orders)
VALUES ($1, $2)
RETURNING ` + orderDateColumns

type CreateOrderDateParams struct {
	Date            pgtype.Date
	RemainingOrders int32
}

func (q *Queries) CreateOrderDate(ctx context.Context, arg CreateOrderDateParams) (OrderDate, error) {
	return scanOrderDate(q.db.QueryRow(ctx, createOrderDate, arg.Date, arg.RemainingOrders))
}

const getOrderDateByDate = `
SELECT ` + orderDateColumns + ` FROM order_dates WHERE date = $1
`

func (q *Queries) GetOrderDateByDate(ctx context.Context, date pgtype.Date) (OrderDate, error) {
	return scanOrderDate(q.db.QueryRow(ctx, getOrderDateByDate, date))
}

const getOrderDate = `
SELECT ` + orderDateColumns + ` FROM order_dates WHERE id = $1
`

func (q *Queries) GetOrderDate(ctx context.Context, id uuid.UUID) (OrderDate, error) {
	return scanOrderDate(q.db.QueryRow(ctx, getOrderDate, id))
}

// GetOrderDateForUpdate takes a row lock so a day-off write serializes
// against the guarded capacity debit of a concurrent placement.
const getOrderDateForUpdate = `
SELECT ` + orderDateColumns + ` FROM order_dates WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetOrderDateForUpdate(ctx context.Context, id uuid.UUID) (OrderDate, error) {
	return scanOrderDate(q.db.QueryRow(ctx, getOrderDateForUpdate, id))
}

const listOrderDates = `
SELECT ` + orderDateColumns + ` FROM order_dates ORDER BY date
`

func (q *Queries) ListOrderDates(ctx context.Context) ([]OrderDate, error) {
	rows, err := q.db.Query(ctx, listOrderDates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrderDates(rows)
}

const listOpenOrderDatesBetween = `
SELECT ` + orderDateColumns + ` FROM order_dates
WHERE date >= $1 AND date <= $2 AND NOT day_off
ORDER BY date
`

type ListOpenOrderDatesBetweenParams struct {
	StartDate pgtype.Date
	EndDate   pgtype.Date
}

func (q *Queries) ListOpenOrderDatesBetween(ctx context.Context, arg ListOpenOrderDatesBetweenParams) ([]OrderDate, error) {
	rows, err := q.db.Query(ctx, listOpenOrderDatesBetween, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrderDates(rows)
}

func collectOrderDates(rows pgx.Rows) ([]OrderDate, error) {
	var items []OrderDate
	for rows.Next() {
		d, err := scanOrderDate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// The debit is a single guarded UPDATE so concurrent reservations against the
// same date serialize on the row and can never drive the counter negative.
// Zero rows updated (pgx.ErrNoRows) means the date is missing, closed, or
// lacks capacity; callers disambiguate with a follow-up read.
const reserveCapacity = `
UPDATE order_dates
SET remaining_orders = remaining_orders - $2, updated_at = now()
WHERE date = $1 AND NOT day_off AND remaining_orders >= $2
RETURNING ` + orderDateColumns

type ReserveCapacityParams struct {
	Date   pgtype.Date
	Amount int32
}

func (q *Queries) ReserveCapacity(ctx context.Context, arg ReserveCapacityParams) (OrderDate, error) {
	return scanOrderDate(q.db.QueryRow(ctx, reserveCapacity, arg.Date, arg.Amount))
}

// The credit is unconditional: releases are allowed on closed days too.
const releaseCapacity = `
UPDATE order_dates
SET remaining_orders = remaining_orders + $2, updated_at = now()
WHERE date = $1
RETURNING ` + orderDateColumns

type ReleaseCapacityParams struct {
	Date   pgtype.Date
	Amount int32
}

func (q *Queries) ReleaseCapacity(ctx context.Context, arg ReleaseCapacityParams) (OrderDate, error) {
	return scanOrderDate(q.db.QueryRow(ctx, releaseCapacity, arg.Date, arg.Amount))
}

const adjustCapacity = `
UPDATE order_dates
SET remaining_orders = remaining_orders + $2, updated_at = now()
WHERE id = $1 AND remaining_orders + $2 >= 0
RETURNING ` + orderDateColumns

type AdjustCapacityParams struct {
	ID    uuid.UUID
	Delta int32
}

func (q *Queries) AdjustCapacity(ctx context.Context, arg AdjustCapacityParams) (OrderDate, error) {
	return scanOrderDate(q.db.QueryRow(ctx, adjustCapacity, arg.ID, arg.Delta))
}

const setDayOff = `
UPDATE order_dates
SET day_off = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderDateColumns

type SetDayOffParams struct {
	ID     uuid.UUID
	DayOff bool
}

func (q *Queries) SetDayOff(ctx context.Context, arg SetDayOffParams) (OrderDate, error) {
	return scanOrderDate(q.db.QueryRow(ctx, setDayOff, arg.ID, arg.DayOff))
}

const countOpenOrdersOnDate = `
SELECT COUNT(*) FROM orders
WHERE pickup_date = $1 AND status NOT IN ($2, $3)
`

type CountOpenOrdersOnDateParams struct {
	PickupDate pgtype.Date
	Terminal1  string
	Terminal2  string
}

func (q *Queries) CountOpenOrdersOnDate(ctx context.Context, arg CountOpenOrdersOnDateParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOpenOrdersOnDate, arg.PickupDate, arg.Terminal1, arg.Terminal2).Scan(&count)
	return count, err
}
