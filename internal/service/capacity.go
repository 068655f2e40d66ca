package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wildflour-bakehouse/api/internal/database"
	"github.com/wildflour-bakehouse/api/internal/dates"
	"github.com/wildflour-bakehouse/api/internal/enum"
)

var (
	ErrDuplicateYear    = errors.New("year already has order dates")
	ErrOpenOrdersExist  = errors.New("date has open orders")
	ErrNegativeCapacity = errors.New("capacity cannot go below zero")
)

// CapacityStore is the slice of database.Queries the capacity service needs.
type CapacityStore interface {
	YearHasOrderDates(ctx context.Context, year int32) (bool, error)
	CreateOrderDate(ctx context.Context, arg database.CreateOrderDateParams) (database.OrderDate, error)
	GetOrderDate(ctx context.Context, id uuid.UUID) (database.OrderDate, error)
	GetOrderDateForUpdate(ctx context.Context, id uuid.UUID) (database.OrderDate, error)
	ListOrderDates(ctx context.Context) ([]database.OrderDate, error)
	ListOpenOrderDatesBetween(ctx context.Context, arg database.ListOpenOrderDatesBetweenParams) ([]database.OrderDate, error)
	AdjustCapacity(ctx context.Context, arg database.AdjustCapacityParams) (database.OrderDate, error)
	SetDayOff(ctx context.Context, arg database.SetDayOffParams) (database.OrderDate, error)
	CountOpenOrdersOnDate(ctx context.Context, arg database.CountOpenOrdersOnDateParams) (int64, error)
}

// NewCapacityStore builds a CapacityStore bound to the given connection
// or transaction.
type NewCapacityStore func(db database.DBTX) CapacityStore

type CapacityService struct {
	pool     TxBeginner
	store    CapacityStore
	newStore NewCapacityStore
	now      func() time.Time
}

func NewCapacityService(pool TxBeginner, store CapacityStore, newStore NewCapacityStore) *CapacityService {
	return &CapacityService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		now:      time.Now,
	}
}

// WithClock replaces the service clock.
func (s *CapacityService) WithClock(now func() time.Time) *CapacityService {
	s.now = now
	return s
}

// SeedYear creates one order date per weekend day of the given year, each
// starting with the given capacity. A year is seeded at most once. The
// existence check runs at READ COMMITTED, so a concurrent seed of the same
// year can slip past it; the date UNIQUE constraint catches that race and
// the insert's unique violation is reported as the duplicate-year error.
func (s *CapacityService) SeedYear(ctx context.Context, year int, perDateCapacity int32) ([]database.OrderDate, error) {
	if perDateCapacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrNegativeCapacity, perDateCapacity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	seeded, err := store.YearHasOrderDates(ctx, int32(year))
	if err != nil {
		return nil, fmt.Errorf("check year: %w", err)
	}
	if seeded {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateYear, year)
	}

	weekends := dates.WeekendsOfYear(year)
	created := make([]database.OrderDate, 0, len(weekends))
	for _, day := range weekends {
		od, err := store.CreateOrderDate(ctx, database.CreateOrderDateParams{
			Date:            pgDate(day),
			RemainingOrders: perDateCapacity,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: %d", ErrDuplicateYear, year)
			}
			return nil, fmt.Errorf("create order date %s: %w", day.Format(time.DateOnly), err)
		}
		created = append(created, od)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return created, nil
}

// ListAll returns every order date, open or not, for the admin calendar.
func (s *CapacityService) ListAll(ctx context.Context) ([]database.OrderDate, error) {
	return s.store.ListOrderDates(ctx)
}

// ListOpen returns the dates inside the current admission window that can
// still take at least one order. This is what the order form shows.
func (s *CapacityService) ListOpen(ctx context.Context) ([]database.OrderDate, error) {
	start, end := dates.AdmissionWindow(s.now())
	return s.store.ListOpenOrderDatesBetween(ctx, database.ListOpenOrderDatesBetweenParams{
		StartDate: pgDate(start),
		EndDate:   pgDate(end),
	})
}

// SetDayOff marks a date as closed or reopens it. A date with open orders
// against it cannot be closed; those orders have to be cancelled or
// rescheduled first. The ledger row is locked before the count so a
// concurrent placement cannot commit an order between the check and the
// close.
func (s *CapacityService) SetDayOff(ctx context.Context, id uuid.UUID, dayOff bool) (database.OrderDate, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.OrderDate{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	od, err := store.GetOrderDateForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDate{}, ErrDateNotFound
		}
		return database.OrderDate{}, fmt.Errorf("get order date: %w", err)
	}

	if dayOff {
		open, err := store.CountOpenOrdersOnDate(ctx, database.CountOpenOrdersOnDateParams{
			PickupDate: od.Date,
			Terminal1:  enum.StatusCompleted,
			Terminal2:  enum.StatusCancelled,
		})
		if err != nil {
			return database.OrderDate{}, fmt.Errorf("count open orders: %w", err)
		}
		if open > 0 {
			return database.OrderDate{}, fmt.Errorf("%w: %d open", ErrOpenOrdersExist, open)
		}
	}

	updated, err := store.SetDayOff(ctx, database.SetDayOffParams{ID: id, DayOff: dayOff})
	if err != nil {
		return database.OrderDate{}, fmt.Errorf("set day off: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.OrderDate{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// AdjustCapacity adds delta to a date's remaining order count. The guarded
// update refuses to take the count below zero; a zero-row result is read
// back to tell a missing date from an over-large decrement.
func (s *CapacityService) AdjustCapacity(ctx context.Context, id uuid.UUID, delta int32) (database.OrderDate, error) {
	updated, err := s.store.AdjustCapacity(ctx, database.AdjustCapacityParams{ID: id, Delta: delta})
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.OrderDate{}, fmt.Errorf("adjust capacity: %w", err)
	}

	od, err := s.store.GetOrderDate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDate{}, ErrDateNotFound
		}
		return database.OrderDate{}, fmt.Errorf("get order date: %w", err)
	}
	return database.OrderDate{}, fmt.Errorf("%w: %d remaining, delta %d", ErrNegativeCapacity, od.RemainingOrders, delta)
}
