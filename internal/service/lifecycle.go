package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/wildflour-bakehouse/api/internal/database"
	"github.com/wildflour-bakehouse/api/internal/dates"
	"github.com/wildflour-bakehouse/api/internal/enum"
)

// transitionEffects are the side effects of entering a status. Keeping them
// in a table makes the transition matrix exhaustively testable instead of
// scattering side effects across branches.
type transitionEffects struct {
	markPaid        bool
	releaseCapacity bool
	requireReason   bool
	stampCancel     bool
}

var effectsByTarget = map[string]transitionEffects{
	enum.StatusApprovedAndPaid: {markPaid: true},
	enum.StatusCompleted:       {markPaid: true},
	enum.StatusCancelled:       {releaseCapacity: true, requireReason: true, stampCancel: true},
}

// ChangeStatus moves an order to a new status, applying the transition's
// side effects atomically with the status write. Cancelling credits the
// order's capacity back to its pickup date in the same transaction, credit
// first, so the ledger can never end up under-credited.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID uuid.UUID, newStatus, reason string) (database.Order, error) {
	if !enum.IsValidStatus(newStatus) {
		return database.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	updated, err := s.applyTransition(ctx, store, order, newStatus, reason)
	if err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// CancelOrder cancels an order on behalf of the given actor. Customers are
// bound by the same Friday 18:00 deadline that governs placement; staff may
// cancel at any time before the order reaches a terminal state.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, reason, actor string) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if actor == enum.ActorCustomer && !dates.BeforeCutoff(s.now(), order.PickupDate.Time) {
		return database.Order{}, ErrPastDeadline
	}

	updated, err := s.applyTransition(ctx, store, order, enum.StatusCancelled, reason)
	if err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// applyTransition enforces the transition guards and side effects for an
// already-locked order. Runs inside the caller's transaction.
func (s *OrderService) applyTransition(ctx context.Context, store OrderStore, order database.Order, newStatus, reason string) (database.Order, error) {
	// Terminal wins over same-status: re-cancelling a cancelled order is a
	// terminal-state violation, not a no-op.
	if enum.IsTerminalStatus(order.Status) {
		return database.Order{}, fmt.Errorf("%w: %q", ErrTerminalState, order.Status)
	}
	if order.Status == newStatus {
		return database.Order{}, fmt.Errorf("%w: %q", ErrSameStatus, newStatus)
	}

	effects := effectsByTarget[newStatus]

	if effects.requireReason && strings.TrimSpace(reason) == "" {
		return database.Order{}, ErrReasonRequired
	}

	if effects.releaseCapacity {
		if _, err := store.ReleaseCapacity(ctx, database.ReleaseCapacityParams{
			Date:   order.PickupDate,
			Amount: order.TotalAmount,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, ErrDateNotFound
			}
			return database.Order{}, fmt.Errorf("release capacity: %w", err)
		}
	}

	params := database.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: newStatus,
		Paid:   order.Paid || effects.markPaid,
	}
	if effects.stampCancel {
		params.CancelReason = pgtype.Text{String: strings.TrimSpace(reason), Valid: true}
		params.CancelledAt = pgtype.Timestamptz{Time: s.now(), Valid: true}
	}

	updated, err := store.UpdateOrderStatus(ctx, params)
	if err != nil {
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

// Reschedule moves an order to a new pickup date. The new date is validated
// exactly like a fresh placement, then one transaction reserves the new
// date, releases the old one and rewrites the order. If the new date cannot
// take the order nothing changes, the old reservation included.
func (s *OrderService) Reschedule(ctx context.Context, orderID uuid.UUID, newDate time.Time) (database.Order, error) {
	now := s.now()
	if !dates.WithinAdmissionWindow(newDate, now) {
		return database.Order{}, ErrOutsideWindow
	}
	if !dates.BeforeCutoff(now, newDate) {
		return database.Order{}, ErrPastDeadline
	}

	var lastErr error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		order, err := s.rescheduleTx(ctx, orderID, newDate)
		if err == nil {
			return order, nil
		}
		if isRetryableTxError(err) {
			lastErr = err
			continue
		}
		return database.Order{}, err
	}
	return database.Order{}, lastErr
}

func (s *OrderService) rescheduleTx(ctx context.Context, orderID uuid.UUID, newDate time.Time) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if enum.IsTerminalStatus(order.Status) {
		return database.Order{}, fmt.Errorf("%w: %q", ErrTerminalState, order.Status)
	}

	target := pgDate(newDate)
	if order.PickupDate.Time.Equal(target.Time) {
		return database.Order{}, ErrSamePickupDate
	}

	// Reserve the new date first; the old date's release only happens once
	// the new reservation holds.
	if _, err := store.ReserveCapacity(ctx, database.ReserveCapacityParams{
		Date:   target,
		Amount: order.TotalAmount,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, s.classifyReserveFailure(ctx, store, target, order.TotalAmount)
		}
		return database.Order{}, fmt.Errorf("reserve capacity: %w", err)
	}

	if _, err := store.ReleaseCapacity(ctx, database.ReleaseCapacityParams{
		Date:   order.PickupDate,
		Amount: order.TotalAmount,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrDateNotFound
		}
		return database.Order{}, fmt.Errorf("release capacity: %w", err)
	}

	updated, err := store.UpdateOrderPickupDate(ctx, database.UpdateOrderPickupDateParams{
		ID:         order.ID,
		PickupDate: target,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update pickup date: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}
