package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/wildflour-bakehouse/api/internal/database"
	"github.com/wildflour-bakehouse/api/internal/dates"
	"github.com/wildflour-bakehouse/api/internal/enum"
)

const maxTxRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("order items are required")
	ErrInvalidPackageCount  = errors.New("package count must be > 0")
	ErrInvalidFlavourAmount = errors.New("flavour quantity must be > 0")
	ErrUnknownSaleItem      = errors.New("unknown sale item")
	ErrUnknownFlavour       = errors.New("unknown flavour")
	ErrQuantityMismatch     = errors.New("flavour quantities do not match package size")
	ErrOutsideWindow        = errors.New("pickup date is outside the ordering window")
	ErrPastDeadline         = errors.New("past the Friday 18:00 ordering deadline")
	ErrDateNotFound         = errors.New("no pickup on that date")
	ErrDateClosed           = errors.New("date is closed for orders")
	ErrCapacityExceeded     = errors.New("not enough remaining orders on that date")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrSameStatus           = errors.New("order already has that status")
	ErrTerminalState        = errors.New("order is in a terminal state")
	ErrReasonRequired       = errors.New("cancellation reason is required")
	ErrSamePickupDate       = errors.New("order already has that pickup date")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed for order admission and lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	ListSaleItems(ctx context.Context) ([]database.SaleItem, error)
	ListFlavours(ctx context.Context) ([]database.Flavour, error)
	GetOrderDateByDate(ctx context.Context, date pgtype.Date) (database.OrderDate, error)
	ReserveCapacity(ctx context.Context, arg database.ReserveCapacityParams) (database.OrderDate, error)
	ReleaseCapacity(ctx context.Context, arg database.ReleaseCapacityParams) (database.OrderDate, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemFlavour(ctx context.Context, arg database.CreateOrderItemFlavourParams) (database.OrderItemFlavour, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderPickupDate(ctx context.Context, arg database.UpdateOrderPickupDateParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// PlaceOrderRequest is the validated input for placing an order. Contact
// fields are assumed normalized by the transport layer; date checks and item
// reconciliation happen here.
type PlaceOrderRequest struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Note       string
	Allergy    string
	PickupDate time.Time
	PickupTime string
	Items      []OrderItemRequest
}

// OrderItemRequest is a single line item: so many packages of a sale item,
// split across the named flavours.
type OrderItemRequest struct {
	Name         string
	PackageCount int32
	Flavours     []FlavourQuantityRequest
}

// FlavourQuantityRequest is one flavour choice within a line item.
type FlavourQuantityRequest struct {
	Name     string
	Quantity int32
}

// PlaceOrderResult is the created order with its line items.
type PlaceOrderResult struct {
	Order database.Order
	Items []OrderItemResult
}

// OrderItemResult is a stored line item with its flavour rows.
type OrderItemResult struct {
	Item     database.OrderItem
	Flavours []database.OrderItemFlavour
}

// OrderService handles order admission and lifecycle business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	now      func() time.Time
}

// NewOrderService creates a new OrderService. The clock defaults to
// time.Now; callers override it with WithClock.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, now: time.Now}
}

// WithClock replaces the service clock.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

// pricedItem is a line item hydrated with catalog price and package size.
type pricedItem struct {
	name            string
	price           decimal.Decimal
	packageQuantity int32
	packageCount    int32
	flavours        []FlavourQuantityRequest
}

// PlaceOrder admits a candidate order: date window and deadline checks,
// item validation against the catalog, then one transaction that debits the
// date's capacity and inserts the order. Nothing is written unless every
// step succeeds. Retries a bounded number of times when the transaction
// loses a serialization race.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, item := range req.Items {
		if item.PackageCount <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidPackageCount)
		}
		for j, f := range item.Flavours {
			if f.Quantity <= 0 {
				return nil, fmt.Errorf("items[%d].flavours[%d]: %w", i, j, ErrInvalidFlavourAmount)
			}
		}
	}

	now := s.now()
	if !dates.WithinAdmissionWindow(req.PickupDate, now) {
		return nil, ErrOutsideWindow
	}
	if !dates.BeforeCutoff(now, req.PickupDate) {
		return nil, ErrPastDeadline
	}

	var lastErr error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		result, err := s.placeOrderTx(ctx, req, now)
		if err == nil {
			return result, nil
		}
		if isRetryableTxError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// placeOrderTx executes the full admission in a single transaction.
func (s *OrderService) placeOrderTx(ctx context.Context, req PlaceOrderRequest, now time.Time) (*PlaceOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	items, totalAmount, totalCost, err := validateAndPriceItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	pickup := pgDate(req.PickupDate)
	if _, err := store.ReserveCapacity(ctx, database.ReserveCapacityParams{
		Date:   pickup,
		Amount: totalAmount,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyReserveFailure(ctx, store, pickup, totalAmount)
		}
		return nil, fmt.Errorf("reserve capacity: %w", err)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		Note:        textOrNull(req.Note),
		Allergy:     textOrNull(req.Allergy),
		PlacedAt:    pgtype.Timestamptz{Time: now, Valid: true},
		PickupDate:  pickup,
		PickupTime:  req.PickupTime,
		Status:      enum.StatusWaitingForApproval,
		TotalAmount: totalAmount,
		TotalCost:   decimalToNumeric(totalCost),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var itemResults []OrderItemResult
	for pos, pi := range items {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:         order.ID,
			Position:        int32(pos),
			Name:            pi.name,
			Price:           decimalToNumeric(pi.price),
			PackageQuantity: pi.packageQuantity,
			PackageCount:    pi.packageCount,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		var flavourRows []database.OrderItemFlavour
		for fpos, f := range pi.flavours {
			row, err := store.CreateOrderItemFlavour(ctx, database.CreateOrderItemFlavourParams{
				OrderItemID: item.ID,
				Position:    int32(fpos),
				Name:        f.Name,
				Quantity:    f.Quantity,
			})
			if err != nil {
				return nil, fmt.Errorf("create order item flavour: %w", err)
			}
			flavourRows = append(flavourRows, row)
		}

		itemResults = append(itemResults, OrderItemResult{Item: item, Flavours: flavourRows})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &PlaceOrderResult{Order: order, Items: itemResults}, nil
}

// classifyReserveFailure turns a zero-row capacity debit into the specific
// domain error: missing row, closed day, or not enough capacity.
func (s *OrderService) classifyReserveFailure(ctx context.Context, store OrderStore, date pgtype.Date, amount int32) error {
	row, err := store.GetOrderDateByDate(ctx, date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDateNotFound
		}
		return fmt.Errorf("get order date: %w", err)
	}
	if row.DayOff {
		return ErrDateClosed
	}
	return fmt.Errorf("%w: %d requested, %d remaining", ErrCapacityExceeded, amount, row.RemainingOrders)
}

// validateAndPriceItems checks every line item against a single catalog
// snapshot, copies price and package size onto it, and enforces the exact
// flavour-quantity reconciliation. Returns the hydrated items, the total
// package count (the capacity debit) and the total cost.
func validateAndPriceItems(ctx context.Context, store OrderStore, reqItems []OrderItemRequest) ([]pricedItem, int32, decimal.Decimal, error) {
	saleItems, err := store.ListSaleItems(ctx)
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("list sale items: %w", err)
	}
	flavours, err := store.ListFlavours(ctx)
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("list flavours: %w", err)
	}

	saleByName := make(map[string]database.SaleItem, len(saleItems))
	for _, s := range saleItems {
		saleByName[s.Name] = s
	}
	flavourNames := make(map[string]bool, len(flavours))
	for _, f := range flavours {
		flavourNames[f.Name] = true
	}

	var (
		items       []pricedItem
		totalAmount int32
		totalCost   = decimal.Zero
	)
	for i, item := range reqItems {
		catalogItem, ok := saleByName[item.Name]
		if !ok {
			return nil, 0, decimal.Zero, fmt.Errorf("items[%d]: %w: %q", i, ErrUnknownSaleItem, item.Name)
		}

		var flavourSum int32
		for j, f := range item.Flavours {
			if !flavourNames[f.Name] {
				return nil, 0, decimal.Zero, fmt.Errorf("items[%d].flavours[%d]: %w: %q", i, j, ErrUnknownFlavour, f.Name)
			}
			flavourSum += f.Quantity
		}

		// Snapshot semantics: price and package size are copied off the
		// catalog now and never re-read for this order.
		price := numericToDecimal(catalogItem.Price)
		want := item.PackageCount * catalogItem.PackageQuantity
		if flavourSum != want {
			return nil, 0, decimal.Zero, fmt.Errorf(
				"items[%d]: %w: %d flavour units for %d package units",
				i, ErrQuantityMismatch, flavourSum, want,
			)
		}

		totalAmount += item.PackageCount
		totalCost = totalCost.Add(price.Mul(decimal.NewFromInt32(item.PackageCount)))

		items = append(items, pricedItem{
			name:            catalogItem.Name,
			price:           price,
			packageQuantity: catalogItem.PackageQuantity,
			packageCount:    item.PackageCount,
			flavours:        item.Flavours,
		})
	}

	return items, totalAmount, totalCost, nil
}

// --- Helpers ---

// isRetryableTxError reports whether the transaction lost a concurrency race
// (serialization failure or deadlock) and is worth one more attempt.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// isUniqueViolation reports a SQLSTATE 23505 unique-constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: dates.DateOnly(t), Valid: true}
}

func textOrNull(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
