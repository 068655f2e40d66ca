package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	IsAdmin        bool
	CreatedAt      time.Time
}

type SaleItem struct {
	ID              uuid.UUID
	Name            string
	Description     pgtype.Text
	Price           pgtype.Numeric
	PackageQuantity int32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Flavour struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Special     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderDate struct {
	ID              uuid.UUID
	Date            pgtype.Date
	RemainingOrders int32
	DayOff          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Order struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Note         pgtype.Text
	Allergy      pgtype.Text
	PlacedAt     time.Time
	PickupDate   pgtype.Date
	PickupTime   string
	Status       string
	Paid         bool
	CancelReason pgtype.Text
	CancelledAt  pgtype.Timestamptz
	TotalAmount  int32
	TotalCost    pgtype.Numeric
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	Position        int32
	Name            string
	Price           pgtype.Numeric
	PackageQuantity int32
	PackageCount    int32
}

type OrderItemFlavour struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
	Position    int32
	Name        string
	Quantity    int32
}
