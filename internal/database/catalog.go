package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Sale items ---

const saleItemColumns = `id, name, description, price, package_quantity, created_at, updated_at`

func scanSaleItem(row pgx.Row) (SaleItem, error) {
	var s SaleItem
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.PackageQuantity, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const listSaleItems = `
SELECT ` + saleItemColumns + ` FROM sale_items ORDER BY name
`

func (q *Queries) ListSaleItems(ctx context.Context) ([]SaleItem, error) {
	rows, err := q.db.Query(ctx, listSaleItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SaleItem
	for rows.Next() {
		s, err := scanSaleItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const getSaleItem = `
SELECT ` + saleItemColumns + ` FROM sale_items WHERE id = $1
`

func (q *Queries) GetSaleItem(ctx context.Context, id uuid.UUID) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, getSaleItem, id))
}

const createSaleItem = `
INSERT INTO sale_items (name, description, price, package_quantity)
VALUES ($1, $2, $3, $4)
RETURNING ` + saleItemColumns

type CreateSaleItemParams struct {
	Name            string
	Description     pgtype.Text
	Price           pgtype.Numeric
	PackageQuantity int32
}

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, createSaleItem, arg.Name, arg.Description, arg.Price, arg.PackageQuantity))
}

const updateSaleItem = `
UPDATE sale_items
SET name = $2, description = $3, price = $4, package_quantity = $5, updated_at = now()
WHERE id = $1
RETURNING ` + saleItemColumns

type UpdateSaleItemParams struct {
	ID              uuid.UUID
	Name            string
	Description     pgtype.Text
	Price           pgtype.Numeric
	PackageQuantity int32
}

func (q *Queries) UpdateSaleItem(ctx context.Context, arg UpdateSaleItemParams) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, updateSaleItem, arg.ID, arg.Name, arg.Description, arg.Price, arg.PackageQuantity))
}

const deleteSaleItem = `
DELETE FROM sale_items WHERE id = $1 RETURNING id
`

func (q *Queries) DeleteSaleItem(ctx context.Context, id uuid.UUID) error {
	var deleted uuid.UUID
	return q.db.QueryRow(ctx, deleteSaleItem, id).Scan(&deleted)
}

// --- Flavours ---

const flavourColumns = `id, name, description, special, created_at, updated_at`

func scanFlavour(row pgx.Row) (Flavour, error) {
	var f Flavour
	err := row.Scan(&f.ID, &f.Name, &f.Description, &f.Special, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

const listFlavours = `
SELECT ` + flavourColumns + ` FROM flavours ORDER BY name
`

func (q *Queries) ListFlavours(ctx context.Context) ([]Flavour, error) {
	rows, err := q.db.Query(ctx, listFlavours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flavours []Flavour
	for rows.Next() {
		f, err := scanFlavour(rows)
		if err != nil {
			return nil, err
		}
		flavours = append(flavours, f)
	}
	return flavours, rows.Err()
}

const getFlavour = `
SELECT ` + flavourColumns + ` FROM flavours WHERE id = $1
`

func (q *Queries) GetFlavour(ctx context.Context, id uuid.UUID) (Flavour, error) {
	return scanFlavour(q.db.QueryRow(ctx, getFlavour, id))
}

const createFlavour = `
INSERT INTO flavours (name, description, special)
VALUES ($1, $2, $3)
RETURNING ` + flavourColumns

type CreateFlavourParams struct {
	Name        string
	Description pgtype.Text
	Special     bool
}

func (q *Queries) CreateFlavour(ctx context.Context, arg CreateFlavourParams) (Flavour, error) {
	return scanFlavour(q.db.QueryRow(ctx, createFlavour, arg.Name, arg.Description, arg.Special))
}

const updateFlavour = `
UPDATE flavours
SET name = $2, description = $3, special = $4, updated_at = now()
WHERE id = $1
RETURNING ` + flavourColumns

type UpdateFlavourParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Special     bool
}

func (q *Queries) UpdateFlavour(ctx context.Context, arg UpdateFlavourParams) (Flavour, error) {
	return scanFlavour(q.db.QueryRow(ctx, updateFlavour, arg.ID, arg.Name, arg.Description, arg.Special))
}

const deleteFlavour = `
DELETE FROM flavours WHERE id = $1 RETURNING id
`

func (q *Queries) DeleteFlavour(ctx context.Context, id uuid.UUID) error {
	var deleted uuid.UUID
	return q.db.QueryRow(ctx, deleteFlavour, id).Scan(&deleted)
}
