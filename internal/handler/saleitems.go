package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/wildflour-bakehouse/api/internal/database"
)

// SaleItemStore defines the database methods needed by sale item handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SaleItemStore interface {
	ListSaleItems(ctx context.Context) ([]database.SaleItem, error)
	GetSaleItem(ctx context.Context, id uuid.UUID) (database.SaleItem, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
	UpdateSaleItem(ctx context.Context, arg database.UpdateSaleItemParams) (database.SaleItem, error)
	DeleteSaleItem(ctx context.Context, id uuid.UUID) error
}

// SaleItemHandler handles sale item catalog endpoints.
type SaleItemHandler struct {
	store SaleItemStore
}

// NewSaleItemHandler creates a new SaleItemHandler.
func NewSaleItemHandler(store SaleItemStore) *SaleItemHandler {
	return &SaleItemHandler{store: store}
}

// RegisterPublicRoutes registers the catalog read for the order form.
func (h *SaleItemHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/sale-items", h.List)
}

// RegisterAdminRoutes registers the catalog admin endpoints.
func (h *SaleItemHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/sale-items", h.Create)
	r.Get("/sale-items/{id}", h.Get)
	r.Put("/sale-items/{id}", h.Update)
	r.Delete("/sale-items/{id}", h.Delete)
}

// --- Request / Response types ---

type saleItemRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           string `json:"price"`
	PackageQuantity int32  `json:"package_quantity"`
}

type saleItemResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description"`
	Price           string    `json:"price"`
	PackageQuantity int32     `json:"package_quantity"`
}

// --- Handlers ---

// List handles GET /sale-items.
func (h *SaleItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListSaleItems(r.Context())
	if err != nil {
		log.Printf("ERROR: list sale items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]saleItemResponse, len(items))
	for i, item := range items {
		resp[i] = toSaleItemResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /sale-items/{id}.
func (h *SaleItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale item ID"})
		return
	}

	item, err := h.store.GetSaleItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale item not found"})
			return
		}
		log.Printf("ERROR: get sale item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toSaleItemResponse(item))
}

// Create handles POST /sale-items.
func (h *SaleItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	params, ok := h.decodeParams(w, r)
	if !ok {
		return
	}

	item, err := h.store.CreateSaleItem(r.Context(), database.CreateSaleItemParams{
		Name:            params.Name,
		Description:     params.Description,
		Price:           params.Price,
		PackageQuantity: params.PackageQuantity,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sale item name already exists"})
			return
		}
		log.Printf("ERROR: create sale item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toSaleItemResponse(item))
}

// Update handles PUT /sale-items/{id}.
func (h *SaleItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale item ID"})
		return
	}

	params, ok := h.decodeParams(w, r)
	if !ok {
		return
	}

	item, err := h.store.UpdateSaleItem(r.Context(), database.UpdateSaleItemParams{
		ID:              id,
		Name:            params.Name,
		Description:     params.Description,
		Price:           params.Price,
		PackageQuantity: params.PackageQuantity,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale item not found"})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sale item name already exists"})
			return
		}
		log.Printf("ERROR: update sale item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toSaleItemResponse(item))
}

// Delete handles DELETE /sale-items/{id}.
func (h *SaleItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale item ID"})
		return
	}

	if err := h.store.DeleteSaleItem(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale item not found"})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sale item is referenced by orders"})
			return
		}
		log.Printf("ERROR: delete sale item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// decodedSaleItem carries validated, DB-typed fields out of decodeParams.
type decodedSaleItem struct {
	Name            string
	Description     pgtype.Text
	Price           pgtype.Numeric
	PackageQuantity int32
}

func (h *SaleItemHandler) decodeParams(w http.ResponseWriter, r *http.Request) (decodedSaleItem, bool) {
	var req saleItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return decodedSaleItem{}, false
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return decodedSaleItem{}, false
	}
	if req.PackageQuantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "package_quantity must be > 0"})
		return decodedSaleItem{}, false
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a non-negative decimal"})
		return decodedSaleItem{}, false
	}

	var priceNum pgtype.Numeric
	if err := priceNum.Scan(price.StringFixed(2)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return decodedSaleItem{}, false
	}

	desc := pgtype.Text{}
	if req.Description != "" {
		desc = pgtype.Text{String: req.Description, Valid: true}
	}

	return decodedSaleItem{
		Name:            req.Name,
		Description:     desc,
		Price:           priceNum,
		PackageQuantity: req.PackageQuantity,
	}, true
}

func toSaleItemResponse(item database.SaleItem) saleItemResponse {
	resp := saleItemResponse{
		ID:              item.ID,
		Name:            item.Name,
		Price:           numericToString(item.Price),
		PackageQuantity: item.PackageQuantity,
	}
	if item.Description.Valid {
		resp.Description = &item.Description.String
	}
	return resp
}
