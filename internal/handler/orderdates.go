package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wildflour-bakehouse/api/internal/database"
)

// CapacityServicer defines the service methods needed by order-date
// handlers. Satisfied by *service.CapacityService.
type CapacityServicer interface {
	SeedYear(ctx context.Context, year int, perDateCapacity int32) ([]database.OrderDate, error)
	ListAll(ctx context.Context) ([]database.OrderDate, error)
	ListOpen(ctx context.Context) ([]database.OrderDate, error)
	SetDayOff(ctx context.Context, id uuid.UUID, dayOff bool) (database.OrderDate, error)
	AdjustCapacity(ctx context.Context, id uuid.UUID, delta int32) (database.OrderDate, error)
}

// OrderDateHandler handles the pickup-date ledger endpoints.
type OrderDateHandler struct {
	svc             CapacityServicer
	defaultCapacity int32
}

// NewOrderDateHandler creates a new OrderDateHandler. defaultCapacity is
// used when a seed request omits capacity.
func NewOrderDateHandler(svc CapacityServicer, defaultCapacity int32) *OrderDateHandler {
	return &OrderDateHandler{svc: svc, defaultCapacity: defaultCapacity}
}

// RegisterPublicRoutes registers the date list the order form reads.
func (h *OrderDateHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/order-dates/open", h.ListOpen)
}

// RegisterAdminRoutes registers the ledger admin endpoints.
func (h *OrderDateHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/order-dates", h.List)
	r.Post("/order-dates/seed", h.Seed)
	r.Patch("/order-dates/{id}/day-off", h.SetDayOff)
	r.Patch("/order-dates/{id}/capacity", h.AdjustCapacity)
}

// --- Request / Response types ---

type seedRequest struct {
	Year     int   `json:"year"`
	Capacity int32 `json:"capacity"`
}

type dayOffRequest struct {
	DayOff bool `json:"day_off"`
}

type adjustCapacityRequest struct {
	Delta int32 `json:"delta"`
}

type orderDateResponse struct {
	ID              uuid.UUID `json:"id"`
	Date            string    `json:"date"`
	RemainingOrders int32     `json:"remaining_orders"`
	DayOff          bool      `json:"day_off"`
}

// --- Handlers ---

// ListOpen handles GET /order-dates/open: dates inside the current window
// that can still take an order.
func (h *OrderDateHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	dates, err := h.svc.ListOpen(r.Context())
	if err != nil {
		writeServiceError(w, "list open order dates", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDateResponses(dates))
}

// List handles GET /order-dates: the whole ledger for the admin calendar.
func (h *OrderDateHandler) List(w http.ResponseWriter, r *http.Request) {
	dates, err := h.svc.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, "list order dates", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDateResponses(dates))
}

// Seed handles POST /order-dates/seed: one row per weekend day of a year.
func (h *OrderDateHandler) Seed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Year < 2000 || req.Year > 2100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "year out of range"})
		return
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = h.defaultCapacity
	}

	created, err := h.svc.SeedYear(r.Context(), req.Year, capacity)
	if err != nil {
		writeServiceError(w, "seed order dates", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDateResponses(created))
}

// SetDayOff handles PATCH /order-dates/{id}/day-off.
func (h *OrderDateHandler) SetDayOff(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order date ID"})
		return
	}

	var req dayOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.svc.SetDayOff(r.Context(), id, req.DayOff)
	if err != nil {
		writeServiceError(w, "set day off", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDateResponse(updated))
}

// AdjustCapacity handles PATCH /order-dates/{id}/capacity.
func (h *OrderDateHandler) AdjustCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order date ID"})
		return
	}

	var req adjustCapacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta must be non-zero"})
		return
	}

	updated, err := h.svc.AdjustCapacity(r.Context(), id, req.Delta)
	if err != nil {
		writeServiceError(w, "adjust capacity", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDateResponse(updated))
}

// --- Helpers ---

func toOrderDateResponse(od database.OrderDate) orderDateResponse {
	return orderDateResponse{
		ID:              od.ID,
		Date:            od.Date.Time.Format("2006-01-02"),
		RemainingOrders: od.RemainingOrders,
		DayOff:          od.DayOff,
	}
}

func toOrderDateResponses(dates []database.OrderDate) []orderDateResponse {
	resp := make([]orderDateResponse, len(dates))
	for i, od := range dates {
		resp[i] = toOrderDateResponse(od)
	}
	return resp
}
