package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/wildflour-bakehouse/api/internal/auth"
	"github.com/wildflour-bakehouse/api/internal/database"
	"github.com/wildflour-bakehouse/api/internal/enum"
	"github.com/wildflour-bakehouse/api/internal/service"
	"github.com/wildflour-bakehouse/api/internal/validate"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*service.PlaceOrderResult, error)
	ChangeStatus(ctx context.Context, orderID uuid.UUID, newStatus, reason string) (database.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason, actor string) (database.Order, error)
	Reschedule(ctx context.Context, orderID uuid.UUID, newDate time.Time) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemFlavoursByItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemFlavour, error)
}

// Broadcaster pushes order events to connected admin clients.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc       OrderServicer
	store     OrderStore
	hub       Broadcaster
	jwtSecret string
}

// NewOrderHandler creates a new OrderHandler. The JWT secret is needed
// because the cancel endpoint is shared: a valid staff token lifts the
// customer deadline.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub Broadcaster, jwtSecret string) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub, jwtSecret: jwtSecret}
}

// RegisterPublicRoutes registers the endpoints customers reach without a
// token. Cancel lives here because customers cancel their own orders; the
// handler upgrades the actor when a staff token is present.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Post("/orders/{id}/cancel", h.Cancel)
}

// RegisterAdminRoutes registers the staff-only endpoints.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
	r.Patch("/orders/{id}/status", h.UpdateStatus)
	r.Post("/orders/{id}/reschedule", h.Reschedule)
}

// --- Request / Response types ---

type createOrderRequest struct {
	FirstName  string             `json:"first_name"`
	LastName   string             `json:"last_name"`
	Email      string             `json:"email"`
	Phone      string             `json:"phone"`
	Note       string             `json:"note"`
	Allergy    string             `json:"allergy"`
	PickupDate string             `json:"pickup_date"`
	PickupTime string             `json:"pickup_time"`
	Items      []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	Name         string               `json:"name"`
	PackageCount int32                `json:"package_count"`
	Flavours     []itemFlavourRequest `json:"flavours"`
}

type itemFlavourRequest struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type rescheduleRequest struct {
	PickupDate string `json:"pickup_date"`
}

type orderResponse struct {
	ID           uuid.UUID           `json:"id"`
	FirstName    string              `json:"first_name"`
	LastName     string              `json:"last_name"`
	Email        string              `json:"email"`
	Phone        string              `json:"phone"`
	Note         *string             `json:"note"`
	Allergy      *string             `json:"allergy"`
	PlacedAt     time.Time           `json:"placed_at"`
	PickupDate   string              `json:"pickup_date"`
	PickupTime   string              `json:"pickup_time"`
	Status       string              `json:"status"`
	Paid         bool                `json:"paid"`
	CancelReason *string             `json:"cancel_reason"`
	CancelledAt  *time.Time          `json:"cancelled_at"`
	TotalAmount  int32               `json:"total_amount"`
	TotalCost    string              `json:"total_cost"`
	Items        []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID              uuid.UUID             `json:"id"`
	Name            string                `json:"name"`
	Price           string                `json:"price"`
	PackageQuantity int32                 `json:"package_quantity"`
	PackageCount    int32                 `json:"package_count"`
	Flavours        []itemFlavourResponse `json:"flavours"`
}

type itemFlavourResponse struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /orders: the public order form.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	vals := validate.Values{
		"first_name":  req.FirstName,
		"last_name":   req.LastName,
		"email":       req.Email,
		"phone":       req.Phone,
		"pickup_date": req.PickupDate,
		"pickup_time": req.PickupTime,
		"note":        req.Note,
		"allergy":     req.Allergy,
	}
	violations := validate.Apply(orderFormRules, vals)
	if len(violations) > 0 {
		writeViolations(w, violations)
		return
	}

	pickupDate, err := time.Parse("2006-01-02", vals["pickup_date"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pickup_date"})
		return
	}
	if !validPickupTime(vals["pickup_time"]) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pickup_time must be between 12:00 and 16:00"})
		return
	}

	items := make([]service.OrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		flavours := make([]service.FlavourQuantityRequest, len(item.Flavours))
		for j, f := range item.Flavours {
			flavours[j] = service.FlavourQuantityRequest{Name: f.Name, Quantity: f.Quantity}
		}
		items[i] = service.OrderItemRequest{
			Name:         item.Name,
			PackageCount: item.PackageCount,
			Flavours:     flavours,
		}
	}

	result, err := h.svc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		FirstName:  vals["first_name"],
		LastName:   vals["last_name"],
		Email:      vals["email"],
		Phone:      vals["phone"],
		Note:       vals["note"],
		Allergy:    vals["allergy"],
		PickupDate: pickupDate,
		PickupTime: vals["pickup_time"],
		Items:      items,
	})
	if err != nil {
		writeServiceError(w, "place order", err)
		return
	}

	resp := toOrderResponse(result)
	h.hub.Broadcast("order.created", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders with optional status and pickup date filters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		if !enum.IsValidStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("pickup_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pickup_date format, use YYYY-MM-DD"})
			return
		}
		params.PickupDate = pgtype.Date{Time: t, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}: the order with its items and flavours.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	itemResponses := make([]orderItemResponse, len(items))
	for i, item := range items {
		flavours, err := h.store.ListOrderItemFlavoursByItem(r.Context(), item.ID)
		if err != nil {
			log.Printf("ERROR: list order item flavours: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		itemResponses[i] = dbOrderItemToResponse(item, flavours)
	}

	resp := dbOrderToResponse(order)
	resp.Items = itemResponses
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	updated, err := h.svc.ChangeStatus(r.Context(), orderID, req.Status, req.Reason)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}

	resp := dbOrderToResponse(updated)
	h.hub.Broadcast("order.status_changed", resp)
	writeJSON(w, http.StatusOK, resp)
}

// Cancel handles POST /orders/{id}/cancel. Customers are bound by the
// ordering deadline; a request carrying a valid staff token is not.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	cancelled, err := h.svc.CancelOrder(r.Context(), orderID, req.Reason, h.cancelActor(r))
	if err != nil {
		writeServiceError(w, "cancel order", err)
		return
	}

	resp := dbOrderToResponse(cancelled)
	h.hub.Broadcast("order.status_changed", resp)
	writeJSON(w, http.StatusOK, resp)
}

// Reschedule handles POST /orders/{id}/reschedule.
func (h *OrderHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	newDate, err := time.Parse("2006-01-02", req.PickupDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pickup_date, use YYYY-MM-DD"})
		return
	}

	updated, err := h.svc.Reschedule(r.Context(), orderID, newDate)
	if err != nil {
		writeServiceError(w, "reschedule order", err)
		return
	}

	resp := dbOrderToResponse(updated)
	h.hub.Broadcast("order.rescheduled", resp)
	writeJSON(w, http.StatusOK, resp)
}

// cancelActor resolves who is cancelling. A valid staff bearer token makes
// the actor ADMIN; everything else, including a malformed token, falls back
// to CUSTOMER and its deadline rules.
func (h *OrderHandler) cancelActor(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return enum.ActorCustomer
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return enum.ActorCustomer
	}
	claims, err := auth.ValidateToken(h.jwtSecret, parts[1])
	if err != nil || !claims.IsAdmin {
		return enum.ActorCustomer
	}
	return enum.ActorAdmin
}

// --- Helpers ---

// orderFormRules is the field rule table for the public order form.
var orderFormRules = []validate.Rule{
	{Field: "first_name", Required: true, Normalize: validate.TrimSpace, Check: validate.MaxLen(100), Message: "too long"},
	{Field: "last_name", Required: true, Normalize: validate.TrimSpace, Check: validate.MaxLen(100), Message: "too long"},
	{Field: "email", Required: true, Normalize: validate.TrimSpace, Check: validate.IsEmail, Message: "must be a valid email"},
	{Field: "phone", Required: true, Normalize: validate.TrimSpace, Check: validate.IsPhone, Message: "must be a valid phone number"},
	{Field: "pickup_date", Required: true, Normalize: validate.TrimSpace, Check: validate.IsDate, Message: "must be YYYY-MM-DD"},
	{Field: "pickup_time", Required: true, Normalize: validate.TrimSpace, Message: "is required"},
	{Field: "note", Normalize: validate.TrimSpace, Check: validate.MaxLen(1000), Message: "too long"},
	{Field: "allergy", Normalize: validate.TrimSpace, Check: validate.MaxLen(1000), Message: "too long"},
}

// validPickupTime accepts HH:MM between 12:00 and 16:00, with 16:00 sharp
// as the last slot.
func validPickupTime(s string) bool {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return false
	}
	h, m := t.Hour(), t.Minute()
	if h < enum.PickupHourMin || h > enum.PickupHourMax {
		return false
	}
	if h == enum.PickupHourMax && m > 0 {
		return false
	}
	return true
}

func toOrderResponse(result *service.PlaceOrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, ir := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(ir.Item, ir.Flavours)
	}
	return resp
}

// dbOrderToResponse converts a database.Order to an orderResponse.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		FirstName:   o.FirstName,
		LastName:    o.LastName,
		Email:       o.Email,
		Phone:       o.Phone,
		PlacedAt:    o.PlacedAt,
		PickupDate:  o.PickupDate.Time.Format("2006-01-02"),
		PickupTime:  o.PickupTime,
		Status:      o.Status,
		Paid:        o.Paid,
		TotalAmount: o.TotalAmount,
		TotalCost:   numericToString(o.TotalCost),
	}
	if o.Note.Valid {
		resp.Note = &o.Note.String
	}
	if o.Allergy.Valid {
		resp.Allergy = &o.Allergy.String
	}
	if o.CancelReason.Valid {
		resp.CancelReason = &o.CancelReason.String
	}
	if o.CancelledAt.Valid {
		resp.CancelledAt = &o.CancelledAt.Time
	}
	return resp
}

func dbOrderItemToResponse(item database.OrderItem, flavours []database.OrderItemFlavour) orderItemResponse {
	resp := orderItemResponse{
		ID:              item.ID,
		Name:            item.Name,
		Price:           numericToString(item.Price),
		PackageQuantity: item.PackageQuantity,
		PackageCount:    item.PackageCount,
	}
	resp.Flavours = make([]itemFlavourResponse, len(flavours))
	for j, f := range flavours {
		resp.Flavours[j] = itemFlavourResponse{Name: f.Name, Quantity: f.Quantity}
	}
	return resp
}
