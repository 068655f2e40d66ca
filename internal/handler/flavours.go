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
	"github.com/wildflour-bakehouse/api/internal/database"
)

// FlavourStore defines the database methods needed by flavour handlers.
type FlavourStore interface {
	ListFlavours(ctx context.Context) ([]database.Flavour, error)
	GetFlavour(ctx context.Context, id uuid.UUID) (database.Flavour, error)
	CreateFlavour(ctx context.Context, arg database.CreateFlavourParams) (database.Flavour, error)
	UpdateFlavour(ctx context.Context, arg database.UpdateFlavourParams) (database.Flavour, error)
	DeleteFlavour(ctx context.Context, id uuid.UUID) error
}

// FlavourHandler handles flavour catalog endpoints.
type FlavourHandler struct {
	store FlavourStore
}

// NewFlavourHandler creates a new FlavourHandler.
func NewFlavourHandler(store FlavourStore) *FlavourHandler {
	return &FlavourHandler{store: store}
}

// RegisterPublicRoutes registers the catalog read for the order form.
func (h *FlavourHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/flavours", h.List)
}

// RegisterAdminRoutes registers the catalog admin endpoints.
func (h *FlavourHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/flavours", h.Create)
	r.Get("/flavours/{id}", h.Get)
	r.Put("/flavours/{id}", h.Update)
	r.Delete("/flavours/{id}", h.Delete)
}

type flavourRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Special     bool   `json:"special"`
}

type flavourResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Special     bool      `json:"special"`
}

// List handles GET /flavours.
func (h *FlavourHandler) List(w http.ResponseWriter, r *http.Request) {
	flavours, err := h.store.ListFlavours(r.Context())
	if err != nil {
		log.Printf("ERROR: list flavours: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]flavourResponse, len(flavours))
	for i, f := range flavours {
		resp[i] = toFlavourResponse(f)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /flavours/{id}.
func (h *FlavourHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid flavour ID"})
		return
	}

	flavour, err := h.store.GetFlavour(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "flavour not found"})
			return
		}
		log.Printf("ERROR: get flavour: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toFlavourResponse(flavour))
}

// Create handles POST /flavours.
func (h *FlavourHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeFlavourRequest(w, r)
	if !ok {
		return
	}

	flavour, err := h.store.CreateFlavour(r.Context(), database.CreateFlavourParams{
		Name:        req.Name,
		Description: textOrNull(req.Description),
		Special:     req.Special,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "flavour name already exists"})
			return
		}
		log.Printf("ERROR: create flavour: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toFlavourResponse(flavour))
}

// Update handles PUT /flavours/{id}.
func (h *FlavourHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid flavour ID"})
		return
	}

	req, ok := decodeFlavourRequest(w, r)
	if !ok {
		return
	}

	flavour, err := h.store.UpdateFlavour(r.Context(), database.UpdateFlavourParams{
		ID:          id,
		Name:        req.Name,
		Description: textOrNull(req.Description),
		Special:     req.Special,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "flavour not found"})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "flavour name already exists"})
			return
		}
		log.Printf("ERROR: update flavour: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toFlavourResponse(flavour))
}

// Delete handles DELETE /flavours/{id}.
func (h *FlavourHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid flavour ID"})
		return
	}

	if err := h.store.DeleteFlavour(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "flavour not found"})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "flavour is referenced by orders"})
			return
		}
		log.Printf("ERROR: delete flavour: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeFlavourRequest(w http.ResponseWriter, r *http.Request) (flavourRequest, bool) {
	var req flavourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return flavourRequest{}, false
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return flavourRequest{}, false
	}
	return req, true
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toFlavourResponse(f database.Flavour) flavourResponse {
	resp := flavourResponse{
		ID:      f.ID,
		Name:    f.Name,
		Special: f.Special,
	}
	if f.Description.Valid {
		resp.Description = &f.Description.String
	}
	return resp
}
