package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/wildflour-bakehouse/api/internal/database"
	"github.com/wildflour-bakehouse/api/internal/handler"
	"github.com/wildflour-bakehouse/api/internal/middleware"
	"github.com/wildflour-bakehouse/api/internal/service"
)

// --- Mock CapacityServicer ---

type mockCapacityService struct {
	seedYearFn       func(ctx context.Context, year int, perDateCapacity int32) ([]database.OrderDate, error)
	listAllFn        func(ctx context.Context) ([]database.OrderDate, error)
	listOpenFn       func(ctx context.Context) ([]database.OrderDate, error)
	setDayOffFn      func(ctx context.Context, id uuid.UUID, dayOff bool) (database.OrderDate, error)
	adjustCapacityFn func(ctx context.Context, id uuid.UUID, delta int32) (database.OrderDate, error)
}

func (m *mockCapacityService) SeedYear(ctx context.Context, year int, perDateCapacity int32) ([]database.OrderDate, error) {
	return m.seedYearFn(ctx, year, perDateCapacity)
}

func (m *mockCapacityService) ListAll(ctx context.Context) ([]database.OrderDate, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return []database.OrderDate{}, nil
}

func (m *mockCapacityService) ListOpen(ctx context.Context) ([]database.OrderDate, error) {
	if m.listOpenFn != nil {
		return m.listOpenFn(ctx)
	}
	return []database.OrderDate{}, nil
}

func (m *mockCapacityService) SetDayOff(ctx context.Context, id uuid.UUID, dayOff bool) (database.OrderDate, error) {
	return m.setDayOffFn(ctx, id, dayOff)
}

func (m *mockCapacityService) AdjustCapacity(ctx context.Context, id uuid.UUID, delta int32) (database.OrderDate, error) {
	return m.adjustCapacityFn(ctx, id, delta)
}

// --- Helpers ---

const testDefaultCapacity = int32(20)

func setupOrderDateRouter(svc *mockCapacityService) *chi.Mux {
	h := handler.NewOrderDateHandler(svc, testDefaultCapacity)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Use(middleware.RequireAdmin)
		h.RegisterAdminRoutes(r)
	})
	return r
}

func testOrderDate(day string, remaining int32) database.OrderDate {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return database.OrderDate{
		ID:              uuid.New(),
		Date:            pgtype.Date{Time: t, Valid: true},
		RemainingOrders: remaining,
	}
}

// =====================
// List
// =====================

func TestOrderDateListOpen_Public(t *testing.T) {
	svc := &mockCapacityService{
		listOpenFn: func(ctx context.Context) ([]database.OrderDate, error) {
			return []database.OrderDate{
				testOrderDate("2026-03-07", 12),
				testOrderDate("2026-03-08", 20),
			}, nil
		},
	}
	router := setupOrderDateRouter(svc)

	rr := doRequest(t, router, "GET", "/order-dates/open", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp []map[string]interface{}
	decodeInto(t, rr, &resp)
	if len(resp) != 2 {
		t.Fatalf("dates count: got %d, want 2", len(resp))
	}
	if resp[0]["date"] != "2026-03-07" {
		t.Errorf("date: got %v, want 2026-03-07", resp[0]["date"])
	}
	if resp[0]["remaining_orders"] != float64(12) {
		t.Errorf("remaining_orders: got %v, want 12", resp[0]["remaining_orders"])
	}
}

func TestOrderDateList_RequiresAuth(t *testing.T) {
	router := setupOrderDateRouter(&mockCapacityService{})

	rr := doRequest(t, router, "GET", "/order-dates", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

// =====================
// Seed
// =====================

func TestOrderDateSeed_HappyPath(t *testing.T) {
	svc := &mockCapacityService{
		seedYearFn: func(ctx context.Context, year int, perDateCapacity int32) ([]database.OrderDate, error) {
			if year != 2027 {
				t.Errorf("year: got %d, want 2027", year)
			}
			if perDateCapacity != 15 {
				t.Errorf("capacity: got %d, want 15", perDateCapacity)
			}
			return []database.OrderDate{testOrderDate("2027-01-02", 15)}, nil
		},
	}
	router := setupOrderDateRouter(svc)

	rr := doAdminRequest(t, router, "POST", "/order-dates/seed",
		map[string]interface{}{"year": 2027, "capacity": 15})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestOrderDateSeed_DefaultCapacity(t *testing.T) {
	svc := &mockCapacityService{
		seedYearFn: func(ctx context.Context, year int, perDateCapacity int32) ([]database.OrderDate, error) {
			if perDateCapacity != testDefaultCapacity {
				t.Errorf("capacity: got %d, want %d", perDateCapacity, testDefaultCapacity)
			}
			return []database.OrderDate{}, nil
		},
	}
	router := setupOrderDateRouter(svc)

	rr := doAdminRequest(t, router, "POST", "/order-dates/seed",
		map[string]interface{}{"year": 2027})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestOrderDateSeed_YearOutOfRange(t *testing.T) {
	router := setupOrderDateRouter(&mockCapacityService{})

	for _, year := range []int{1999, 2101, 0, -5} {
		rr := doAdminRequest(t, router, "POST", "/order-dates/seed",
			map[string]interface{}{"year": year})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("year %d: got %d, want %d", year, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestOrderDateSeed_DuplicateYear(t *testing.T) {
	svc := &mockCapacityService{
		seedYearFn: func(ctx context.Context, year int, perDateCapacity int32) ([]database.OrderDate, error) {
			return nil, service.ErrDuplicateYear
		},
	}
	router := setupOrderDateRouter(svc)

	rr := doAdminRequest(t, router, "POST", "/order-dates/seed",
		map[string]interface{}{"year": 2026})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

// =====================
// Day off / capacity
// =====================

func TestOrderDateSetDayOff_HappyPath(t *testing.T) {
	date := testOrderDate("2026-03-07", 20)
	svc := &mockCapacityService{
		setDayOffFn: func(ctx context.Context, id uuid.UUID, dayOff bool) (database.OrderDate, error) {
			if id != date.ID {
				t.Errorf("id: got %v, want %v", id, date.ID)
			}
			if !dayOff {
				t.Error("expected day_off true")
			}
			date.DayOff = true
			return date, nil
		},
	}
	router := setupOrderDateRouter(svc)

	rr := doAdminRequest(t, router, "PATCH", "/order-dates/"+date.ID.String()+"/day-off",
		map[string]interface{}{"day_off": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["day_off"] != true {
		t.Errorf("day_off: got %v, want true", resp["day_off"])
	}
}

func TestOrderDateSetDayOff_OpenOrders(t *testing.T) {
	svc := &mockCapacityService{
		setDayOffFn: func(ctx context.Context, id uuid.UUID, dayOff bool) (database.OrderDate, error) {
			return database.OrderDate{}, service.ErrOpenOrdersExist
		},
	}
	router := setupOrderDateRouter(svc)

	rr := doAdminRequest(t, router, "PATCH", "/order-dates/"+uuid.NewString()+"/day-off",
		map[string]interface{}{"day_off": true})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestOrderDateAdjustCapacity_HappyPath(t *testing.T) {
	date := testOrderDate("2026-03-07", 25)
	svc := &mockCapacityService{
		adjustCapacityFn: func(ctx context.Context, id uuid.UUID, delta int32) (database.OrderDate, error) {
			if delta != 5 {
				t.Errorf("delta: got %d, want 5", delta)
			}
			return date, nil
		},
	}
	router := setupOrderDateRouter(svc)

	rr := doAdminRequest(t, router, "PATCH", "/order-dates/"+date.ID.String()+"/capacity",
		map[string]interface{}{"delta": 5})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["remaining_orders"] != float64(25) {
		t.Errorf("remaining_orders: got %v, want 25", resp["remaining_orders"])
	}
}

func TestOrderDateAdjustCapacity_ZeroDelta(t *testing.T) {
	router := setupOrderDateRouter(&mockCapacityService{})

	rr := doAdminRequest(t, router, "PATCH", "/order-dates/"+uuid.NewString()+"/capacity",
		map[string]interface{}{"delta": 0})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestOrderDateAdjustCapacity_WouldGoNegative(t *testing.T) {
	svc := &mockCapacityService{
		adjustCapacityFn: func(ctx context.Context, id uuid.UUID, delta int32) (database.OrderDate, error) {
			return database.OrderDate{}, service.ErrNegativeCapacity
		},
	}
	router := setupOrderDateRouter(svc)

	rr := doAdminRequest(t, router, "PATCH", "/order-dates/"+uuid.NewString()+"/capacity",
		map[string]interface{}{"delta": -40})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestOrderDateAdjustCapacity_NotFound(t *testing.T) {
	svc := &mockCapacityService{
		adjustCapacityFn: func(ctx context.Context, id uuid.UUID, delta int32) (database.OrderDate, error) {
			return database.OrderDate{}, service.ErrDateNotFound
		},
	}
	router := setupOrderDateRouter(svc)

	rr := doAdminRequest(t, router, "PATCH", "/order-dates/"+uuid.NewString()+"/capacity",
		map[string]interface{}{"delta": 3})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
