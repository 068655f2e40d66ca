//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wildflour-bakehouse/api/internal/config"
	"github.com/wildflour-bakehouse/api/internal/database"
	"github.com/wildflour-bakehouse/api/internal/dates"
	"github.com/wildflour-bakehouse/api/internal/router"
	"github.com/wildflour-bakehouse/api/internal/ws"
)

const integrationAdminPassword = "integration-shared-secret"

// TestIntegrationFlow exercises the full order lifecycle against a real
// PostgreSQL database: staff registration, catalog setup, date seeding,
// public admission, capacity exhaustion, approval, cancellation with
// capacity restore, and rescheduling.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanupContainer := setupPostgresContainer(t, ctx)
	defer cleanupContainer()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:          "8081",
		DatabaseURL:   connStr,
		JWTSecret:     "integration-test-secret",
		AdminPassword: integrationAdminPassword,
		OrderLimit:    20,
		Timezone:      "UTC",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() has no shutdown mechanism, so the goroutine leaks on
	// test exit. Acceptable for tests.
	go hub.Run()

	r := router.New(cfg, queries, pool, hub)
	server := httptest.NewServer(r)
	defer server.Close()

	// Pick a pickup Saturday the real clock can still admit: the day after
	// the upcoming Friday 18:00 deadline. If we are inside the dead zone
	// between the deadline and Saturday there is nothing to admit.
	now := time.Now().UTC()
	if !now.Before(dates.CutoffFor(now)) {
		t.Skip("ordering is closed between Friday 18:00 and midnight")
	}
	pickup := dates.CutoffFor(now).AddDate(0, 0, 1)
	pickupDay := pickup.Format("2006-01-02")
	sundayDay := pickup.AddDate(0, 0, 1).Format("2006-01-02")

	// --- 1. Register the first staff account via the shared admin password ---
	regResp := httpPostJSON(t, server, "/auth/register", map[string]interface{}{
		"email":          "staff@test.com",
		"password":       "password123",
		"first_name":     "Test",
		"last_name":      "Staff",
		"admin_password": integrationAdminPassword,
	}, "")
	token, _ := regResp["access_token"].(string)
	if token == "" {
		t.Fatalf("register: no access_token in %+v", regResp)
	}

	// --- 2. Login with the same credentials ---
	loginResp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"email":    "staff@test.com",
		"password": "password123",
	}, "")
	if loginResp["access_token"].(string) == "" {
		t.Fatal("login returned empty access_token")
	}

	// --- 3. Seed the pickup year with 2 orders per date ---
	httpPostJSON(t, server, "/order-dates/seed", map[string]interface{}{
		"year":     pickup.Year(),
		"capacity": 2,
	}, token)
	// The Sunday of the pickup weekend can land in the next year.
	if sundayYear := pickup.AddDate(0, 0, 1).Year(); sundayYear != pickup.Year() {
		httpPostJSON(t, server, "/order-dates/seed", map[string]interface{}{
			"year":     sundayYear,
			"capacity": 2,
		}, token)
	}

	// --- 4. Build the catalog ---
	itemResp := httpPostJSON(t, server, "/sale-items", map[string]interface{}{
		"name":             "Cinnamon Rolls",
		"description":      "Half dozen, iced",
		"price":            "18.00",
		"package_quantity": 4,
	}, token)
	if itemResp["price"].(string) != "18.00" {
		t.Fatalf("sale item price: got %v", itemResp["price"])
	}
	httpPostJSON(t, server, "/flavours", map[string]interface{}{"name": "Classic"}, token)
	httpPostJSON(t, server, "/flavours", map[string]interface{}{
		"name": "Maple Pecan", "special": true,
	}, token)

	// --- 5. The public order form sees the seeded date ---
	openDates := httpGetJSONList(t, server, "/order-dates/open", "")
	if remainingOn(t, openDates, pickupDay) != 2 {
		t.Fatalf("open date %s: remaining %v, want 2", pickupDay, remainingOn(t, openDates, pickupDay))
	}

	// --- 6. Place an order: 2 packages of 4 rolls, flavours 5 + 3 ---
	orderBody := map[string]interface{}{
		"first_name":  "Inez",
		"last_name":   "Okafor",
		"email":       "inez@example.com",
		"phone":       "416-555-0117",
		"pickup_date": pickupDay,
		"pickup_time": "13:00",
		"items": []map[string]interface{}{
			{
				"name":          "Cinnamon Rolls",
				"package_count": 2,
				"flavours": []map[string]interface{}{
					{"name": "Classic", "quantity": 5},
					{"name": "Maple Pecan", "quantity": 3},
				},
			},
		},
	}
	orderResp := httpPostJSON(t, server, "/orders", orderBody, "")
	orderID := orderResp["id"].(string)
	if orderResp["status"].(string) != "Waiting for Approval" {
		t.Fatalf("order status: got %v, want Waiting for Approval", orderResp["status"])
	}
	if orderResp["total_cost"].(string) != "36.00" {
		t.Fatalf("total_cost: got %v, want 36.00", orderResp["total_cost"])
	}

	// --- 7. Both packages came off the ledger ---
	openDates = httpGetJSONList(t, server, "/order-dates/open", "")
	if remainingOn(t, openDates, pickupDay) != 0 {
		t.Fatalf("remaining after order: got %v, want 0", remainingOn(t, openDates, pickupDay))
	}

	// --- 8. The date is full: the next order is refused ---
	smallOrder := map[string]interface{}{
		"first_name":  "Theo",
		"last_name":   "Brandt",
		"email":       "theo@example.com",
		"phone":       "416-555-0192",
		"pickup_date": pickupDay,
		"pickup_time": "12:30",
		"items": []map[string]interface{}{
			{
				"name":          "Cinnamon Rolls",
				"package_count": 1,
				"flavours":      []map[string]interface{}{{"name": "Classic", "quantity": 4}},
			},
		},
	}
	if status := httpPostStatus(t, server, "/orders", smallOrder, ""); status != http.StatusConflict {
		t.Fatalf("order on full date: got %d, want %d", status, http.StatusConflict)
	}

	// --- 9. Approve the order ---
	approved := httpPatchJSON(t, server, "/orders/"+orderID+"/status", map[string]interface{}{
		"status": "Approved, Waiting on Payment",
	}, token)
	if approved["status"].(string) != "Approved, Waiting on Payment" {
		t.Fatalf("approved status: got %v", approved["status"])
	}

	// --- 10. Staff cancels; the ledger is credited back ---
	cancelled := httpPostJSON(t, server, "/orders/"+orderID+"/cancel", map[string]interface{}{
		"reason": "ingredient shortage",
	}, token)
	if cancelled["status"].(string) != "Cancelled" {
		t.Fatalf("cancelled status: got %v", cancelled["status"])
	}
	if cancelled["cancel_reason"].(string) != "ingredient shortage" {
		t.Fatalf("cancel_reason: got %v", cancelled["cancel_reason"])
	}

	openDates = httpGetJSONList(t, server, "/order-dates/open", "")
	if remainingOn(t, openDates, pickupDay) != 2 {
		t.Fatalf("remaining after cancel: got %v, want 2", remainingOn(t, openDates, pickupDay))
	}

	// --- 11. The date admits orders again; place one and reschedule it ---
	orderResp2 := httpPostJSON(t, server, "/orders", smallOrder, "")
	orderID2 := orderResp2["id"].(string)

	moved := httpPostJSON(t, server, "/orders/"+orderID2+"/reschedule", map[string]interface{}{
		"pickup_date": sundayDay,
	}, token)
	if moved["pickup_date"].(string) != sundayDay {
		t.Fatalf("rescheduled pickup_date: got %v, want %s", moved["pickup_date"], sundayDay)
	}

	openDates = httpGetJSONList(t, server, "/order-dates/open", "")
	if remainingOn(t, openDates, pickupDay) != 2 {
		t.Fatalf("old date after reschedule: got %v, want 2", remainingOn(t, openDates, pickupDay))
	}
	if remainingOn(t, openDates, sundayDay) != 1 {
		t.Fatalf("new date after reschedule: got %v, want 1", remainingOn(t, openDates, sundayDay))
	}

	// --- 12. Order detail carries the flavour snapshot ---
	detail := httpGetJSON(t, server, "/orders/"+orderID, token)
	items := detail["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("order items: got %d, want 1", len(items))
	}
	flavours := items[0].(map[string]interface{})["flavours"].([]interface{})
	if len(flavours) != 2 {
		t.Fatalf("order flavours: got %d, want 2", len(flavours))
	}

	t.Logf("Integration test passed: container=%s, order=%s, rescheduled=%s",
		pgContainer.GetContainerID(), orderID, orderID2)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("bakery_test"),
		tcpostgres.WithUsername("bakery"),
		tcpostgres.WithPassword("bakery"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory. Go test sets cwd
	// to the package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

// remainingOn finds the ledger row for the given date in an order-dates
// response and returns its remaining_orders.
func remainingOn(t *testing.T, openDates []map[string]interface{}, day string) int {
	t.Helper()
	for _, d := range openDates {
		if d["date"] == day {
			return int(d["remaining_orders"].(float64))
		}
	}
	t.Fatalf("date %s not in response", day)
	return -1
}

// --- HTTP helpers ---

func httpDo(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	return decodeOKResponse(t, httpDo(t, server, "POST", path, body, token), "POST", path)
}

func httpPatchJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	return decodeOKResponse(t, httpDo(t, server, "PATCH", path, body, token), "PATCH", path)
}

func httpGetJSON(t *testing.T, server *httptest.Server, path, token string) map[string]interface{} {
	t.Helper()
	return decodeOKResponse(t, httpDo(t, server, "GET", path, nil, token), "GET", path)
}

func httpGetJSONList(t *testing.T, server *httptest.Server, path, token string) []map[string]interface{} {
	t.Helper()
	resp := httpDo(t, server, "GET", path, nil, token)
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	var result []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

// httpPostStatus posts and returns the status code without failing on
// non-2xx, for asserting rejections.
func httpPostStatus(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) int {
	t.Helper()
	resp := httpDo(t, server, "POST", path, body, token)
	defer resp.Body.Close()
	return resp.StatusCode
}

func decodeOKResponse(t *testing.T, resp *http.Response, method, path string) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d, body: %v", method, path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}
