package router

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wildflour-bakehouse/api/internal/config"
	"github.com/wildflour-bakehouse/api/internal/database"
	"github.com/wildflour-bakehouse/api/internal/handler"
	mw "github.com/wildflour-bakehouse/api/internal/middleware"
	"github.com/wildflour-bakehouse/api/internal/service"
	"github.com/wildflour-bakehouse/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Customer-facing routes are open; staff routes sit behind JWT auth.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",                 // SvelteKit dev server
			"https://order.wildflourbakehouse.com",  // Customer order form
			"https://admin.wildflourbakehouse.com",  // Staff dashboard
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, cfg.AdminPassword)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// The admission window and cutoff are defined in the bakery's local
	// time, not the server's.
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("WARNING: unknown timezone %q, falling back to UTC", cfg.Timezone)
		loc = time.UTC
	}
	localNow := func() time.Time { return time.Now().In(loc) }

	// Services
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}).WithClock(localNow)
	capacityService := service.NewCapacityService(pool, queries, func(db database.DBTX) service.CapacityStore {
		return database.New(db)
	}).WithClock(localNow)

	// Handlers
	orderHandler := handler.NewOrderHandler(orderService, queries, hub, cfg.JWTSecret)
	orderDateHandler := handler.NewOrderDateHandler(capacityService, int32(cfg.OrderLimit))
	saleItemHandler := handler.NewSaleItemHandler(queries)
	flavourHandler := handler.NewFlavourHandler(queries)

	// Public routes: the order form needs the catalog, the open dates,
	// and the ability to place or cancel an order.
	orderHandler.RegisterPublicRoutes(r)
	orderDateHandler.RegisterPublicRoutes(r)
	saleItemHandler.RegisterPublicRoutes(r)
	flavourHandler.RegisterPublicRoutes(r)

	// Staff routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireAdmin)

		orderHandler.RegisterAdminRoutes(r)
		orderDateHandler.RegisterAdminRoutes(r)
		saleItemHandler.RegisterAdminRoutes(r)
		flavourHandler.RegisterAdminRoutes(r)
	})

	return r
}
