package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ipopool/pool-engine/internal/capacity"
	"github.com/ipopool/pool-engine/internal/metrics"
	"github.com/ipopool/pool-engine/internal/pool"
	"github.com/ipopool/pool-engine/internal/store"
)

// envDecimal reads a decimal env var, falling back to def when unset or
// unparseable.
func envDecimal(name string, def decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Warn("invalid decimal env var, using default", "var", name, "value", raw)
		return def
	}
	return v
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		dbpool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, dbpool.Close)
		st = store.NewPostgresStore(dbpool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Capacity limits ---
	// Zero disables a limit; per-account declared capacity overrides the
	// default.
	defaultAccountCap := envDecimal("DEFAULT_ACCOUNT_CAP", decimal.Zero)
	maxPerOwner := envDecimal("MAX_PER_OWNER", decimal.Zero)
	limiter := capacity.NewLimiter(defaultAccountCap, maxPerOwner)

	// --- WebSocket hub ---
	hub := pool.NewEventHub()
	go hub.Run()

	// --- Pool service ---
	poolSvc := pool.NewService(st, limiter, hub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", pool.Health)

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time roster and settlement updates.
		r.Get("/ws", hub.HandleWS)

		// IPO management.
		r.Get("/ipos", poolSvc.ListIPOs)
		r.Post("/ipos", poolSvc.CreateIPO)
		r.Get("/ipos/{ipoID}", poolSvc.GetIPO)
		r.Put("/ipos/{ipoID}", poolSvc.UpdateIPO)
		r.Delete("/ipos/{ipoID}", poolSvc.DeleteIPO)

		// Demat accounts.
		r.Get("/accounts", poolSvc.ListAccounts)
		r.Post("/accounts", poolSvc.CreateAccount)
		r.Get("/accounts/{accountID}", poolSvc.GetAccount)
		r.Delete("/accounts/{accountID}", poolSvc.DeleteAccount)

		// Pool rosters.
		r.Get("/ipos/{ipoID}/participants", poolSvc.ListParticipants)
		r.Post("/ipos/{ipoID}/participants", poolSvc.AddParticipant)
		r.Delete("/ipos/{ipoID}/participants/{participantID}", poolSvc.DeleteParticipant)

		// Allotment settlement.
		r.Get("/ipos/{ipoID}/results", poolSvc.ListResults)
		r.Post("/ipos/{ipoID}/results", poolSvc.RecordResult)
		r.Put("/ipos/{ipoID}/results/{resultID}", poolSvc.ReplaceResult)

		// Reports.
		r.Get("/ipos/{ipoID}/report", poolSvc.GetReport)
		r.Get("/ipos/{ipoID}/report/csv", poolSvc.ExportReportCSV)
		r.Get("/participants/consolidated", poolSvc.GetConsolidated)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("pool-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down pool-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("pool-engine stopped")
}
