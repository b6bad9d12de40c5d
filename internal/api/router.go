package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicbase/scheduling-engine/internal/scheduling"
)

type RouterConfig struct {
	Bookings *scheduling.BookingService
	Schedule *scheduling.ScheduleService
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   *zap.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Read path: slot resolution and calendar helpers
	r.Get("/doctors/{id}/slots", resolveSlotsHandler(cfg.Bookings))
	r.Get("/doctors/{id}/blocked", dateBlockedHandler(cfg.Bookings))

	// Schedule administration
	r.Get("/doctors/{id}/rules", listRulesHandler(cfg.Schedule))
	r.Post("/doctors/{id}/rules", upsertRuleHandler(cfg.Schedule))
	r.Delete("/rules/{id}", deactivateRuleHandler(cfg.Schedule))

	r.Get("/doctors/{id}/unavailability", listPeriodsHandler(cfg.Schedule))
	r.Post("/doctors/{id}/unavailability", createPeriodHandler(cfg.Schedule))
	r.Put("/unavailability/{id}", updatePeriodHandler(cfg.Schedule))
	r.Delete("/unavailability/{id}", deletePeriodHandler(cfg.Schedule))

	// Write path: bookings
	r.Post("/bookings", createBookingHandler(cfg.Bookings))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Bookings))
	r.Post("/bookings/{id}/reschedule", rescheduleBookingHandler(cfg.Bookings))
	r.Post("/bookings/{id}/cancel", cancelBookingHandler(cfg.Bookings))
	r.Post("/bookings/{id}/complete", completeBookingHandler(cfg.Bookings))
	r.Post("/bookings/{id}/postpone", postponeBookingHandler(cfg.Bookings))

	return r
}
