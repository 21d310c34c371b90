package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Booking       *scheduling.BookingService
	Lifecycle     *scheduling.LifecycleService
	Generator     *scheduling.Generator
	HorizonDays   int
	RetentionDays int
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Logger        zerolog.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Booking
	r.Post("/appointments/by-doctor", bookByDoctorHandler(cfg.Booking))
	r.Post("/appointments/by-specialty", bookBySpecialtyHandler(cfg.Booking))
	r.Post("/appointments/{id}/assign", assignDoctorHandler(cfg.Booking))

	// Lifecycle
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Lifecycle))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Lifecycle))
	r.Post("/appointments/{id}/treatment", createTreatmentHandler(cfg.Lifecycle))

	// Reads, snapshot-backed only
	r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))

	// Administrative triggers, same functions the worker invokes
	r.Post("/admin/schedules/generate", generateSchedulesHandler(cfg.Generator, cfg.HorizonDays))
	r.Post("/admin/schedules/purge", purgeSchedulesHandler(cfg.Generator, cfg.RetentionDays))

	return r
}
