package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/event-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registration/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router wires together.
type Deps struct {
	Events *service.EventService
	Users  *service.UserService
	DB     Pinger
	Logger zerolog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	events := NewEventHandler(d.Events)
	users := NewUserHandler(d.Users)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RealIP)
	r.Use(RequestID(d.Logger))
	r.Use(Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORS)

	r.Get("/health", HealthCheck(d.DB))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", users.RegisterUser)
	})

	r.Route("/api/events", func(r chi.Router) {
		r.Post("/create", events.CreateEvent)
		r.Get("/", events.ListEvents)
		r.Get("/upcoming", events.ListUpcoming)
		r.Post("/register/{eventId}", events.Register)
		r.Post("/cancel/{eventId}", events.Cancel)
		r.Get("/stats/{eventId}", events.Stats)
		r.Get("/{eventId}", events.GetEvent)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// HealthCheck handles GET /health
func HealthCheck(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check: database unreachable")
				writeFail(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		writeOK(w, http.StatusOK, map[string]string{"status": "ok"}, "")
	}
}
