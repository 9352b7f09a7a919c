package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/malekai-gauntlet/gymdesk/internal/config"
	"github.com/malekai-gauntlet/gymdesk/internal/handlers"
	"github.com/malekai-gauntlet/gymdesk/internal/middleware"
)

// Deps are the wired collaborators the routes need.
type Deps struct {
	Tickets *handlers.TicketHTTP
	Auth    *handlers.AuthHTTP
}

func New(log zerolog.Logger, cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(200, time.Minute))
	r.Use(middleware.WithAuth(log, cfg))

	// Health
	r.Get("/healthz", handlers.Health())

	// Auth
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", d.Auth.Register())
		r.Post("/login", d.Auth.Login())
		r.Post("/logout", d.Auth.Logout())
		r.Get("/me", d.Auth.Me())
	})

	// Tickets: members submit; the dashboard (agents/admins) reads,
	// transitions, replies, deletes, and follows the live feed.
	r.Route("/api/tickets", func(r chi.Router) {
		r.With(middleware.RequireAuth).Post("/", d.Tickets.Create())

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.RequireRoles("agent", "admin"))
			r.Get("/", d.Tickets.List())
			r.Get("/stream", d.Tickets.Stream())
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", d.Tickets.Get())
				r.Patch("/", d.Tickets.Update())
				r.Delete("/", d.Tickets.Delete())
				r.Post("/reply", d.Tickets.Reply())
				r.Post("/draft", d.Tickets.Draft())
			})
		})
	})

	return r
}
