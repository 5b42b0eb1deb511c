// Package api wires the HTTP router: middleware, console pages, the public
// and admin JSON API, the live websocket feed and the docs.
package api

import (
	"context"
	"errors"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/schoolcup/internal/api/handler"
	"github.com/albapepper/schoolcup/internal/auth"
	"github.com/albapepper/schoolcup/internal/live"
	"github.com/albapepper/schoolcup/internal/store"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps handler.Deps) *chi.Mux {
	h := handler.New(deps)
	cfg := deps.Config
	accounts := deps.Accounts
	if accounts == nil {
		accounts = storeAccounts(deps.Store)
	}
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)

	// CORS. Credentials are allowed so the console may live on another origin.
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// Live feed before compression: the websocket hijacks the connection.
	if deps.Hub != nil {
		r.Get("/api/v1/live", live.Handler(deps.Hub, originPatterns(cfg.CORSAllowOrigins), h.Logger))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5)) // gzip

		// --- Pages ---
		for path, file := range pageFiles {
			page := servePage(cfg.StaticDir, file)
			if path == "/admin/dashboard" {
				r.With(deps.Sessions.RequirePage("/admin")).Get(path, page)
				continue
			}
			r.Get(path, page)
		}
		r.Handle("/assets/*", assets(cfg.StaticDir))

		r.Get("/api", h.Root)

		// Health checks
		r.Route("/health", func(r chi.Router) {
			r.Get("/", h.HealthCheck)
			r.Get("/db", h.HealthCheckDB)
			r.Get("/cache", h.HealthCheckCache)
		})

		// Swagger UI
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

		r.Route("/api/v1", func(r chi.Router) {
			// Public reads
			r.Get("/games", h.ListGames)
			r.Get("/games/{id}", h.GetGame)
			r.Get("/calendar", h.Calendar)
			r.Get("/teams", h.ListTeams)
			r.Get("/teams/{id}", h.GetTeam)
			r.Get("/modalities", h.ListModalities)
			r.Get("/modalities/{id}/standings", h.Standings)
			r.Get("/players/top", h.TopPlayers)
			r.Get("/players/{id}/photo", h.PlayerPhoto)

			// Public signups
			r.Get("/registration", h.GetRegistration)
			r.Post("/registration/teams", h.SubmitTeam)
			r.Post("/registration/players", h.SubmitPlayer)

			// Sessions
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", h.Login)
				r.Post("/logout", h.Logout)
				r.With(deps.Sessions.RequireSession, deps.Sessions.CheckAccount(accounts, h.Logger)).Get("/session", h.Session)
			})

			// Admin: scorers run games, admins manage everything else.
			r.Route("/admin", func(r chi.Router) {
				r.Use(deps.Sessions.RequireSession)
				r.Use(deps.Sessions.CheckAccount(accounts, h.Logger))

				r.Get("/dashboard", h.Dashboard)
				r.Get("/games", h.AdminListGames)
				r.Get("/games/{id}", h.AdminGetGame)
				r.Post("/games/{id}/start", h.StartGame)
				r.Post("/games/{id}/finish", h.FinishGame)
				r.Post("/games/{id}/cancel", h.CancelGame)
				r.Post("/games/{id}/events", h.AddEvent)
				r.Delete("/games/{id}/events/{eventID}", h.DeleteEvent)
				r.Put("/games/{id}/config", h.SaveConfig)
				r.Post("/games/{id}/score", h.Score)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireRole(store.RoleAdmin))

					r.Get("/modalities", h.AdminListModalities)
					r.Post("/modalities", h.CreateModality)
					r.Put("/modalities/{id}", h.UpdateModality)
					r.Delete("/modalities/{id}", h.DeleteModality)

					r.Get("/teams", h.AdminListTeams)
					r.Post("/teams", h.CreateTeam)
					r.Put("/teams/{id}", h.UpdateTeam)
					r.Delete("/teams/{id}", h.DeleteTeam)

					r.Get("/players", h.AdminListPlayers)
					r.Post("/players", h.CreatePlayer)
					r.Put("/players/{id}", h.UpdatePlayer)
					r.Delete("/players/{id}", h.DeletePlayer)
					r.Put("/players/{id}/photo", h.UploadPhoto)
					r.Delete("/players/{id}/photo", h.DeletePhoto)

					r.Post("/games", h.CreateGame)
					r.Put("/games/{id}", h.UpdateGame)
					r.Delete("/games/{id}", h.DeleteGame)

					r.Get("/requests/{kind}", h.ListRequests)
					r.Post("/requests/{kind}/{id}/approve", h.ApproveRequest)
					r.Post("/requests/{kind}/{id}/reject", h.RejectRequest)

					r.Put("/registration", h.UpdateRegistration)
					r.Get("/audit", h.Audit)
				})
			})
		})
	})

	r.NotFound(handler.NotFound)

	return r
}

// originPatterns turns CORS origins into the host patterns the websocket
// accept check expects.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}

// storeAccounts looks session users up in admin_users.
func storeAccounts(st *store.Store) auth.AccountFunc {
	return func(ctx context.Context, userID int64) (auth.Account, error) {
		a, err := st.GetAdminByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return auth.Account{}, auth.ErrNoAccount
		}
		if err != nil {
			return auth.Account{}, err
		}
		return auth.Account{Role: a.Role, PasswordChangedAt: a.PasswordChangedAt}, nil
	}
}
