package handler

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/tanishtirpathi/Playlistr/internal/service"
)

type RouterConfig struct {
	Auth         *service.AuthService
	Playlists    *service.PlaylistService
	Subscriber   Subscriber
	AuthLimiter  *RateLimiter
	Cookies      CookieConfig
	Origins      []string
	HealthChecks []HealthCheck
}

// NewRouter wires every route of the API.
func NewRouter(cfg RouterConfig) http.Handler {
	authH := NewAuthHandler(cfg.Auth, cfg.Cookies)
	playlistH := NewPlaylistHandler(cfg.Playlists)
	liveH := NewLiveHandler(cfg.Playlists, cfg.Subscriber, cfg.Origins)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Correlation)
	r.Use(middleware.Logger)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", Health(cfg.HealthChecks...))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	authMw := JWTAuth(cfg.Auth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.AuthLimiter != nil {
					r.Use(cfg.AuthLimiter.Middleware)
				}
				r.Post("/register", authH.Register)
				r.Post("/login", authH.Login)
				r.Post("/refresh-token", authH.Refresh)
			})
			r.Post("/logout", authH.Logout)
			r.With(authMw).Get("/me", authH.Me)
		})

		r.Route("/playlists", func(r chi.Router) {
			// Public reads.
			r.Get("/top", playlistH.Top)
			r.With(OptionalAuth(cfg.Auth)).Get("/{id}", playlistH.Get)
			r.With(OptionalAuth(cfg.Auth)).Get("/{id}/live", liveH.Stream)

			r.Group(func(r chi.Router) {
				r.Use(authMw)
				r.Post("/create", playlistH.Create)
				r.Delete("/delete/{id}", playlistH.Delete)
				r.Get("/all", playlistH.List)
				r.Post("/{id}/add-song", playlistH.AddSong)
				r.Delete("/{id}/remove-song/{songId}", playlistH.RemoveSong)
				r.Post("/{id}/{direction}", playlistH.Vote)
			})
		})
	})

	return r
}
