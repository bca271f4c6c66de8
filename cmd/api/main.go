package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tanishtirpathi/Playlistr/docs" // swagger docs

	"github.com/getsentry/sentry-go"
	"github.com/tanishtirpathi/Playlistr/internal/cache"
	"github.com/tanishtirpathi/Playlistr/internal/config"
	"github.com/tanishtirpathi/Playlistr/internal/db"
	"github.com/tanishtirpathi/Playlistr/internal/handler"
	"github.com/tanishtirpathi/Playlistr/internal/logging"
	"github.com/tanishtirpathi/Playlistr/internal/repository"
	"github.com/tanishtirpathi/Playlistr/internal/service"
	"github.com/tanishtirpathi/Playlistr/internal/spotify"
	"github.com/tanishtirpathi/Playlistr/internal/token"
)

// @title Playlistr API
// @version 1.0
// @description Share playlists, vote on them and follow the counts live.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			slog.Warn("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Mongo and Redis
	if err := db.InitMongo(cfg); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Disconnect(ctx)
	}()

	rdb, err := cache.NewClient(context.Background(), cfg.RedisAddr, cfg.RedisPass)
	if err != nil {
		// Redis only backs the top cache and live updates.
		slog.Warn("redis unavailable, continuing without cache", "error", err)
		rdb = nil
	}
	defer rdb.Close()

	// repos
	userRepo := repository.NewUserRepository(db.DB())
	playlistRepo := repository.NewPlaylistRepository(db.DB())

	// services
	tokens := token.NewManager(token.Config{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, nil)

	psCfg := service.PlaylistServiceConfig{TopCacheTTL: cfg.TopCacheTTL}
	if rdb != nil {
		psCfg.Cache = rdb
	}
	if cfg.SpotifyEnabled() {
		psCfg.Tracks = spotify.NewClient(spotify.Options{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
		})
	} else {
		slog.Info("spotify credentials not set, song enrichment disabled")
	}

	authSvc := service.NewAuthService(userRepo, tokens, nil)
	playlistSvc := service.NewPlaylistService(playlistRepo, userRepo, psCfg)

	checks := []handler.HealthCheck{{Name: "mongo", Check: db.Ping}}
	if rdb != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: rdb.Ping})
	}

	router := handler.NewRouter(handler.RouterConfig{
		Auth:        authSvc,
		Playlists:   playlistSvc,
		Subscriber:  rdb,
		AuthLimiter: handler.NewRateLimiter(cfg.AuthRateLimit, nil),
		Cookies: handler.CookieConfig{
			Secure:     cfg.IsProduction(),
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
		},
		Origins:      cfg.AllowedOrigins(),
		HealthChecks: checks,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "port", cfg.HTTPPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
