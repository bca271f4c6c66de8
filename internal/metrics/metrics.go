package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	// HTTPRequestsTotal tracks requests by route pattern, method and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration tracks request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Domain Metrics
var (
	// VotesTotal tracks applied votes by direction and outcome (added/retracted/switched)
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playlist_votes_total",
			Help: "Playlist votes by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	// AuthEventsTotal tracks register/login/refresh/logout attempts by result
	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication events by event and result",
		},
		[]string{"event", "result"},
	)

	// PlaylistsCreatedTotal tracks playlists created
	PlaylistsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playlists_created_total",
			Help: "Total playlists created",
		},
	)
)

// Cache & Upstream Metrics
var (
	// CacheLookupsTotal tracks cache lookups by cache name and result (hit/miss/error)
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	// SpotifyTokenFetchesTotal tracks client-credentials token fetches by result
	SpotifyTokenFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotify_token_fetches_total",
			Help: "Spotify access token fetches by result",
		},
		[]string{"result"},
	)
)
