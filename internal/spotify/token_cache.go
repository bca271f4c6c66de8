package spotify

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tanishtirpathi/Playlistr/internal/metrics"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// expiryDelta refreshes a token slightly before Spotify would reject it.
const expiryDelta = 30 * time.Second

// FetchFunc obtains a fresh access token from the authorization server.
type FetchFunc func(ctx context.Context) (*oauth2.Token, error)

// TokenCache holds the app-level access token and its expiry. Concurrent
// callers that find it stale share a single fetch.
type TokenCache struct {
	mu     sync.Mutex
	value  string
	expiry time.Time

	group singleflight.Group
	fetch FetchFunc
	clock clockwork.Clock
}

func NewTokenCache(fetch FetchFunc, clock clockwork.Clock) *TokenCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenCache{fetch: fetch, clock: clock}
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value != "" && c.clock.Now().Before(c.expiry.Add(-expiryDelta)) {
		return c.value, true
	}
	return "", false
}

// Token returns a valid access token, fetching a new one when needed.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if v, ok := c.cached(); ok {
		return v, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		if v, ok := c.cached(); ok {
			return v, nil
		}

		tok, err := c.fetch(ctx)
		if err != nil {
			metrics.SpotifyTokenFetchesTotal.WithLabelValues("error").Inc()
			return "", err
		}
		metrics.SpotifyTokenFetchesTotal.WithLabelValues("ok").Inc()

		c.mu.Lock()
		c.value = tok.AccessToken
		c.expiry = tok.Expiry
		c.mu.Unlock()
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
