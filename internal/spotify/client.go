// Package spotify looks up track metadata through the Spotify Web API using
// an app-level client-credentials token.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tanishtirpathi/Playlistr/internal/apperrors"
	"github.com/tanishtirpathi/Playlistr/internal/models"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist represents a simplified Spotify artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album represents a simplified Spotify album.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track represents a Spotify track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
	PreviewURL *string  `json:"preview_url"`
}

// ToSong maps the track onto an embedded playlist song.
func (t *Track) ToSong(addedAt time.Time) models.Song {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	song := models.Song{
		SpotifyID: t.ID,
		Name:      t.Name,
		Artist:    strings.Join(names, ", "),
		Album:     t.Album.Name,
		Duration:  t.DurationMS,
		AddedAt:   addedAt,
	}
	if t.PreviewURL != nil {
		song.PreviewURL = *t.PreviewURL
	}
	if len(t.Album.Images) > 0 {
		song.AlbumArt = t.Album.Images[0].URL
	}
	return song
}

type Options struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	HTTPClient   *http.Client
	Clock        clockwork.Clock
}

// Client calls the Spotify Web API. Failures are returned as-is, never retried.
type Client struct {
	tokens     *TokenCache
	httpClient *http.Client
	baseURL    string
}

func NewClient(opts Options) *Client {
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}

	return &Client{
		tokens:     NewTokenCache(cc.Token, opts.Clock),
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
	}
}

// GetTrack fetches a single track by Spotify id.
func (c *Client) GetTrack(ctx context.Context, id string) (*Track, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, apperrors.Upstream("spotify authentication failed", err)
	}

	endpoint := c.baseURL + "/tracks/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Internal("build spotify request", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Upstream("spotify request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return nil, apperrors.NotFound("track not found on Spotify")
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.Upstream("spotify request failed", fmt.Errorf("status %d", resp.StatusCode))
	}

	var track Track
	if err := json.NewDecoder(resp.Body).Decode(&track); err != nil {
		return nil, apperrors.Upstream("decode spotify track", err)
	}
	return &track, nil
}
