package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/tanishtirpathi/Playlistr/internal/apperrors"
	"github.com/tanishtirpathi/Playlistr/internal/metrics"
	"github.com/tanishtirpathi/Playlistr/internal/models"
	"github.com/tanishtirpathi/Playlistr/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	DefaultPage        = 1
	DefaultPageLimit   = 10
	DefaultTopMinLikes = 10
	DefaultTopLimit    = 20
	MaxLimit           = 100

	defaultTopCacheTTL = 30 * time.Second
)

var sortFields = map[string]bool{
	"createdAt": true,
	"title":     true,
	"like":      true,
	"dislike":   true,
}

type PlaylistServiceConfig struct {
	// Cache and Tracks are optional.
	Cache       Cache
	Tracks      TrackLookup
	Clock       clockwork.Clock
	TopCacheTTL time.Duration
}

type PlaylistService struct {
	playlists PlaylistStore
	users     UserStore
	cache     Cache
	tracks    TrackLookup
	clock     clockwork.Clock
	topTTL    time.Duration
}

func NewPlaylistService(playlists PlaylistStore, users UserStore, cfg PlaylistServiceConfig) *PlaylistService {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TopCacheTTL <= 0 {
		cfg.TopCacheTTL = defaultTopCacheTTL
	}
	return &PlaylistService{
		playlists: playlists,
		users:     users,
		cache:     cfg.Cache,
		tracks:    cfg.Tracks,
		clock:     cfg.Clock,
		topTTL:    cfg.TopCacheTTL,
	}
}

type CreatePlaylistData struct {
	Title       string
	SpotifyID   string
	Description string
	Tags        []string
	IsPublic    *bool
}

type ListParams struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
}

type AddSongData struct {
	SpotifyID  string
	Name       string
	Artist     string
	Album      string
	Duration   int
	PreviewURL string
	AlbumArt   string
}

func parsePlaylistID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("invalid playlist id")
	}
	return oid, nil
}

// ================== CREATE & DELETE ==================

// Create stores a new playlist owned by owner. The owner always comes from
// the authenticated session.
func (s *PlaylistService) Create(ctx context.Context, owner *models.UserDoc, data CreatePlaylistData) (*models.PlaylistView, error) {
	title := strings.TrimSpace(data.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	description := strings.TrimSpace(data.Description)
	if utf8.RuneCountInString(description) > models.MaxDescriptionLength {
		return nil, apperrors.Validation(fmt.Sprintf("description must be at most %d characters", models.MaxDescriptionLength))
	}

	tags := make([]string, 0, len(data.Tags))
	seen := make(map[string]bool, len(data.Tags))
	for _, t := range data.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if !models.IsAllowedTag(t) {
			return nil, apperrors.Validation(fmt.Sprintf("invalid tag %q", t))
		}
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}

	isPublic := true
	if data.IsPublic != nil {
		isPublic = *data.IsPublic
	}

	p := &models.Playlist{
		Title:       title,
		SpotifyID:   strings.TrimSpace(data.SpotifyID),
		Owner:       owner.ID,
		CreatedAt:   s.clock.Now().UTC(),
		Tags:        tags,
		Description: description,
		Songs:       []models.Song{},
		LikedBy:     []primitive.ObjectID{},
		DislikedBy:  []primitive.ObjectID{},
		IsPublic:    isPublic,
	}
	if err := s.playlists.Insert(ctx, p); err != nil {
		return nil, apperrors.Internal("failed to create playlist", err)
	}

	if err := s.users.IncUploadedCount(ctx, owner.ID, 1); err != nil {
		if _, delErr := s.playlists.DeleteOwned(ctx, p.ID, owner.ID); delErr != nil {
			slog.ErrorContext(ctx, "failed to remove orphan playlist", "playlist_id", p.ID.Hex(), "error", delErr)
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal("failed to update user", err)
	}

	metrics.PlaylistsCreatedTotal.Inc()
	return &models.PlaylistView{Playlist: *p, Owner: ownerRef(owner)}, nil
}

// Delete removes a playlist owned by callerID and decrements their upload count.
func (s *PlaylistService) Delete(ctx context.Context, callerID primitive.ObjectID, playlistID string) error {
	id, err := parsePlaylistID(playlistID)
	if err != nil {
		return err
	}

	p, err := s.playlists.FindByID(ctx, id)
	if err != nil {
		return apperrors.Internal("failed to load playlist", err)
	}
	if p == nil {
		return apperrors.NotFound("Playlist not found")
	}
	if p.Owner != callerID {
		return apperrors.Forbidden("You are not authorized to delete this playlist")
	}

	deleted, err := s.playlists.DeleteOwned(ctx, id, callerID)
	if err != nil {
		return apperrors.Internal("failed to delete playlist", err)
	}
	if !deleted {
		return apperrors.NotFound("Playlist not found")
	}

	if err := s.users.IncUploadedCount(ctx, callerID, -1); err != nil {
		slog.ErrorContext(ctx, "failed to decrement uploaded count", "user_id", callerID.Hex(), "error", err)
	}
	return nil
}

// ================== QUERIES ==================

// List returns one page of the playlists viewer can see: every public
// playlist plus the viewer's own.
func (s *PlaylistService) List(ctx context.Context, viewer primitive.ObjectID, params ListParams) (*models.PlaylistPage, error) {
	page := params.Page
	if page == 0 {
		page = DefaultPage
	}
	limit := params.Limit
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if page < 1 {
		return nil, apperrors.Validation("page must be a positive integer")
	}
	if limit < 1 || limit > MaxLimit {
		return nil, apperrors.Validation(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	if page-1 > math.MaxInt/limit {
		return nil, apperrors.Validation("page is out of range")
	}

	sortBy := params.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	if !sortFields[sortBy] {
		return nil, apperrors.Validation("sortBy must be one of createdAt, title, like, dislike")
	}

	var ascending bool
	switch params.Order {
	case "", "desc":
	case "asc":
		ascending = true
	default:
		return nil, apperrors.Validation("order must be asc or desc")
	}

	playlists, total, err := s.playlists.List(ctx, repository.ListQuery{
		Viewer:    viewer,
		SortBy:    sortBy,
		Ascending: ascending,
		Skip:      (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return nil, apperrors.Internal("failed to list playlists", err)
	}

	views, err := s.resolveOwners(ctx, playlists)
	if err != nil {
		return nil, err
	}

	return &models.PlaylistPage{
		Playlists: views,
		Pagination: models.Pagination{
			CurrentPage:    page,
			TotalPages:     int((total + int64(limit) - 1) / int64(limit)),
			TotalPlaylists: total,
			Limit:          limit,
		},
	}, nil
}

func topCacheKey(minLikes, limit int) string {
	return fmt.Sprintf("playlists:top:%d:%d", minLikes, limit)
}

// Top returns public playlists with at least minLikes likes, most liked
// first. Results are cached for the configured TTL; cache errors fall
// through to the store.
func (s *PlaylistService) Top(ctx context.Context, minLikes, limit int) (*models.TopPlaylists, error) {
	if minLikes < 0 {
		return nil, apperrors.Validation("minLikes must not be negative")
	}
	if limit < 1 || limit > MaxLimit {
		return nil, apperrors.Validation(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}

	key := topCacheKey(minLikes, limit)
	if s.cache != nil {
		var cached models.TopPlaylists
		found, err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err != nil:
			metrics.CacheLookupsTotal.WithLabelValues("top", "error").Inc()
			slog.WarnContext(ctx, "top cache read failed", "key", key, "error", err)
		case found:
			metrics.CacheLookupsTotal.WithLabelValues("top", "hit").Inc()
			return &cached, nil
		default:
			metrics.CacheLookupsTotal.WithLabelValues("top", "miss").Inc()
		}
	}

	playlists, err := s.playlists.Top(ctx, minLikes, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to load top playlists", err)
	}
	views, err := s.resolveOwners(ctx, playlists)
	if err != nil {
		return nil, err
	}

	out := &models.TopPlaylists{Playlists: views, MinLikes: minLikes, Count: len(views)}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, out, s.topTTL); err != nil {
			slog.WarnContext(ctx, "top cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}

// Get returns a playlist visible to viewer. Private playlists of other users
// are reported as missing.
func (s *PlaylistService) Get(ctx context.Context, viewer primitive.ObjectID, playlistID string) (*models.PlaylistView, error) {
	id, err := parsePlaylistID(playlistID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p)
}

func (s *PlaylistService) loadVisible(ctx context.Context, viewer, id primitive.ObjectID) (*models.Playlist, error) {
	p, err := s.playlists.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("failed to load playlist", err)
	}
	if p == nil || !p.VisibleTo(viewer) {
		return nil, apperrors.NotFound("Playlist not found")
	}
	return p, nil
}

// loadOwned loads a playlist the caller may modify.
func (s *PlaylistService) loadOwned(ctx context.Context, callerID, id primitive.ObjectID) (*models.Playlist, error) {
	p, err := s.loadVisible(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if p.Owner != callerID {
		return nil, apperrors.Forbidden("You are not authorized to modify this playlist")
	}
	return p, nil
}

// ================== SONGS ==================

// AddSong appends a song to a playlist owned by callerID. When only the
// Spotify id is supplied the remaining metadata is looked up on Spotify.
func (s *PlaylistService) AddSong(ctx context.Context, callerID primitive.ObjectID, playlistID string, data AddSongData) (*models.PlaylistView, error) {
	id, err := parsePlaylistID(playlistID)
	if err != nil {
		return nil, err
	}
	spotifyID := strings.TrimSpace(data.SpotifyID)
	if spotifyID == "" {
		return nil, apperrors.Validation("spotifyId is required")
	}

	p, err := s.loadOwned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if p.HasSong(spotifyID) {
		return nil, apperrors.Conflict("Song already exists in playlist")
	}

	now := s.clock.Now().UTC()
	var song models.Song
	switch {
	case data.Name == "" && data.Artist == "" && s.tracks != nil:
		track, err := s.tracks.GetTrack(ctx, spotifyID)
		if err != nil {
			return nil, err
		}
		song = track.ToSong(now)
		song.SpotifyID = spotifyID
	case strings.TrimSpace(data.Name) == "" || strings.TrimSpace(data.Artist) == "":
		return nil, apperrors.Validation("name and artist are required")
	default:
		song = models.Song{
			SpotifyID:  spotifyID,
			Name:       strings.TrimSpace(data.Name),
			Artist:     strings.TrimSpace(data.Artist),
			Album:      strings.TrimSpace(data.Album),
			Duration:   data.Duration,
			PreviewURL: data.PreviewURL,
			AlbumArt:   data.AlbumArt,
			AddedAt:    now,
		}
	}

	added, err := s.playlists.AddSong(ctx, id, callerID, song)
	if err != nil {
		return nil, apperrors.Internal("failed to add song", err)
	}
	if !added {
		// Lost a race with a concurrent add of the same song or a delete.
		current, err := s.playlists.FindByID(ctx, id)
		if err != nil {
			return nil, apperrors.Internal("failed to load playlist", err)
		}
		if current == nil {
			return nil, apperrors.NotFound("Playlist not found")
		}
		return nil, apperrors.Conflict("Song already exists in playlist")
	}

	return s.reload(ctx, id)
}

func (s *PlaylistService) RemoveSong(ctx context.Context, callerID primitive.ObjectID, playlistID, songID string) (*models.PlaylistView, error) {
	id, err := parsePlaylistID(playlistID)
	if err != nil {
		return nil, err
	}
	p, err := s.loadOwned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if !p.HasSong(songID) {
		return nil, apperrors.NotFound("Song not found in playlist")
	}

	removed, err := s.playlists.RemoveSong(ctx, id, callerID, songID)
	if err != nil {
		return nil, apperrors.Internal("failed to remove song", err)
	}
	if !removed {
		return nil, apperrors.NotFound("Song not found in playlist")
	}
	return s.reload(ctx, id)
}

func (s *PlaylistService) reload(ctx context.Context, id primitive.ObjectID) (*models.PlaylistView, error) {
	p, err := s.playlists.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("failed to load playlist", err)
	}
	if p == nil {
		return nil, apperrors.NotFound("Playlist not found")
	}
	return s.view(ctx, p)
}

// ================== VOTES ==================

// Vote toggles callerID's vote in direction d and returns the playlist as
// stored after the update. Listeners on VoteChannel receive the new counts.
func (s *PlaylistService) Vote(ctx context.Context, callerID primitive.ObjectID, playlistID string, d models.VoteDirection) (*models.PlaylistView, error) {
	id, err := parsePlaylistID(playlistID)
	if err != nil {
		return nil, err
	}

	p, outcome, err := s.playlists.ApplyVote(ctx, id, callerID, d)
	if err != nil {
		return nil, apperrors.Internal("failed to apply vote", err)
	}
	if p == nil {
		return nil, apperrors.NotFound("Playlist not found")
	}
	metrics.VotesTotal.WithLabelValues(string(d), string(outcome)).Inc()

	if s.cache != nil {
		event := models.VoteEvent{PlaylistID: id.Hex(), Like: p.Like, Dislike: p.Dislike}
		if err := s.cache.PublishJSON(ctx, VoteChannel(id.Hex()), event); err != nil {
			slog.WarnContext(ctx, "failed to publish vote event", "playlist_id", id.Hex(), "error", err)
		}
	}

	return s.view(ctx, p)
}

// ================== OWNERS ==================

func ownerRef(u *models.UserDoc) models.OwnerRef {
	return models.OwnerRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (s *PlaylistService) view(ctx context.Context, p *models.Playlist) (*models.PlaylistView, error) {
	views, err := s.resolveOwners(ctx, []models.Playlist{*p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// resolveOwners attaches owner name and email to each playlist with a single
// store lookup. Owners that no longer exist keep only their id.
func (s *PlaylistService) resolveOwners(ctx context.Context, playlists []models.Playlist) ([]models.PlaylistView, error) {
	ids := make([]primitive.ObjectID, 0, len(playlists))
	seen := make(map[primitive.ObjectID]bool, len(playlists))
	for _, p := range playlists {
		if !seen[p.Owner] {
			seen[p.Owner] = true
			ids = append(ids, p.Owner)
		}
	}

	owners, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load playlist owners", err)
	}
	byID := make(map[primitive.ObjectID]*models.UserDoc, len(owners))
	for i := range owners {
		byID[owners[i].ID] = &owners[i]
	}

	views := make([]models.PlaylistView, 0, len(playlists))
	for _, p := range playlists {
		ref := models.OwnerRef{ID: p.Owner}
		if u, ok := byID[p.Owner]; ok {
			ref = ownerRef(u)
		}
		views = append(views, models.PlaylistView{Playlist: p, Owner: ref})
	}
	return views, nil
}
