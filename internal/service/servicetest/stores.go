// Package servicetest provides in-memory stores with the same contracts as
// the Mongo repositories, for service and handler tests.
package servicetest

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tanishtirpathi/Playlistr/internal/models"
	"github.com/tanishtirpathi/Playlistr/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.UserDoc
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[primitive.ObjectID]*models.UserDoc)}
}

func cloneUser(u *models.UserDoc) *models.UserDoc {
	c := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	return &c
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*models.UserDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = models.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (s *UserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.UserDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (s *UserStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.UserDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserDoc
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u.Public())
		}
	}
	return out, nil
}

func (s *UserStore) Insert(_ context.Context, u *models.UserDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateKey
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *UserStore) SetRefreshToken(_ context.Context, id primitive.ObjectID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.RefreshToken = &token
	return nil
}

func (s *UserStore) SwapRefreshToken(_ context.Context, id primitive.ObjectID, oldToken, newToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != oldToken {
		return false, nil
	}
	u.RefreshToken = &newToken
	return true, nil
}

func (s *UserStore) ClearRefreshToken(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.RefreshToken != nil && *u.RefreshToken == token {
			u.RefreshToken = nil
			return true, nil
		}
	}
	return false, nil
}

func (s *UserStore) IncUploadedCount(_ context.Context, id primitive.ObjectID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.PlaylistsUploadedCount = max(0, u.PlaylistsUploadedCount+delta)
	return nil
}

func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Delete removes a user outright. The API never does this; tests use it to
// simulate an owner disappearing mid-request.
func (s *UserStore) Delete(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

type PlaylistStore struct {
	mu        sync.Mutex
	playlists map[primitive.ObjectID]*models.Playlist
}

func NewPlaylistStore() *PlaylistStore {
	return &PlaylistStore{playlists: make(map[primitive.ObjectID]*models.Playlist)}
}

func clonePlaylist(p *models.Playlist) *models.Playlist {
	c := *p
	c.Tags = append([]string{}, p.Tags...)
	c.Songs = append([]models.Song{}, p.Songs...)
	c.LikedBy = append([]primitive.ObjectID{}, p.LikedBy...)
	c.DislikedBy = append([]primitive.ObjectID{}, p.DislikedBy...)
	return &c
}

func (s *PlaylistStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.playlists)
}

func (s *PlaylistStore) Insert(_ context.Context, p *models.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.playlists[p.ID] = clonePlaylist(p)
	return nil
}

func (s *PlaylistStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.playlists[id]; ok {
		return clonePlaylist(p), nil
	}
	return nil, nil
}

func (s *PlaylistStore) DeleteOwned(_ context.Context, id, owner primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok || p.Owner != owner {
		return false, nil
	}
	delete(s.playlists, id)
	return true, nil
}

func (s *PlaylistStore) visible(viewer primitive.ObjectID) []*models.Playlist {
	var out []*models.Playlist
	for _, p := range s.playlists {
		if p.VisibleTo(viewer) {
			out = append(out, p)
		}
	}
	return out
}

func compareBy(a, b *models.Playlist, field string) int {
	switch field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "like":
		return a.Like - b.Like
	case "dislike":
		return a.Dislike - b.Dislike
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (s *PlaylistStore) List(_ context.Context, q repository.ListQuery) ([]models.Playlist, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.visible(q.Viewer)
	sort.Slice(all, func(i, j int) bool {
		c := compareBy(all[i], all[j], q.SortBy)
		if c == 0 {
			c = strings.Compare(all[i].ID.Hex(), all[j].ID.Hex())
		}
		if q.Ascending {
			return c < 0
		}
		return c > 0
	})

	total := int64(len(all))
	start := min(q.Skip, len(all))
	end := min(start+q.Limit, len(all))

	out := make([]models.Playlist, 0, end-start)
	for _, p := range all[start:end] {
		out = append(out, *clonePlaylist(p))
	}
	return out, total, nil
}

func (s *PlaylistStore) Top(_ context.Context, minLikes, limit int) ([]models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*models.Playlist
	for _, p := range s.playlists {
		if p.IsPublic && p.Like >= minLikes {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Like != matched[j].Like {
			return matched[i].Like > matched[j].Like
		}
		return matched[i].ID.Hex() > matched[j].ID.Hex()
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]models.Playlist, 0, len(matched))
	for _, p := range matched {
		out = append(out, *clonePlaylist(p))
	}
	return out, nil
}

func (s *PlaylistStore) AddSong(_ context.Context, id, owner primitive.ObjectID, song models.Song) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok || p.Owner != owner || p.HasSong(song.SpotifyID) {
		return false, nil
	}
	p.Songs = append(p.Songs, song)
	return true, nil
}

func (s *PlaylistStore) RemoveSong(_ context.Context, id, owner primitive.ObjectID, spotifyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok || p.Owner != owner || !p.HasSong(spotifyID) {
		return false, nil
	}
	kept := make([]models.Song, 0, len(p.Songs))
	for _, song := range p.Songs {
		if song.SpotifyID != spotifyID {
			kept = append(kept, song)
		}
	}
	p.Songs = kept
	return true, nil
}

func (s *PlaylistStore) ApplyVote(_ context.Context, id, userID primitive.ObjectID, d models.VoteDirection) (*models.Playlist, models.VoteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok || !p.VisibleTo(userID) {
		return nil, "", nil
	}
	outcome := p.ApplyVote(userID, d)
	return clonePlaylist(p), outcome, nil
}

// Cache is a map-backed stand-in for the Redis client. Values go through
// JSON like the real one. Expiry is evaluated against Now, and Err, when
// set, fails every call.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]cacheEntry
	published map[string][]string
	Now       func() time.Time
	Err       error
}

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries:   make(map[string]cacheEntry),
		published: make(map[string][]string),
		Now:       time.Now,
	}
}

func (c *Cache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	e, ok := c.entries[key]
	if !ok || !c.Now().Before(e.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(e.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = cacheEntry{payload: b, expiresAt: c.Now().Add(ttl)}
	return nil
}

func (c *Cache) PublishJSON(_ context.Context, channel string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.published[channel] = append(c.published[channel], string(b))
	return nil
}

// Messages returns the JSON payloads published on channel.
func (c *Cache) Messages(channel string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.published[channel]...)
}
