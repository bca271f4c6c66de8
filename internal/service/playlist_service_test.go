package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanishtirpathi/Playlistr/internal/apperrors"
	"github.com/tanishtirpathi/Playlistr/internal/models"
	"github.com/tanishtirpathi/Playlistr/internal/service/servicetest"
	"github.com/tanishtirpathi/Playlistr/internal/spotify"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeTracks struct {
	track *spotify.Track
	err   error
	calls int
}

func (f *fakeTracks) GetTrack(_ context.Context, id string) (*spotify.Track, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	t := *f.track
	t.ID = id
	return &t, nil
}

type playlistFixture struct {
	svc       *PlaylistService
	users     *servicetest.UserStore
	playlists *servicetest.PlaylistStore
	cache     *servicetest.Cache
	clock     *clockwork.FakeClock
}

func newPlaylistFixture(t *testing.T, tracks TrackLookup) *playlistFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	users := servicetest.NewUserStore()
	playlists := servicetest.NewPlaylistStore()
	cache := servicetest.NewCache()
	cache.Now = clock.Now

	svc := NewPlaylistService(playlists, users, PlaylistServiceConfig{
		Cache:       cache,
		Tracks:      tracks,
		Clock:       clock,
		TopCacheTTL: 30 * time.Second,
	})
	return &playlistFixture{svc: svc, users: users, playlists: playlists, cache: cache, clock: clock}
}

func (f *playlistFixture) addUser(t *testing.T, name string) *models.UserDoc {
	t.Helper()
	u := &models.UserDoc{Name: name, Email: strings.ToLower(name) + "@example.com"}
	require.NoError(t, f.users.Insert(context.Background(), u))
	return u
}

func (f *playlistFixture) create(t *testing.T, owner *models.UserDoc, public bool) *models.PlaylistView {
	t.Helper()
	p, err := f.svc.Create(context.Background(), owner, CreatePlaylistData{
		Title:    "Mix",
		Tags:     []string{"pop"},
		IsPublic: &public,
	})
	require.NoError(t, err)
	return p
}

// seed stores a playlist with the given like count without going through votes.
func (f *playlistFixture) seed(t *testing.T, owner primitive.ObjectID, likes int, public bool) primitive.ObjectID {
	t.Helper()
	p := &models.Playlist{Title: "seeded", Owner: owner, IsPublic: public, Like: likes, CreatedAt: f.clock.Now()}
	for i := 0; i < likes; i++ {
		p.LikedBy = append(p.LikedBy, primitive.NewObjectID())
	}
	require.NoError(t, f.playlists.Insert(context.Background(), p))
	return p.ID
}

func uploadedCount(t *testing.T, f *playlistFixture, id primitive.ObjectID) int {
	t.Helper()
	u, err := f.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u.PlaylistsUploadedCount
}

// ================== CREATE & DELETE ==================

func TestCreate(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")

	p, err := f.svc.Create(context.Background(), owner, CreatePlaylistData{
		Title:       "  Road trip ",
		Description: " windows down ",
		Tags:        []string{"rock", "Pop", "rock"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Road trip", p.Title)
	assert.Equal(t, "windows down", p.Description)
	assert.Equal(t, []string{"rock", "pop"}, p.Tags)
	assert.True(t, p.IsPublic)
	assert.Equal(t, owner.ID, p.Playlist.Owner)
	assert.Equal(t, models.OwnerRef{ID: owner.ID, Name: "Alice", Email: "alice@example.com"}, p.Owner)
	assert.Equal(t, f.clock.Now().UTC(), p.CreatedAt)
	assert.Equal(t, 1, uploadedCount(t, f, owner.ID))
}

func TestCreate_Validation(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")

	cases := map[string]CreatePlaylistData{
		"empty title":      {Title: "   "},
		"unknown tag":      {Title: "x", Tags: []string{"polka"}},
		"long description": {Title: "x", Description: strings.Repeat("a", models.MaxDescriptionLength+1)},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), owner, data)
			assert.True(t, apperrors.IsType(err, apperrors.TypeValidation), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.playlists.Len())
	assert.Equal(t, 0, uploadedCount(t, f, owner.ID))
}

func TestCreate_OwnerMissing(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	ghost := &models.UserDoc{ID: primitive.NewObjectID(), Name: "Ghost"}

	_, err := f.svc.Create(context.Background(), ghost, CreatePlaylistData{Title: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
	assert.Equal(t, 0, f.playlists.Len(), "orphan playlist must be removed")
}

func TestDelete_NonOwnerForbidden(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	other := f.addUser(t, "Bob")
	p := f.create(t, owner, true)

	err := f.svc.Delete(context.Background(), other.ID, p.ID.Hex())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthorization))

	still, err := f.playlists.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
	assert.Equal(t, 1, uploadedCount(t, f, owner.ID))
}

func TestDelete_OwnerDecrementsCount(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	p := f.create(t, owner, true)

	require.NoError(t, f.svc.Delete(context.Background(), owner.ID, p.ID.Hex()))
	assert.Equal(t, 0, f.playlists.Len())
	assert.Equal(t, 0, uploadedCount(t, f, owner.ID))

	err := f.svc.Delete(context.Background(), owner.ID, p.ID.Hex())
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))

	err = f.svc.Delete(context.Background(), owner.ID, "not-an-id")
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
}

func TestDelete_CountFloorsAtZero(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	id := f.seed(t, owner.ID, 0, true)

	require.NoError(t, f.svc.Delete(context.Background(), owner.ID, id.Hex()))
	assert.Equal(t, 0, uploadedCount(t, f, owner.ID))
}

// ================== QUERIES ==================

func TestList_VisibilityAndPagination(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	alice := f.addUser(t, "Alice")
	bob := f.addUser(t, "Bob")

	for i := 0; i < 3; i++ {
		f.create(t, bob, true)
		f.clock.Advance(time.Minute)
	}
	f.create(t, bob, false)
	mine := f.create(t, alice, false)

	page, err := f.svc.List(context.Background(), alice.ID, ListParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, models.Pagination{CurrentPage: 1, TotalPages: 2, TotalPlaylists: 4, Limit: 2}, page.Pagination)
	require.Len(t, page.Playlists, 2)
	assert.Equal(t, mine.ID, page.Playlists[0].ID, "newest first by default")
	assert.Equal(t, "Alice", page.Playlists[0].Owner.Name)

	second, err := f.svc.List(context.Background(), alice.ID, ListParams{Page: 2, Limit: 2, Order: "asc"})
	require.NoError(t, err)
	require.Len(t, second.Playlists, 2)
	for _, p := range second.Playlists {
		assert.True(t, p.VisibleTo(alice.ID))
	}
}

func TestList_Validation(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	viewer := primitive.NewObjectID()

	cases := map[string]ListParams{
		"unknown sortBy": {SortBy: "owner"},
		"bad order":      {Order: "sideways"},
		"negative page":  {Page: -1},
		"limit too big":  {Limit: MaxLimit + 1},
		"page overflows": {Page: math.MaxInt / 5, Limit: 10},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.List(context.Background(), viewer, params)
			assert.True(t, apperrors.IsType(err, apperrors.TypeValidation), "got %v", err)
		})
	}
}

func TestTop_FiltersAndSorts(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	for _, likes := range []int{3, 12, 40, 9, 10} {
		f.seed(t, owner.ID, likes, true)
	}
	f.seed(t, owner.ID, 99, false)

	top, err := f.svc.Top(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 10, top.MinLikes)
	assert.Equal(t, 3, top.Count)

	var likes []int
	for _, p := range top.Playlists {
		assert.GreaterOrEqual(t, p.Like, 10)
		assert.True(t, p.IsPublic)
		likes = append(likes, p.Like)
	}
	assert.Equal(t, []int{40, 12, 10}, likes)
}

func TestTop_UsesCacheUntilExpiry(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	f.seed(t, owner.ID, 15, true)

	first, err := f.svc.Top(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)

	f.seed(t, owner.ID, 50, true)

	cached, err := f.svc.Top(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Count, "served from cache")

	f.clock.Advance(31 * time.Second)

	fresh, err := f.svc.Top(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Count)
}

func TestTop_CacheFailureFallsThrough(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	f.seed(t, owner.ID, 15, true)
	f.cache.Err = errors.New("redis down")

	top, err := f.svc.Top(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, top.Count)
}

func TestGet_Visibility(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	private := f.create(t, owner, false)

	_, err := f.svc.Get(context.Background(), primitive.NilObjectID, private.ID.Hex())
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))

	_, err = f.svc.Get(context.Background(), primitive.NewObjectID(), private.ID.Hex())
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))

	got, err := f.svc.Get(context.Background(), owner.ID, private.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, private.ID, got.ID)
}

// ================== SONGS ==================

func TestAddSong(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	p := f.create(t, owner, true)
	ctx := context.Background()

	data := AddSongData{SpotifyID: "s1", Name: "Song", Artist: "Artist", Duration: 1000}
	got, err := f.svc.AddSong(ctx, owner.ID, p.ID.Hex(), data)
	require.NoError(t, err)
	require.Len(t, got.Songs, 1)
	assert.Equal(t, "Song", got.Songs[0].Name)
	assert.Equal(t, f.clock.Now().UTC(), got.Songs[0].AddedAt)

	_, err = f.svc.AddSong(ctx, owner.ID, p.ID.Hex(), data)
	assert.True(t, apperrors.IsType(err, apperrors.TypeConflict))

	_, err = f.svc.AddSong(ctx, primitive.NewObjectID(), p.ID.Hex(), AddSongData{SpotifyID: "s2", Name: "n", Artist: "a"})
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthorization))

	_, err = f.svc.AddSong(ctx, owner.ID, p.ID.Hex(), AddSongData{SpotifyID: "s3"})
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation), "no metadata and no Spotify lookup")

	_, err = f.svc.AddSong(ctx, owner.ID, p.ID.Hex(), AddSongData{Name: "n", Artist: "a"})
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
}

// lostAddStore reports every song add as unmatched, as if a concurrent
// request got there first, and fails lookups once an add was attempted.
type lostAddStore struct {
	*servicetest.PlaylistStore
	attempted bool
	lookupErr error
}

func (s *lostAddStore) AddSong(context.Context, primitive.ObjectID, primitive.ObjectID, models.Song) (bool, error) {
	s.attempted = true
	return false, nil
}

func (s *lostAddStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Playlist, error) {
	if s.attempted && s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.PlaylistStore.FindByID(ctx, id)
}

func TestAddSong_LostRace(t *testing.T) {
	ctx := context.Background()
	users := servicetest.NewUserStore()
	owner := &models.UserDoc{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, users.Insert(ctx, owner))

	setup := func(t *testing.T, lookupErr error) (*PlaylistService, primitive.ObjectID) {
		t.Helper()
		store := &lostAddStore{PlaylistStore: servicetest.NewPlaylistStore(), lookupErr: lookupErr}
		p := &models.Playlist{Title: "Mix", Owner: owner.ID, IsPublic: true}
		require.NoError(t, store.Insert(ctx, p))
		return NewPlaylistService(store, users, PlaylistServiceConfig{}), p.ID
	}
	song := AddSongData{SpotifyID: "s1", Name: "Song", Artist: "Artist"}

	t.Run("duplicate", func(t *testing.T) {
		svc, id := setup(t, nil)
		_, err := svc.AddSong(ctx, owner.ID, id.Hex(), song)
		assert.True(t, apperrors.IsType(err, apperrors.TypeConflict), "got %v", err)
	})

	t.Run("store failure", func(t *testing.T) {
		svc, id := setup(t, errors.New("connection reset"))
		_, err := svc.AddSong(ctx, owner.ID, id.Hex(), song)
		assert.True(t, apperrors.IsType(err, apperrors.TypeInternal), "got %v", err)
	})
}

func TestAddSong_PrivatePlaylistOfOtherUser(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	p := f.create(t, owner, false)

	_, err := f.svc.AddSong(context.Background(), primitive.NewObjectID(), p.ID.Hex(), AddSongData{SpotifyID: "s", Name: "n", Artist: "a"})
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

func TestAddSong_SpotifyEnrichment(t *testing.T) {
	preview := "https://p.scdn.co/x"
	tracks := &fakeTracks{track: &spotify.Track{
		Name:       "Blue",
		Artists:    []spotify.Artist{{Name: "Joni Mitchell"}},
		Album:      spotify.Album{Name: "Blue", Images: []spotify.Image{{URL: "https://i.scdn.co/blue"}}},
		DurationMS: 180000,
		PreviewURL: &preview,
	}}
	f := newPlaylistFixture(t, tracks)
	owner := f.addUser(t, "Alice")
	p := f.create(t, owner, true)

	got, err := f.svc.AddSong(context.Background(), owner.ID, p.ID.Hex(), AddSongData{SpotifyID: "blue-id"})
	require.NoError(t, err)
	require.Len(t, got.Songs, 1)
	song := got.Songs[0]
	assert.Equal(t, "blue-id", song.SpotifyID)
	assert.Equal(t, "Blue", song.Name)
	assert.Equal(t, "Joni Mitchell", song.Artist)
	assert.Equal(t, 180000, song.Duration)
	assert.Equal(t, "https://i.scdn.co/blue", song.AlbumArt)
	assert.Equal(t, 1, tracks.calls)

	// Explicit metadata skips the lookup.
	_, err = f.svc.AddSong(context.Background(), owner.ID, p.ID.Hex(), AddSongData{SpotifyID: "other", Name: "n", Artist: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, tracks.calls)
}

func TestAddSong_SpotifyFailureSurfaces(t *testing.T) {
	tracks := &fakeTracks{err: apperrors.Upstream("spotify request failed", errors.New("502"))}
	f := newPlaylistFixture(t, tracks)
	owner := f.addUser(t, "Alice")
	p := f.create(t, owner, true)

	_, err := f.svc.AddSong(context.Background(), owner.ID, p.ID.Hex(), AddSongData{SpotifyID: "x"})
	assert.True(t, apperrors.IsType(err, apperrors.TypeUpstream))
	assert.Equal(t, 1, tracks.calls, "no retry")
}

func TestRemoveSong(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Alice")
	p := f.create(t, owner, true)
	ctx := context.Background()

	_, err := f.svc.AddSong(ctx, owner.ID, p.ID.Hex(), AddSongData{SpotifyID: "s1", Name: "n", Artist: "a"})
	require.NoError(t, err)

	_, err = f.svc.RemoveSong(ctx, primitive.NewObjectID(), p.ID.Hex(), "s1")
	assert.True(t, apperrors.IsType(err, apperrors.TypeAuthorization))

	got, err := f.svc.RemoveSong(ctx, owner.ID, p.ID.Hex(), "s1")
	require.NoError(t, err)
	assert.Empty(t, got.Songs)

	_, err = f.svc.RemoveSong(ctx, owner.ID, p.ID.Hex(), "s1")
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

// ================== VOTES ==================

func TestVote_SwitchFromDislike(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Owner")
	a, b, c, d := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	p := &models.Playlist{
		Title: "x", Owner: owner.ID, IsPublic: true,
		Like: 3, Dislike: 1,
		LikedBy:    []primitive.ObjectID{a, b, c},
		DislikedBy: []primitive.ObjectID{d},
	}
	require.NoError(t, f.playlists.Insert(context.Background(), p))

	got, err := f.svc.Vote(context.Background(), d, p.ID.Hex(), models.VoteLike)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{a, b, c, d}, got.LikedBy)
	assert.Equal(t, 4, got.Like)
	assert.Empty(t, got.DislikedBy)
	assert.Equal(t, 0, got.Dislike)
	assert.Equal(t, "Owner", got.Owner.Name)
}

func TestVote_ToggleAndSwitch(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Owner")
	p := f.create(t, owner, true)
	voter := primitive.NewObjectID()
	ctx := context.Background()

	got, err := f.svc.Vote(ctx, voter, p.ID.Hex(), models.VoteLike)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Like)

	got, err = f.svc.Vote(ctx, voter, p.ID.Hex(), models.VoteLike)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Like)
	assert.Empty(t, got.LikedBy)

	_, err = f.svc.Vote(ctx, voter, p.ID.Hex(), models.VoteLike)
	require.NoError(t, err)
	got, err = f.svc.Vote(ctx, voter, p.ID.Hex(), models.VoteDislike)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Like)
	assert.Equal(t, 1, got.Dislike)
	assert.Equal(t, []primitive.ObjectID{voter}, got.DislikedBy)
}

func TestVote_PublishesEvent(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Owner")
	p := f.create(t, owner, true)

	_, err := f.svc.Vote(context.Background(), primitive.NewObjectID(), p.ID.Hex(), models.VoteDislike)
	require.NoError(t, err)

	msgs := f.cache.Messages(VoteChannel(p.ID.Hex()))
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"playlistId":"`+p.ID.Hex()+`","like":0,"dislike":1}`, msgs[0])
}

func TestVote_HiddenPlaylist(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Owner")
	p := f.create(t, owner, false)

	_, err := f.svc.Vote(context.Background(), primitive.NewObjectID(), p.ID.Hex(), models.VoteLike)
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))

	_, err = f.svc.Vote(context.Background(), owner.ID, p.ID.Hex(), models.VoteLike)
	assert.NoError(t, err)

	_, err = f.svc.Vote(context.Background(), owner.ID, primitive.NewObjectID().Hex(), models.VoteLike)
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

func TestVote_ConcurrentDistinctUsers(t *testing.T) {
	f := newPlaylistFixture(t, nil)
	owner := f.addUser(t, "Owner")
	p := f.create(t, owner, true)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Vote(context.Background(), primitive.NewObjectID(), p.ID.Hex(), models.VoteLike)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.svc.Get(context.Background(), owner.ID, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, n, got.Like)
	assert.Len(t, got.LikedBy, n)
}
