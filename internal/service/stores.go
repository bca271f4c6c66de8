package service

import (
	"context"
	"time"

	"github.com/tanishtirpathi/Playlistr/internal/models"
	"github.com/tanishtirpathi/Playlistr/internal/repository"
	"github.com/tanishtirpathi/Playlistr/internal/spotify"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore is implemented by repository.UserRepository. Lookups return
// nil, nil when nothing matches; updates against a missing user return
// mongo.ErrNoDocuments.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.UserDoc, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.UserDoc, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.UserDoc, error)
	Insert(ctx context.Context, u *models.UserDoc) error
	SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error
	SwapRefreshToken(ctx context.Context, id primitive.ObjectID, oldToken, newToken string) (bool, error)
	ClearRefreshToken(ctx context.Context, token string) (bool, error)
	IncUploadedCount(ctx context.Context, id primitive.ObjectID, delta int) error
}

// PlaylistStore is implemented by repository.PlaylistRepository.
type PlaylistStore interface {
	Insert(ctx context.Context, p *models.Playlist) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Playlist, error)
	DeleteOwned(ctx context.Context, id, owner primitive.ObjectID) (bool, error)
	List(ctx context.Context, q repository.ListQuery) ([]models.Playlist, int64, error)
	Top(ctx context.Context, minLikes, limit int) ([]models.Playlist, error)
	AddSong(ctx context.Context, id, owner primitive.ObjectID, song models.Song) (bool, error)
	RemoveSong(ctx context.Context, id, owner primitive.ObjectID, spotifyID string) (bool, error)
	ApplyVote(ctx context.Context, id, userID primitive.ObjectID, d models.VoteDirection) (*models.Playlist, models.VoteOutcome, error)
}

// Cache is implemented by *cache.Client.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	PublishJSON(ctx context.Context, channel string, value any) error
}

// TrackLookup is implemented by *spotify.Client.
type TrackLookup interface {
	GetTrack(ctx context.Context, id string) (*spotify.Track, error)
}

// VoteChannel is the pub/sub channel carrying VoteEvents for one playlist.
func VoteChannel(playlistID string) string {
	return "playlist:" + playlistID + ":votes"
}
