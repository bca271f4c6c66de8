package repository

import (
	"context"

	"github.com/tanishtirpathi/Playlistr/internal/db"
	"github.com/tanishtirpathi/Playlistr/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListQuery describes one page of the playlist listing. Viewer, when set,
// also sees their own private playlists.
type ListQuery struct {
	Viewer    primitive.ObjectID
	SortBy    string
	Ascending bool
	Skip      int
	Limit     int
}

type PlaylistRepository struct {
	col *mongo.Collection
}

func NewPlaylistRepository(database *mongo.Database) *PlaylistRepository {
	return &PlaylistRepository{col: database.Collection(db.PlaylistsCollection)}
}

func (r *PlaylistRepository) Insert(ctx context.Context, p *models.Playlist) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, p)
	return err
}

func (r *PlaylistRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Playlist, error) {
	var p models.Playlist
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteOwned removes the playlist only if owner matches.
func (r *PlaylistRepository) DeleteOwned(ctx context.Context, id, owner primitive.ObjectID) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "owner": owner})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

func visibleFilter(viewer primitive.ObjectID) bson.M {
	if viewer.IsZero() {
		return bson.M{"isPublic": true}
	}
	return bson.M{"$or": bson.A{
		bson.M{"isPublic": true},
		bson.M{"owner": viewer},
	}}
}

func (r *PlaylistRepository) List(ctx context.Context, q ListQuery) ([]models.Playlist, int64, error) {
	filter := visibleFilter(q.Viewer)

	order := -1
	if q.Ascending {
		order = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: q.SortBy, Value: order}, {Key: "_id", Value: order}}).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Playlist
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Top returns public playlists with at least minLikes likes, most liked first.
func (r *PlaylistRepository) Top(ctx context.Context, minLikes, limit int) ([]models.Playlist, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "like", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{"isPublic": true, "like": bson.M{"$gte": minLikes}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Playlist
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddSong appends song unless a song with the same spotifyId is already
// present. It reports false when nothing matched (missing, not owned, or duplicate).
func (r *PlaylistRepository) AddSong(ctx context.Context, id, owner primitive.ObjectID, song models.Song) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "owner": owner, "songs.spotifyId": bson.M{"$ne": song.SpotifyID}},
		bson.M{"$push": bson.M{"songs": song}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// RemoveSong pulls the song with spotifyID. It reports false when nothing was removed.
func (r *PlaylistRepository) RemoveSong(ctx context.Context, id, owner primitive.ObjectID, spotifyID string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "owner": owner, "songs.spotifyId": spotifyID},
		bson.M{"$pull": bson.M{"songs": bson.M{"spotifyId": spotifyID}}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
