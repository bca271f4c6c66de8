package repository

import (
	"context"

	"github.com/tanishtirpathi/Playlistr/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func voteFields(d models.VoteDirection) (same, opposite string) {
	if d == models.VoteDislike {
		return "dislikedBy", "likedBy"
	}
	return "likedBy", "dislikedBy"
}

// votePipeline expresses models.Playlist.ApplyVote as an update pipeline.
// Both sets are rewritten in one $set stage, so every expression reads the
// pre-update document; the second stage derives the counters from the sets.
func votePipeline(userID primitive.ObjectID, d models.VoteDirection) mongo.Pipeline {
	sameField, oppField := voteFields(d)
	same := bson.M{"$ifNull": bson.A{"$" + sameField, bson.A{}}}
	opp := bson.M{"$ifNull": bson.A{"$" + oppField, bson.A{}}}

	without := func(arr bson.M) bson.M {
		return bson.M{"$filter": bson.M{
			"input": arr,
			"cond":  bson.M{"$ne": bson.A{"$$this", userID}},
		}}
	}
	hasSame := bson.M{"$in": bson.A{userID, same}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			sameField: bson.M{"$cond": bson.A{
				hasSame,
				without(same),
				bson.M{"$concatArrays": bson.A{same, bson.A{userID}}},
			}},
			oppField: bson.M{"$cond": bson.A{hasSame, opp, without(opp)}},
		}}},
		{{Key: "$set", Value: bson.M{
			"like":    bson.M{"$size": "$likedBy"},
			"dislike": bson.M{"$size": "$dislikedBy"},
		}}},
	}
}

// ApplyVote toggles userID's vote on a playlist visible to them in a single
// atomic document update. The pre-update document is read back and the same
// transition is replayed on it in memory, which yields both the stored result
// and the outcome. It returns nil when no visible playlist matches.
func (r *PlaylistRepository) ApplyVote(ctx context.Context, id, userID primitive.ObjectID, d models.VoteDirection) (*models.Playlist, models.VoteOutcome, error) {
	filter := bson.M{"_id": id}
	for k, v := range visibleFilter(userID) {
		filter[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var p models.Playlist
	err := r.col.FindOneAndUpdate(ctx, filter, votePipeline(userID, d), opts).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	outcome := p.ApplyVote(userID, d)
	return &p, outcome, nil
}
