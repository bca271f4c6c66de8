package repository

import (
	"context"
	"errors"

	"github.com/tanishtirpathi/Playlistr/internal/db"
	"github.com/tanishtirpathi/Playlistr/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateKey is returned when a unique index rejects an insert.
var ErrDuplicateKey = errors.New("duplicate key")

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(database *mongo.Database) *UserRepository {
	return &UserRepository{col: database.Collection(db.UsersCollection)}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.UserDoc, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.UserDoc, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.UserDoc, error) {
	var u models.UserDoc
	err := r.col.FindOne(ctx, filter).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByIDs loads the users in ids; missing ids are skipped.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.UserDoc, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetProjection(bson.M{"password": 0, "refreshToken": 0})
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.UserDoc
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert stores a new user. Users must carry exactly one credential kind.
func (r *UserRepository) Insert(ctx context.Context, u *models.UserDoc) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

// SetRefreshToken overwrites the stored refresh token, invalidating the previous one.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"refreshToken": token}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SwapRefreshToken replaces oldToken with newToken only if oldToken is still
// the stored value. It reports false when the token was already rotated.
func (r *UserRepository) SwapRefreshToken(ctx context.Context, id primitive.ObjectID, oldToken, newToken string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "refreshToken": oldToken},
		bson.M{"$set": bson.M{"refreshToken": newToken}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ClearRefreshToken nulls the refresh token of whichever user holds token.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, token string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"refreshToken": token},
		bson.M{"$set": bson.M{"refreshToken": nil}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// IncUploadedCount adds delta to playlistsUploadedCount, never going below zero.
func (r *UserRepository) IncUploadedCount(ctx context.Context, id primitive.ObjectID, delta int) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"playlistsUploadedCount": bson.M{"$max": bson.A{
				0,
				bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$playlistsUploadedCount", 0}}, delta}},
			}},
		}}},
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
