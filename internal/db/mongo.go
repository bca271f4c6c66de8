package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tanishtirpathi/Playlistr/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection     = "users"
	PlaylistsCollection = "playlists"
)

var mongoClient *mongo.Client
var mongoDB *mongo.Database

// InitMongo connects, pings and prepares indexes for the configured database.
func InitMongo(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}

	database := client.Database(cfg.MongoDB)
	if err := EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	mongoClient = client
	mongoDB = database
	slog.Info("mongo connected", "db", cfg.MongoDB)
	return nil
}

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique and sort indexes the stores rely on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(UsersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "refreshToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	_, err = database.Collection(PlaylistsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "like", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "owner", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("playlists indexes: %w", err)
	}
	return nil
}

func DB() *mongo.Database {
	return mongoDB
}

// Ping is used by the health check.
func Ping(ctx context.Context) error {
	if mongoClient == nil {
		return fmt.Errorf("mongo not initialised")
	}
	return mongoClient.Ping(ctx, nil)
}

func Disconnect(ctx context.Context) error {
	if mongoClient == nil {
		return nil
	}
	return mongoClient.Disconnect(ctx)
}
