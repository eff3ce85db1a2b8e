package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserCollection is the name of the collection holding user documents.
const UserCollection = "users"

// ConnectMongoDB establishes a connection to MongoDB at uri and verifies it
// with a ping.
func ConnectMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}
	return client, nil
}

// GetUserCollection returns the users collection of database dbName.
func GetUserCollection(client *mongo.Client, dbName string) *mongo.Collection {
	return client.Database(dbName).Collection(UserCollection)
}

// UserIndexes are the indexes the users collection relies on: uniqueness of
// username and email, and a sparse lookup index on the reset token.
func UserIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "reset_token", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("reset_token"),
		},
	}
}

// EnsureUserIndexes creates UserIndexes on col. Existing identical indexes are
// left alone by the server.
func EnsureUserIndexes(ctx context.Context, col *mongo.Collection) error {
	if _, err := col.Indexes().CreateMany(ctx, UserIndexes()); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}
