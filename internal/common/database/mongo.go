// internal/common/database/mongo.go
package database

import (
	"context"
	"fmt"

	"business-directory/internal/common/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoClient holds the connection and database for submissions, businesses and images.
type MongoClient struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongo(ctx context.Context, cfg config.MongoConfig) (*MongoClient, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(config.GetDuration(cfg.ConnectTimeout))
	}
	if cfg.SocketTimeout > 0 {
		opts.SetSocketTimeout(config.GetDuration(cfg.SocketTimeout))
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	return &MongoClient{Client: client, DB: client.Database(cfg.Database)}, nil
}

func (c *MongoClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping failed: %w", err)
	}
	return nil
}

func (c *MongoClient) Close(ctx context.Context) error {
	if c.Client != nil {
		return c.Client.Disconnect(ctx)
	}
	return nil
}

// EnsureIndexes creates the lookup indexes used by tracking, listing and duplicate detection.
func (c *MongoClient) EnsureIndexes(ctx context.Context, cfg config.MongoConfig) error {
	submissions := []mongo.IndexModel{
		{Keys: bson.D{{Key: "trackingId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := c.DB.Collection(cfg.SubmissionsColl).Indexes().CreateMany(ctx, submissions); err != nil {
		return fmt.Errorf("failed to create submission indexes: %w", err)
	}

	businesses := []mongo.IndexModel{
		{Keys: bson.D{{Key: "businessId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "mobile", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "cities", Value: 1}}},
		{Keys: bson.D{{Key: "verified", Value: -1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := c.DB.Collection(cfg.BusinessesColl).Indexes().CreateMany(ctx, businesses); err != nil {
		return fmt.Errorf("failed to create business indexes: %w", err)
	}
	return nil
}
