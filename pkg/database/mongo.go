package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// NewMongoDB connect and ping primary, retry per Connection
func NewMongoDB(ctx context.Context, c Connection, dbName string) (*MongoDB, error) {
	client, err := retry("mongo", c.RetryCount, c.RetryInterval, func() (*mongo.Client, error) {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.ConnectStr))
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return client, nil
	})
	if err != nil {
		return nil, err
	}

	return &MongoDB{Client: client, Database: client.Database(dbName)}, nil
}

// Close disconnect client
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// IsDuplicateKey unique index violation
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsNoDocuments FindOne miss
func IsNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
