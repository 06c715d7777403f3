package database

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Connection dsn based store / broker, RetryInterval is the sleep between attempts
type Connection struct {
	ConnectStr    string
	RetryCount    int
	RetryInterval time.Duration
}

// MongoDB client + selected database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// MinIOConnection task asset storage
type MinIOConnection struct {
	Endpoint      string
	User          string
	Password      string
	BucketName    string
	UseSSL        bool
	RetryCount    int
	RetryInterval time.Duration
}

// KafkaConnection push job topic
type KafkaConnection struct {
	Brokers       []string
	Topic         string
	RetryCount    int
	RetryInterval time.Duration
}
