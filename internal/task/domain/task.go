package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskCollection marketplace task collection (owned by the task service)
const TaskCollection = "tasks"

// Asset uploaded task asset
type Asset struct {
	AssetStorageKey string `bson:"assetStorageKey"`
	Kind            string `bson:"kind"`
	URL             string `bson:"url,omitempty"`
}

// Task read model of a marketplace task, only fields the chat needs
type Task struct {
	ID        primitive.ObjectID `bson:"_id"`
	Title     string             `bson:"task"`
	Status    string             `bson:"status"`
	Location  string             `bson:"location"`
	Incentive float64            `bson:"incentive"`
	Assets    []Asset            `bson:"assets"`
	CreatedAt time.Time          `bson:"created_at"`
}

// FirstAsset first uploaded asset, nil when none
func (t *Task) FirstAsset() *Asset {
	if len(t.Assets) == 0 {
		return nil
	}
	return &t.Assets[0]
}
