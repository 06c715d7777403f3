package repository

import (
	"context"
	"time"

	"task_chat_service/internal/task/domain"
	"task_chat_service/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaskRepository read only task lookup
type TaskRepository interface {
	// FindByID miss returns nil, nil
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Task, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Task, error)
}

type taskRepository struct {
	coll *mongo.Collection
}

// NewTaskRepository create TaskRepository
func NewTaskRepository(db *mongo.Database) TaskRepository {
	return &taskRepository{coll: db.Collection(domain.TaskCollection)}
}

var taskProjection = bson.M{"task": 1, "status": 1, "location": 1, "incentive": 1, "assets": 1, "created_at": 1}

func (r *taskRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Task, error) {
	var t domain.Task
	err := r.coll.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(taskProjection)).Decode(&t)
	if database.IsNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Task, error) {
	tasks := []domain.Task{}
	if len(ids) == 0 {
		return tasks, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(taskProjection))
	if err != nil {
		return nil, err
	}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// AssetSigner presign storage keys into readable urls
type AssetSigner interface {
	PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}
