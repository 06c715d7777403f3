package repository

import (
	"context"
	"time"

	"task_chat_service/internal/chat/domain"
	"task_chat_service/pkg/database"
	errprocess "task_chat_service/pkg/err"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository definition chat message store
type MessageRepository interface {
	EnsureIndexes(ctx context.Context) error
	Insert(ctx context.Context, msg *domain.ChatMessage) error
	FindByID(ctx context.Context, messageID primitive.ObjectID) (*domain.ChatMessage, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.ChatMessage, error)
	// FindByClientID miss returns nil, nil
	FindByClientID(ctx context.Context, roomID primitive.ObjectID, senderID, clientID string) (*domain.ChatMessage, error)
	DeleteByID(ctx context.Context, messageID primitive.ObjectID) error
	// ListBefore newest first, _id < before (exclusive), limit <= 0 = unbounded
	ListBefore(ctx context.Context, roomID primitive.ObjectID, limit int64, before *primitive.ObjectID) ([]domain.ChatMessage, error)
	UpdateStatus(ctx context.Context, messageID primitive.ObjectID, status domain.MessageStatus, at time.Time) (*domain.ChatMessage, error)
	MarkRoomRead(ctx context.Context, roomID primitive.ObjectID, userID string, at time.Time) (int64, error)
	FindUpdatedSince(ctx context.Context, roomIDs []primitive.ObjectID, since time.Time) ([]domain.ChatMessage, error)
}

type chatMessageRepository struct {
	coll *mongo.Collection
}

// NewMongoChatMessageRepository create a ChatMessageRepository
func NewMongoChatMessageRepository(db *mongo.Database) MessageRepository {
	return &chatMessageRepository{
		coll: db.Collection(domain.MessageCollection),
	}
}

// EnsureIndexes paging, sync and client_id idempotency indexes
func (r *chatMessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "_id", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "updated_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "client_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_client_id").
				SetPartialFilterExpression(bson.M{"client_id": bson.M{"$exists": true}}),
		},
	})
	return err
}

// Insert insert message, duplicate client_id -> conflict
func (r *chatMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, msg)
	if database.IsDuplicateKey(err) {
		return errprocess.Wrap(errprocess.KindConflict, err, "message client_id %s already exists", msg.ClientID)
	}
	return err
}

// FindByID find message by id
func (r *chatMessageRepository) FindByID(ctx context.Context, messageID primitive.ObjectID) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if database.IsNoDocuments(err) {
		return nil, errprocess.NotFound("message %s not found", messageID.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByIDs batch lookup for reply summaries
func (r *chatMessageRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.ChatMessage, error) {
	out := make(map[primitive.ObjectID]domain.ChatMessage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var msg domain.ChatMessage
		if err := cur.Decode(&msg); err != nil {
			return nil, err
		}
		out[msg.ID] = msg
	}
	return out, cur.Err()
}

// FindByClientID find message by client correlation id
func (r *chatMessageRepository) FindByClientID(ctx context.Context, roomID primitive.ObjectID, senderID, clientID string) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := r.coll.FindOne(ctx, bson.M{
		"room_id":   roomID,
		"sender_id": senderID,
		"client_id": clientID,
	}).Decode(&msg)
	if database.IsNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteByID compensation when the unread update failed
func (r *chatMessageRepository) DeleteByID(ctx context.Context, messageID primitive.ObjectID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": messageID})
	return err
}

// ListBefore page of messages older than before
func (r *chatMessageRepository) ListBefore(ctx context.Context, roomID primitive.ObjectID, limit int64, before *primitive.ObjectID) ([]domain.ChatMessage, error) {
	filter := bson.M{"room_id": roomID}
	if before != nil {
		filter["_id"] = bson.M{"$lt": *before}
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	msgs := []domain.ChatMessage{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// UpdateStatus set status (+ seen_at for seen) and return the updated message
func (r *chatMessageRepository) UpdateStatus(ctx context.Context, messageID primitive.ObjectID, status domain.MessageStatus, at time.Time) (*domain.ChatMessage, error) {
	set := bson.M{"status": status, "updated_at": at}
	if status == domain.StatusSeen {
		set["seen_at"] = at
	}

	var msg domain.ChatMessage
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&msg)
	if database.IsNoDocuments(err) {
		return nil, errprocess.NotFound("message %s not found", messageID.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRoomRead add user into read_by of every message that lacks it
func (r *chatMessageRepository) MarkRoomRead(ctx context.Context, roomID primitive.ObjectID, userID string, at time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"room_id": roomID, "read_by": bson.M{"$ne": userID}},
		bson.M{
			"$addToSet": bson.M{"read_by": userID},
			"$set":      bson.M{"updated_at": at},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// FindUpdatedSince messages of rooms touched after since
func (r *chatMessageRepository) FindUpdatedSince(ctx context.Context, roomIDs []primitive.ObjectID, since time.Time) ([]domain.ChatMessage, error) {
	msgs := []domain.ChatMessage{}
	if len(roomIDs) == 0 {
		return msgs, nil
	}

	cur, err := r.coll.Find(ctx,
		bson.M{"room_id": bson.M{"$in": roomIDs}, "updated_at": bson.M{"$gt": since}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
