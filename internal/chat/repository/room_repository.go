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

// RoomRepository definition chat room store
type RoomRepository interface {
	EnsureIndexes(ctx context.Context) error
	FindByID(ctx context.Context, roomID primitive.ObjectID) (*domain.ChatRoom, error)
	// FindByKey miss returns nil, nil
	FindByKey(ctx context.Context, contextID, participantsKey string) (*domain.ChatRoom, error)
	Create(ctx context.Context, room *domain.ChatRoom) error
	ListForUser(ctx context.Context, userID string, limit, skip int64) ([]domain.RoomWithLastMessage, error)
	IncrementUnread(ctx context.Context, roomID primitive.ObjectID, senderID string, participants []string, at time.Time) error
	ResetUnread(ctx context.Context, roomID primitive.ObjectID, userID string, at time.Time) error
	CountUnreadRooms(ctx context.Context, userID string) (int64, error)
	ListIDsForUser(ctx context.Context, userID string) ([]primitive.ObjectID, error)
	FindUpdatedSince(ctx context.Context, userID string, since time.Time) ([]domain.ChatRoom, error)
}

type chatRoomRepository struct {
	roomsColl *mongo.Collection
}

// NewMongoChatRepository create new mongo chat room store
func NewMongoChatRepository(db *mongo.Database) RoomRepository {
	return &chatRoomRepository{
		roomsColl: db.Collection(domain.RoomCollection),
	}
}

// EnsureIndexes unique (context_id, participants_key) + list / sync indexes
func (r *chatRoomRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.roomsColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "context_id", Value: 1}, {Key: "participants_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_context_participants"),
		},
		{
			Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: 1}},
		},
	})
	return err
}

// FindByID find room by id
func (r *chatRoomRepository) FindByID(ctx context.Context, roomID primitive.ObjectID) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	err := r.roomsColl.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if database.IsNoDocuments(err) {
		return nil, errprocess.NotFound("room %s not found", roomID.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByKey find room by (context, participants key)
func (r *chatRoomRepository) FindByKey(ctx context.Context, contextID, participantsKey string) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	err := r.roomsColl.FindOne(ctx, bson.M{
		"context_id":       contextID,
		"participants_key": participantsKey,
	}).Decode(&room)
	if database.IsNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Create insert room, duplicate key -> conflict
func (r *chatRoomRepository) Create(ctx context.Context, room *domain.ChatRoom) error {
	if room.ID.IsZero() {
		room.ID = primitive.NewObjectID()
	}
	if room.UnreadCounts == nil {
		room.UnreadCounts = map[string]int{}
	}
	_, err := r.roomsColl.InsertOne(ctx, room)
	if database.IsDuplicateKey(err) {
		return errprocess.Wrap(errprocess.KindConflict, err, "room already exists")
	}
	return err
}

// ListForUser rooms of user sorted by last activity, with last message preview
func (r *chatRoomRepository) ListForUser(ctx context.Context, userID string, limit, skip int64) ([]domain.RoomWithLastMessage, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"participants": userID}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "last_message_at", Value: -1}, {Key: "_id", Value: -1}}}},
	}
	if skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: skip}})
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": domain.MessageCollection,
			"let":  bson.M{"rid": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$room_id", "$$rid"}}}},
				bson.M{"$sort": bson.M{"_id": -1}},
				bson.M{"$limit": 1},
			},
			"as": "last_message",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$last_message", "preserveNullAndEmptyArrays": true}}},
	)

	cur, err := r.roomsColl.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	rooms := []domain.RoomWithLastMessage{}
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// IncrementUnread one atomic update: bump activity and +1 for every non sender
func (r *chatRoomRepository) IncrementUnread(ctx context.Context, roomID primitive.ObjectID, senderID string, participants []string, at time.Time) error {
	inc := bson.M{}
	for _, p := range participants {
		if p != senderID {
			inc["unread_counts."+p] = 1
		}
	}
	update := bson.M{"$set": bson.M{"last_message_at": at, "updated_at": at}}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	res, err := r.roomsColl.UpdateOne(ctx, bson.M{"_id": roomID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errprocess.NotFound("room %s not found", roomID.Hex())
	}
	return nil
}

// ResetUnread set unread_counts.<user> = 0
func (r *chatRoomRepository) ResetUnread(ctx context.Context, roomID primitive.ObjectID, userID string, at time.Time) error {
	res, err := r.roomsColl.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{"unread_counts." + userID: 0, "updated_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errprocess.NotFound("room %s not found", roomID.Hex())
	}
	return nil
}

// CountUnreadRooms rooms where user counter > 0
func (r *chatRoomRepository) CountUnreadRooms(ctx context.Context, userID string) (int64, error) {
	filter := bson.M{"participants": userID}
	filter["unread_counts."+userID] = bson.M{"$gt": 0}
	return r.roomsColl.CountDocuments(ctx, filter)
}

// ListIDsForUser ids of all rooms of user
func (r *chatRoomRepository) ListIDsForUser(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	cur, err := r.roomsColl.Find(ctx,
		bson.M{"participants": userID},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := []primitive.ObjectID{}
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// FindUpdatedSince rooms of user touched after since
func (r *chatRoomRepository) FindUpdatedSince(ctx context.Context, userID string, since time.Time) ([]domain.ChatRoom, error) {
	cur, err := r.roomsColl.Find(ctx,
		bson.M{"participants": userID, "updated_at": bson.M{"$gt": since}},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	rooms := []domain.ChatRoom{}
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}
