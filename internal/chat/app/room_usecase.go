package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"task_chat_service/internal/chat/domain"
	"task_chat_service/internal/chat/repository"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"
	"task_chat_service/pkg/metrics"
	"task_chat_service/pkg/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	// DefaultRoomLimit GET /rooms page size
	DefaultRoomLimit = 20
	// MaxRoomLimit GET /rooms page size upper bound
	MaxRoomLimit = 100
	// DefaultMessageLimit GET /rooms/:id/messages page size
	DefaultMessageLimit = 50
	// MaxMessageLimit GET /rooms/:id/messages page size upper bound
	MaxMessageLimit = 200
)

// ChatUseCase chat operations shared by REST, websocket and sync
type ChatUseCase interface {
	FindOrCreateRoom(ctx context.Context, creatorID string, req domain.CreateRoomRequest) (*domain.RoomView, error)
	ListRooms(ctx context.Context, userID string, limit, skip int64) ([]domain.RoomView, error)
	CreateMessage(ctx context.Context, senderID string, req domain.SendMessageRequest) (*domain.SendResult, error)
	ListMessages(ctx context.Context, userID, roomID string, limit int64, before string) ([]domain.MessageView, error)
	UpdateMessageStatus(ctx context.Context, userID, messageID string, status domain.MessageStatus) (*domain.ChatMessage, error)
	MarkAsRead(ctx context.Context, roomID, userID string) error
	GetUnreadConversationCount(ctx context.Context, userID string) (int64, error)
}

type chatUseCase struct {
	roomRepo repository.RoomRepository
	msgRepo  repository.MessageRepository
	contexts domain.ContextResolver
	views    *viewBuilder
	now      func() time.Time
}

// NewChatUseCase init chat use case
func NewChatUseCase(
	roomRepo repository.RoomRepository,
	msgRepo repository.MessageRepository,
	profiles domain.ProfileReader,
	contexts domain.ContextResolver,
) ChatUseCase {
	return &chatUseCase{
		roomRepo: roomRepo,
		msgRepo:  msgRepo,
		contexts: contexts,
		views:    &viewBuilder{profiles: profiles, contexts: contexts},
		now:      nowMillis,
	}
}

// mongo 只存到毫秒，回傳值跟 DB 一致
func nowMillis() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// FindOrCreateRoom one room per (context, participants key), always returns the enriched view
func (uc *chatUseCase) FindOrCreateRoom(ctx context.Context, creatorID string, req domain.CreateRoomRequest) (*domain.RoomView, error) {
	if err := validation.ValidateStruct(&req); err != nil {
		return nil, err
	}

	// "_" 是 key 的分隔符，token 裡的 id 也不能帶
	if strings.Contains(creatorID, domain.ParticipantsKeySep) {
		return nil, errprocess.Validation("participant id %q must not contain %q", creatorID, domain.ParticipantsKeySep)
	}
	participants, key := domain.ParticipantsKeyOf(append([]string{creatorID}, req.Participants...)...)
	if len(participants) < 2 {
		return nil, errprocess.Validation("at least two distinct participants required")
	}

	room, err := uc.roomRepo.FindByKey(ctx, req.ContextID, key)
	if err != nil {
		return nil, err
	}
	if room != nil && !slices.Equal(room.Participants, participants) {
		logger.Log.Warn("participants key collision",
			zap.String("room_id", room.ID.Hex()),
			zap.Strings("participants", participants),
		)
		return nil, errprocess.Validation("participants do not match room %s", room.ID.Hex())
	}
	if room == nil {
		if room, err = uc.createRoom(ctx, req.ContextID, participants, key); err != nil {
			return nil, err
		}
	}

	row := domain.RoomWithLastMessage{ChatRoom: *room}
	last, err := uc.msgRepo.ListBefore(ctx, room.ID, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(last) > 0 {
		row.LastMessage = &last[0]
	}

	views := uc.views.roomViews(ctx, []domain.RoomWithLastMessage{row}, creatorID)
	return &views[0], nil
}

func (uc *chatUseCase) createRoom(ctx context.Context, contextID string, participants []string, key string) (*domain.ChatRoom, error) {
	summary, err := uc.contexts.Resolve(ctx, contextID)
	if err != nil {
		if errprocess.KindOf(err) == errprocess.KindInternal {
			return nil, errprocess.External(err, "resolve context %s", contextID)
		}
		return nil, err
	}

	now := uc.now()
	room := &domain.ChatRoom{
		ContextID:       contextID,
		Participants:    participants,
		ParticipantsKey: key,
		Name:            domain.RoomName(summary.Title),
		Picture:         summary.Picture,
		UnreadCounts:    map[string]int{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = uc.roomRepo.Create(ctx, room)
	if errprocess.Is(err, errprocess.KindConflict) {
		// 併發建立撞 unique index，重讀一次
		existing, readErr := uc.roomRepo.FindByKey(ctx, contextID, key)
		if readErr != nil {
			return nil, readErr
		}
		if existing == nil {
			return nil, err
		}
		logger.Log.Debug("room create conflict, reuse existing", zap.String("room_id", existing.ID.Hex()))
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.RoomsCreated.Inc()
	logger.Log.Info("room created",
		zap.String("room_id", room.ID.Hex()),
		zap.String("context_id", contextID),
		zap.Strings("participants", participants),
	)
	return room, nil
}

// ListRooms rooms of user by last activity
func (uc *chatUseCase) ListRooms(ctx context.Context, userID string, limit, skip int64) ([]domain.RoomView, error) {
	limit = clampLimit(limit, DefaultRoomLimit, MaxRoomLimit)
	if skip < 0 {
		skip = 0
	}

	rows, err := uc.roomRepo.ListForUser(ctx, userID, limit, skip)
	if err != nil {
		return nil, err
	}
	return uc.views.roomViews(ctx, rows, userID), nil
}

// MarkAsRead read_by first, then counter reset; a failed reset heals on the next call
func (uc *chatUseCase) MarkAsRead(ctx context.Context, roomID, userID string) error {
	room, err := uc.participantRoom(ctx, roomID, userID)
	if err != nil {
		return err
	}

	now := uc.now()
	n, err := uc.msgRepo.MarkRoomRead(ctx, room.ID, userID, now)
	if err != nil {
		return err
	}
	if err := uc.roomRepo.ResetUnread(ctx, room.ID, userID, now); err != nil {
		return err
	}

	logger.Log.Debug("room marked read", zap.String("room_id", roomID), zap.String("user_id", userID), zap.Int64("messages", n))
	return nil
}

// GetUnreadConversationCount rooms whose counter of user > 0
func (uc *chatUseCase) GetUnreadConversationCount(ctx context.Context, userID string) (int64, error) {
	return uc.roomRepo.CountUnreadRooms(ctx, userID)
}

// participantRoom load room and require userID in it
func (uc *chatUseCase) participantRoom(ctx context.Context, roomID, userID string) (*domain.ChatRoom, error) {
	oid, err := parseID("room_id", roomID)
	if err != nil {
		return nil, err
	}
	room, err := uc.roomRepo.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(userID) {
		return nil, errprocess.Authorization("user %s is not a participant of room %s", userID, roomID)
	}
	return room, nil
}

func parseID(field, hex string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, errprocess.Validation("invalid %s %q", field, hex)
	}
	return oid, nil
}

func clampLimit(limit, def, max int64) int64 {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
