package app

import (
	"context"
	"time"

	"task_chat_service/internal/chat/domain"
	"task_chat_service/internal/chat/repository"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// SyncUseCase offline client pull / push
type SyncUseCase interface {
	GetChanges(ctx context.Context, userID string, since time.Time) (*domain.PullResponse, error)
	ApplyChanges(ctx context.Context, userID string, changes domain.PushChanges) (*domain.ApplyResult, []*domain.SendResult)
}

type syncUseCase struct {
	chat     ChatUseCase
	roomRepo repository.RoomRepository
	msgRepo  repository.MessageRepository
	views    *viewBuilder
	now      func() time.Time
	skew     time.Duration
}

// NewSyncUseCase init sync use case
func NewSyncUseCase(
	chat ChatUseCase,
	roomRepo repository.RoomRepository,
	msgRepo repository.MessageRepository,
	profiles domain.ProfileReader,
	contexts domain.ContextResolver,
	skew time.Duration,
) SyncUseCase {
	return &syncUseCase{
		chat:     chat,
		roomRepo: roomRepo,
		msgRepo:  msgRepo,
		views:    &viewBuilder{profiles: profiles, contexts: contexts},
		now:      nowMillis,
		skew:     skew,
	}
}

// GetChanges created_at > since -> created, else updated_at > since -> updated; nothing is ever deleted
func (uc *syncUseCase) GetChanges(ctx context.Context, userID string, since time.Time) (*domain.PullResponse, error) {
	// 訊息在 Insert 前就蓋了時間，回傳的 timestamp 往回退 skew，
	// 晚 commit 的寫入在下一次 pull 仍會出現 (client 依 id upsert)
	pulledAt := uc.now().Add(-uc.skew)

	rooms, err := uc.roomRepo.FindUpdatedSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	roomIDs, err := uc.roomRepo.ListIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := uc.msgRepo.FindUpdatedSince(ctx, roomIDs, since)
	if err != nil {
		return nil, err
	}

	changes := domain.SyncChanges{
		Conversations: domain.NewChangeSet[domain.RoomView](),
		Messages:      domain.NewChangeSet[domain.MessageView](),
	}

	rows := make([]domain.RoomWithLastMessage, 0, len(rooms))
	for _, r := range rooms {
		rows = append(rows, domain.RoomWithLastMessage{ChatRoom: r})
	}
	for _, v := range uc.views.roomViews(ctx, rows, userID) {
		if v.CreatedAt.After(since) {
			changes.Conversations.Created = append(changes.Conversations.Created, v)
		} else {
			changes.Conversations.Updated = append(changes.Conversations.Updated, v)
		}
	}

	for _, v := range uc.views.messageViews(ctx, msgs, nil) {
		if v.CreatedAt.After(since) {
			changes.Messages.Created = append(changes.Messages.Created, v)
		} else {
			changes.Messages.Updated = append(changes.Messages.Updated, v)
		}
	}

	return &domain.PullResponse{Changes: changes, Timestamp: pulledAt.UnixMilli()}, nil
}

// ApplyChanges replay queued messages, local id is the client_id so a replay is a no-op
// 單筆失敗只記錄，不中斷整批
func (uc *syncUseCase) ApplyChanges(ctx context.Context, userID string, changes domain.PushChanges) (*domain.ApplyResult, []*domain.SendResult) {
	result := &domain.ApplyResult{
		Applied:    []string{},
		Duplicates: []string{},
		Failed:     []domain.PushFailure{},
	}
	created := make([]*domain.SendResult, 0, len(changes.Messages.Created))

	for _, pm := range changes.Messages.Created {
		if pm.ID == "" {
			result.Failed = append(result.Failed, pushFailure(pm.ID, errprocess.Validation("local id is required")))
			continue
		}

		res, err := uc.chat.CreateMessage(ctx, userID, domain.SendMessageRequest{
			RoomID:      pm.RoomID,
			Type:        pm.Type,
			Text:        pm.Text,
			Attachments: pm.Attachments,
			ReplyTo:     pm.ReplyTo,
			ClientID:    pm.ID,
		})
		if err != nil {
			logger.Log.Warn("sync push entry rejected", zap.String("user_id", userID), zap.String("local_id", pm.ID), zap.Error(err))
			result.Failed = append(result.Failed, pushFailure(pm.ID, err))
			continue
		}
		if res.Duplicate {
			result.Duplicates = append(result.Duplicates, pm.ID)
			continue
		}
		result.Applied = append(result.Applied, pm.ID)
		created = append(created, res)
	}

	result.Success = len(result.Failed) == 0
	return result, created
}

func pushFailure(id string, err error) domain.PushFailure {
	return domain.PushFailure{ID: id, Kind: string(errprocess.KindOf(err)), Error: err.Error()}
}
