package app

import (
	"context"
	"strings"

	"task_chat_service/internal/chat/domain"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"
	"task_chat_service/pkg/metrics"
	"task_chat_service/pkg/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CreateMessage persist message then bump unread counters of the other participants
func (uc *chatUseCase) CreateMessage(ctx context.Context, senderID string, req domain.SendMessageRequest) (*domain.SendResult, error) {
	if err := validation.ValidateStruct(&req); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = domain.MessageText
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Attachments) == 0 {
		return nil, errprocess.Validation("message needs text or attachments")
	}

	room, err := uc.participantRoom(ctx, req.RoomID, senderID)
	if err != nil {
		return nil, err
	}

	// 同一個 client_id 重送，直接回傳舊的那則
	if req.ClientID != "" {
		existing, err := uc.msgRepo.FindByClientID(ctx, room.ID, senderID, req.ClientID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return uc.result(room, existing, true), nil
		}
	}

	var replyTo *primitive.ObjectID
	if req.ReplyTo != "" {
		oid, err := parseID("reply_to", req.ReplyTo)
		if err != nil {
			return nil, err
		}
		target, err := uc.msgRepo.FindByID(ctx, oid)
		if err != nil {
			return nil, err
		}
		if target.RoomID != room.ID {
			return nil, errprocess.Validation("cannot reply to a message from another room")
		}
		replyTo = &oid
	}

	now := uc.now()
	msg := &domain.ChatMessage{
		RoomID:      room.ID,
		SenderID:    senderID,
		Type:        req.Type,
		Text:        req.Text,
		Attachments: req.Attachments,
		ReplyTo:     replyTo,
		ReadBy:      []string{senderID},
		Status:      domain.StatusSent,
		ClientID:    req.ClientID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.msgRepo.Insert(ctx, msg); err != nil {
		if req.ClientID != "" && errprocess.Is(err, errprocess.KindConflict) {
			existing, findErr := uc.msgRepo.FindByClientID(ctx, room.ID, senderID, req.ClientID)
			if findErr == nil && existing != nil {
				return uc.result(room, existing, true), nil
			}
		}
		return nil, err
	}

	if err := uc.roomRepo.IncrementUnread(ctx, room.ID, senderID, room.Participants, now); err != nil {
		// 補償：計數器沒更新就把訊息刪掉，避免 drift
		if delErr := uc.msgRepo.DeleteByID(ctx, msg.ID); delErr != nil {
			logger.Log.Error("compensate message delete",
				zap.String("message_id", msg.ID.Hex()),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	metrics.MessagesCreated.WithLabelValues(string(msg.Type)).Inc()
	return uc.result(room, msg, false), nil
}

func (uc *chatUseCase) result(room *domain.ChatRoom, msg *domain.ChatMessage, duplicate bool) *domain.SendResult {
	return &domain.SendResult{
		Message:        msg,
		ParticipantIDs: room.Participants,
		RoomName:       room.Name,
		Duplicate:      duplicate,
	}
}

// ListMessages page older than before, returned oldest -> newest
func (uc *chatUseCase) ListMessages(ctx context.Context, userID, roomID string, limit int64, before string) ([]domain.MessageView, error) {
	room, err := uc.participantRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	var cursor *primitive.ObjectID
	if before != "" {
		oid, err := parseID("before", before)
		if err != nil {
			return nil, err
		}
		cursor = &oid
	}

	msgs, err := uc.msgRepo.ListBefore(ctx, room.ID, clampLimit(limit, DefaultMessageLimit, MaxMessageLimit), cursor)
	if err != nil {
		return nil, err
	}
	reverse(msgs)

	replyIDs := make([]primitive.ObjectID, 0)
	for _, m := range msgs {
		if m.ReplyTo != nil {
			replyIDs = append(replyIDs, *m.ReplyTo)
		}
	}
	replies, err := uc.msgRepo.FindByIDs(ctx, replyIDs)
	if err != nil {
		logger.Log.Warn("load reply targets", zap.String("room_id", roomID), zap.Error(err))
		replies = nil
	}

	return uc.views.messageViews(ctx, msgs, replies), nil
}

// UpdateMessageStatus delivered / seen, any room participant may report it
func (uc *chatUseCase) UpdateMessageStatus(ctx context.Context, userID, messageID string, status domain.MessageStatus) (*domain.ChatMessage, error) {
	if status != domain.StatusDelivered && status != domain.StatusSeen {
		return nil, errprocess.Validation("invalid status %q", status)
	}
	oid, err := parseID("message_id", messageID)
	if err != nil {
		return nil, err
	}

	msg, err := uc.msgRepo.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if _, err := uc.participantRoom(ctx, msg.RoomID.Hex(), userID); err != nil {
		return nil, err
	}

	return uc.msgRepo.UpdateStatus(ctx, oid, status, uc.now())
}

func reverse(msgs []domain.ChatMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
