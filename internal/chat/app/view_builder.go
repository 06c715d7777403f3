package app

import (
	"context"

	"task_chat_service/internal/chat/domain"
	"task_chat_service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// viewBuilder enrich rooms / messages with profiles and task summaries
// 列表的 enrichment 失敗只降級 (少 profile / context)，不讓整個請求失敗
type viewBuilder struct {
	profiles domain.ProfileReader
	contexts domain.ContextResolver
}

func (b *viewBuilder) loadProfiles(ctx context.Context, ids []string) map[string]domain.ProfileSummary {
	if b.profiles == nil || len(ids) == 0 {
		return map[string]domain.ProfileSummary{}
	}
	profiles, err := b.profiles.GetProfiles(ctx, ids)
	if err != nil {
		logger.Log.Warn("load profiles", zap.Strings("ids", ids), zap.Error(err))
		return map[string]domain.ProfileSummary{}
	}
	return profiles
}

func (b *viewBuilder) loadContexts(ctx context.Context, ids []string) map[string]domain.ContextSummary {
	if b.contexts == nil || len(ids) == 0 {
		return map[string]domain.ContextSummary{}
	}
	summaries, err := b.contexts.Summaries(ctx, ids)
	if err != nil {
		logger.Log.Warn("load contexts", zap.Strings("ids", ids), zap.Error(err))
		return map[string]domain.ContextSummary{}
	}
	return summaries
}

// roomViews rows keep their order, unread count is the one of userID
func (b *viewBuilder) roomViews(ctx context.Context, rows []domain.RoomWithLastMessage, userID string) []domain.RoomView {
	userIDs := make([]string, 0, len(rows)*2)
	contextIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.Participants...)
		contextIDs = append(contextIDs, row.ContextID)
	}
	profiles := b.loadProfiles(ctx, uniq(userIDs))
	contexts := b.loadContexts(ctx, uniq(contextIDs))

	views := make([]domain.RoomView, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		view := domain.RoomView{
			ID:            row.ID.Hex(),
			Name:          row.Name,
			Picture:       row.Picture,
			Participants:  row.Participants,
			Users:         make([]domain.ProfileSummary, 0, len(row.Participants)),
			LastMessageAt: row.LastMessageAt,
			UnreadCount:   row.UnreadFor(userID),
			CreatedAt:     row.CreatedAt,
			UpdatedAt:     row.UpdatedAt,
		}
		for _, p := range row.Participants {
			if profile, ok := profiles[p]; ok {
				view.Users = append(view.Users, profile)
			} else {
				view.Users = append(view.Users, domain.ProfileSummary{ID: p})
			}
		}
		if c, ok := contexts[row.ContextID]; ok {
			view.Context = &c
		}
		if row.LastMessage != nil {
			view.LastMessage = domain.NewMessageView(row.LastMessage, profiles)
		}
		views = append(views, view)
	}
	return views
}

// messageViews attach sender profile and reply summary, missing reply target is skipped
func (b *viewBuilder) messageViews(ctx context.Context, msgs []domain.ChatMessage, replies map[primitive.ObjectID]domain.ChatMessage) []domain.MessageView {
	senders := make([]string, 0, len(msgs)+len(replies))
	for _, m := range msgs {
		senders = append(senders, m.SenderID)
	}
	for _, r := range replies {
		senders = append(senders, r.SenderID)
	}
	profiles := b.loadProfiles(ctx, uniq(senders))

	views := make([]domain.MessageView, 0, len(msgs))
	for i := range msgs {
		view := domain.NewMessageView(&msgs[i], profiles)
		if msgs[i].ReplyTo != nil {
			if target, ok := replies[*msgs[i].ReplyTo]; ok {
				summary := &domain.ReplySummary{ID: target.ID.Hex(), Text: target.Text, Type: target.Type}
				if p, ok := profiles[target.SenderID]; ok {
					summary.Sender = &p
				}
				view.ReplyToMessage = summary
			}
		}
		views = append(views, *view)
	}
	return views
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
