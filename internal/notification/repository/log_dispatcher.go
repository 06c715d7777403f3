package repository

import (
	"context"

	"task_chat_service/internal/notification/domain"
	"task_chat_service/pkg/logger"

	"go.uber.org/zap"
)

type logDispatcher struct{}

// NewLogDispatcher local / dev driver
func NewLogDispatcher() Dispatcher {
	return logDispatcher{}
}

func (logDispatcher) Dispatch(_ context.Context, job domain.PushJob) error {
	logger.Log.Info("push job",
		zap.String("user_id", job.UserID),
		zap.String("title", job.Title),
		zap.String("body", job.Body),
	)
	return nil
}

func (logDispatcher) Name() string { return "log" }
