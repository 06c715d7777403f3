package repository

import (
	"context"

	"task_chat_service/internal/notification/domain"
)

// Dispatcher hand push job to a transport
type Dispatcher interface {
	Dispatch(ctx context.Context, job domain.PushJob) error
	Name() string
}
