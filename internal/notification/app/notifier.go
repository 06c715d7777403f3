package app

import (
	"context"
	"fmt"
	"time"

	chat_domain "task_chat_service/internal/chat/domain"
	"task_chat_service/internal/notification/domain"
	"task_chat_service/internal/notification/repository"
	"task_chat_service/pkg/breaker"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"
	"task_chat_service/pkg/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// TokenSource push token lookup, "" when the member has no device
type TokenSource interface {
	PushToken(ctx context.Context, memberID string) (string, error)
}

// PushNotifier chat Notifier backed by a Dispatcher
type PushNotifier struct {
	tokens     TokenSource
	dispatcher repository.Dispatcher
	cb         *gobreaker.CircuitBreaker[struct{}]
	timeout    time.Duration
}

// NewPushNotifier create PushNotifier
func NewPushNotifier(tokens TokenSource, dispatcher repository.Dispatcher, s breaker.Settings) *PushNotifier {
	return &PushNotifier{
		tokens:     tokens,
		dispatcher: dispatcher,
		cb:         breaker.New[struct{}](s),
		timeout:    5 * time.Second,
	}
}

// Notify no token -> skip with warn, dispatch failure -> external error
func (p *PushNotifier) Notify(ctx context.Context, n chat_domain.PushNotification) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token, err := p.tokens.PushToken(ctx, n.UserID)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return errprocess.External(err, "lookup push token of %s", n.UserID)
	}
	if token == "" {
		metrics.NotificationsTotal.WithLabelValues("no_token").Inc()
		logger.Log.Warn("no push token, skip notification", zap.String("user_id", n.UserID))
		return nil
	}

	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	job := domain.PushJob{
		UserID:    n.UserID,
		PushToken: token,
		Title:     n.Title,
		Body:      n.Body,
		Data:      n.Data,
		Sound:     domain.DefaultSound,
		CreatedAt: createdAt,
	}

	_, err = p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.dispatcher.Dispatch(ctx, job)
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return errprocess.External(err, "dispatch push via %s", p.dispatcher.Name())
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	logger.Log.Debug(fmt.Sprintf("push dispatched via %s", p.dispatcher.Name()), zap.String("user_id", n.UserID))
	return nil
}
