package repository

import (
	"context"

	"task_chat_service/internal/notification/domain"
	"task_chat_service/pkg/database"

	"github.com/goccy/go-json"
	"github.com/streadway/amqp"
)

type rabbitDispatcher struct {
	repo  database.RabbitRepo
	queue string
}

// NewRabbitDispatcher publish to default exchange, routing key = queue
func NewRabbitDispatcher(repo database.RabbitRepo, queue string) Dispatcher {
	return &rabbitDispatcher{repo: repo, queue: queue}
}

func (r *rabbitDispatcher) Dispatch(_ context.Context, job domain.PushJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return r.repo.Publish("", r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    job.CreatedAt,
		Body:         data,
	})
}

func (r *rabbitDispatcher) Name() string { return "rabbitmq" }
