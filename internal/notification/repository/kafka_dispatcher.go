package repository

import (
	"context"

	"task_chat_service/internal/notification/domain"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter subset of *kafka.Writer
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaDispatcher struct {
	writer KafkaWriter
}

// NewKafkaDispatcher key = user id, jobs of one user keep order in a partition
func NewKafkaDispatcher(w KafkaWriter) Dispatcher {
	return &kafkaDispatcher{writer: w}
}

func (k *kafkaDispatcher) Dispatch(ctx context.Context, job domain.PushJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.UserID),
		Value: data,
		Time:  job.CreatedAt,
	})
}

func (k *kafkaDispatcher) Name() string { return "kafka" }
