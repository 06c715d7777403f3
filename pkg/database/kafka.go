package database

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriterWithRetry 先確認 broker 可連線，再建立 Writer
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	if len(k.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers is empty")
	}

	_, err := retry("kafka", k.RetryCount, k.RetryInterval, func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		conn, err := kafka.DialContext(ctx, "tcp", k.Brokers[0])
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, conn.Close()
	})
	if err != nil {
		return nil, err
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(k.Brokers...),
		Topic:                  k.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, nil
}
