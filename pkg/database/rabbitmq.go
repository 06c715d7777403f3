package database

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// RabbitRepo publish side of an amqp channel
type RabbitRepo interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type rabbitRepo struct {
	channel *amqp.Channel
}

// NewRabbitRepository create a RabbitRepository
func NewRabbitRepository(ch *amqp.Channel) RabbitRepo {
	return &rabbitRepo{channel: ch}
}

func (r *rabbitRepo) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return r.channel.Publish(exchange, key, mandatory, immediate, msg)
}

// ConnectRabbitMQWithRetry dial amqp url
func ConnectRabbitMQWithRetry(d Connection) (*amqp.Connection, error) {
	return retry("rabbitmq", d.RetryCount, d.RetryInterval, func() (*amqp.Connection, error) {
		return amqp.Dial(d.ConnectStr)
	})
}

// GetRabbitMQChannelWithRetry open channel and declare a durable queue
func GetRabbitMQChannelWithRetry(conn *amqp.Connection, queue string, maxRetries int, delay time.Duration) (*amqp.Channel, error) {
	ch, err := retry("rabbitmq channel", maxRetries, delay, conn.Channel)
	if err != nil {
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue [%s]: %w", queue, err)
	}
	return ch, nil
}
