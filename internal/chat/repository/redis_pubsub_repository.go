package repository

import (
	"context"

	"task_chat_service/internal/chat/domain"
	"task_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// RedisPubSub definition redis pub/sub broadcast bus
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 將 envelope 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, env domain.BusEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe 訂閱 channels，收到 envelope 後呼叫 handler，ctx 取消時關閉訂閱
func (r *RedisPubSub) Subscribe(ctx context.Context, channels []string, handler func(channel string, env domain.BusEnvelope)) error {
	sub := r.client.Subscribe(ctx, channels...)
	// 確認訂閱成功再回傳
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var env domain.BusEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					logger.Log.Error("bus decode", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				handler(m.Channel, env)
			case <-ctx.Done():
				logger.Log.Info("bus subscription closed", zap.Strings("channels", channels))
				return
			}
		}
	}()
	return nil
}
