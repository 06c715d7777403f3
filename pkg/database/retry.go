package database

import (
	"fmt"
	"time"

	"task_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// retry 至少跑一次，每次失敗間隔 interval
func retry[T any](name string, count int, interval time.Duration, fn func() (T, error)) (T, error) {
	if count < 1 {
		count = 1
	}

	var v T
	var err error
	for attempt := 1; attempt <= count; attempt++ {
		if v, err = fn(); err == nil {
			logger.Log.Info(name+" connected", zap.Int("attempt", attempt))
			return v, nil
		}

		logger.Log.Warn(name+" connect failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max", count),
			zap.Error(err),
		)
		if attempt < count {
			time.Sleep(interval)
		}
	}
	return v, fmt.Errorf("%s unreachable after %d attempts: %w", name, count, err)
}
