package breaker

import (
	"time"

	"task_chat_service/pkg/logger"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Settings circuit breaker setting
type Settings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	// IsSuccessful 回傳 true 的錯誤不計入失敗 (e.g. not found)
	IsSuccessful func(err error) bool
}

// New create a typed circuit breaker that trips after FailureThreshold consecutive failures
func New[T any](s Settings) *gobreaker.CircuitBreaker[T] {
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: s.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}
