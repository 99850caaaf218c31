package ratelimit

import (
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures NewBreaker.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	Interval            time.Duration
	OnStateChange       func(name string, from, to gobreaker.State)
	// IsSuccessful classifies errors that should not count against the
	// breaker. Nil treats every error as a failure.
	IsSuccessful func(err error) bool
}

// NewBreaker builds a circuit breaker that opens after a run of consecutive
// failures, or when more than half of at least 20 requests fail.
func NewBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	st := gobreaker.Settings{
		Name:          name,
		Interval:      s.Interval,
		Timeout:       s.OpenTimeout,
		OnStateChange: s.OnStateChange,
		IsSuccessful:  s.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= s.ConsecutiveFailures {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
		},
	}
	return gobreaker.NewCircuitBreaker(st)
}
