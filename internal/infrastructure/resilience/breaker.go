// Package resilience wraps outbound API calls in circuit breakers.
package resilience

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/pkg/logger"
)

// ErrCircuitOpen is returned while a breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker open")

// StateListener observes breaker transitions, typically for metrics.
// state is 0 closed, 1 half-open, 2 open.
type StateListener func(name string, state int)

// NewBreaker builds a breaker that trips after FailureThreshold consecutive
// failures. Zero values fall back to conservative defaults.
func NewBreaker[T any](name string, cfg config.BreakerConfig, log *logger.Logger, onChange StateListener) *gobreaker.CircuitBreaker[T] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	maxRequests := cfg.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log = log.WithComponent("breaker")

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    cfg.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			if onChange != nil {
				onChange(name, int(to))
			}
		},
	})
}

// Translate maps gobreaker rejections onto ErrCircuitOpen and passes other
// errors through.
func Translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}
