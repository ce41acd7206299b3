// Package breaker wraps github.com/sony/gobreaker for the external calls the
// engine depends on (the collector's market data fetches), adapted
// from infra/breakers in the teacher repo to expose named breakers per
// dependency instead of one shared instance.
package breaker

import (
	"time"

	gobreaker "github.com/sony/gobreaker"
)

// Breaker wraps one named circuit breaker.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New returns a Breaker that trips after 3 consecutive failures, or after a
// failure rate above 5% once at least 20 requests have been observed in the
// rolling interval; it stays open for 60s before probing again.
func New(name string) *Breaker {
	settings := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker, short-circuiting with
// gobreaker.ErrOpenState when tripped.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// State reports the breaker's current state for health/status surfaces.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
