package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// Settings configures a circuit breaker.
type Settings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// CircuitBreaker wraps gobreaker with the settings shape used across the
// codebase.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        settings.Name,
			MaxRequests: settings.MaxRequests,
			Interval:    settings.Interval,
			Timeout:     settings.Timeout,
		}),
	}
}

// Execute runs fn through the breaker.
func (c *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return c.cb.Execute(fn)
}

// State returns the breaker's current state name.
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}
