package circuitbreaker

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/FolioMarket/server/internal/config"
)

// ServiceType identifies external services for circuit breaker isolation.
type ServiceType string

const (
	// ServiceNotify guards the outbound sale-notification endpoint.
	ServiceNotify ServiceType = "notify"
)

// Manager manages circuit breakers for external services. Each service has
// its own breaker so a failing notification channel cannot trip anything
// else.
type Manager struct {
	breakers map[ServiceType]*gobreaker.CircuitBreaker
	enabled  bool
}

// BreakerConfig configures a single circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the number of requests allowed through while half-open.
	MaxRequests uint32

	// Interval is the cyclic period in closed state to clear the internal
	// counts. If 0, never clears.
	Interval time.Duration

	// Timeout is the period of the open state after which the state becomes
	// half-open.
	Timeout time.Duration

	// Trip thresholds: consecutive failures, or failure ratio over a
	// minimum sample.
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
}

// NewManagerFromConfig creates a circuit breaker manager from application config.
func NewManagerFromConfig(cfg config.BreakerConfig) *Manager {
	return NewManager(cfg.Enabled, map[ServiceType]BreakerConfig{
		ServiceNotify: {
			MaxRequests:         cfg.MaxRequests,
			Interval:            cfg.Interval.Duration,
			Timeout:             cfg.Timeout.Duration,
			ConsecutiveFailures: cfg.ConsecutiveFailures,
			FailureRatio:        cfg.FailureRatio,
			MinRequests:         cfg.MinRequests,
		},
	})
}

// NewManager creates a circuit breaker manager with the given per-service
// configuration. When disabled, Execute passes calls straight through.
func NewManager(enabled bool, configs map[ServiceType]BreakerConfig) *Manager {
	m := &Manager{
		breakers: make(map[ServiceType]*gobreaker.CircuitBreaker),
		enabled:  enabled,
	}
	if !enabled {
		return m
	}
	for service, cfg := range configs {
		m.breakers[service] = gobreaker.NewCircuitBreaker(toGobreakerSettings(string(service), cfg))
	}
	return m
}

// Execute wraps a function call with circuit breaker protection. If circuit
// breakers are disabled or not configured for the service, executes directly.
func (m *Manager) Execute(service ServiceType, fn func() (interface{}, error)) (interface{}, error) {
	if !m.enabled {
		return fn()
	}
	breaker, ok := m.breakers[service]
	if !ok {
		return fn()
	}
	return breaker.Execute(fn)
}

// State returns the current state of a circuit breaker. Returns "disabled"
// if circuit breakers are not enabled, "not_configured" if the service has
// no breaker.
func (m *Manager) State(service ServiceType) string {
	if !m.enabled {
		return "disabled"
	}
	breaker, ok := m.breakers[service]
	if !ok {
		return "not_configured"
	}
	return breaker.State().String()
}

// Counts returns the current counts for a circuit breaker.
func (m *Manager) Counts(service ServiceType) Counts {
	if !m.enabled {
		return Counts{}
	}
	breaker, ok := m.breakers[service]
	if !ok {
		return Counts{}
	}
	c := breaker.Counts()
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// toGobreakerSettings converts our config to gobreaker.Settings.
func toGobreakerSettings(name string, cfg BreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && cfg.MinRequests > 0 && counts.Requests >= cfg.MinRequests {
				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
				if failureRate >= cfg.FailureRatio {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuitbreaker.state_changed")
		},
	}
}
