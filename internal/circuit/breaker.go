// Package circuit implements a circuit breaker around order execution.
// Repeated exchange failures open the breaker and halt mirroring for a
// cooldown instead of hammering a broken or rate-limited API.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Execution halted
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

// Config holds circuit breaker configuration
type Config struct {
	Enabled                bool          `json:"enabled"`
	MaxConsecutiveFailures int           `json:"max_consecutive_failures"` // Failed orders in a row before tripping
	Cooldown               time.Duration `json:"cooldown"`                 // Halt duration after trip
	MaxOrdersPerMinute     int           `json:"max_orders_per_minute"`    // Rate limit on order placement
}

// DefaultConfig returns safe defaults
func DefaultConfig() *Config {
	return &Config{
		Enabled:                true,
		MaxConsecutiveFailures: 3,
		Cooldown:               10 * time.Minute,
		MaxOrdersPerMinute:     20,
	}
}

// Breaker tracks execution health across polling cycles
type Breaker struct {
	config              *Config
	state               BreakerState
	consecutiveFailures int
	ordersLastMinute    int
	minuteResetTime     time.Time
	lastTripTime        time.Time
	tripReason          string
	mu                  sync.RWMutex
	onTrip              func(reason string)
	onReset             func()
}

// NewBreaker creates a closed breaker
func NewBreaker(config *Config) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Breaker{
		config:          config,
		state:           StateClosed,
		minuteResetTime: time.Now().Add(time.Minute),
	}
}

// OnTrip sets the callback for when the breaker trips
func (b *Breaker) OnTrip(handler func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = handler
}

// OnReset sets the callback for when the breaker recovers
func (b *Breaker) OnReset(handler func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReset = handler
}

// Allow checks if an order may be placed. The returned string carries the
// reason when the answer is no.
func (b *Breaker) Allow() (bool, string) {
	if !b.config.Enabled {
		return true, ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetCountersIfNeeded()

	if b.state == StateOpen {
		elapsed := time.Since(b.lastTripTime)
		if elapsed < b.config.Cooldown {
			remaining := b.config.Cooldown - elapsed
			return false, fmt.Sprintf("circuit breaker open, cooldown remaining: %v (reason: %s)",
				remaining.Round(time.Second), b.tripReason)
		}
		// Cooldown passed: allow one probe order through
		b.state = StateHalfOpen
	}

	if b.config.MaxOrdersPerMinute > 0 && b.ordersLastMinute >= b.config.MaxOrdersPerMinute {
		return false, fmt.Sprintf("rate limit reached: %d orders/minute", b.ordersLastMinute)
	}

	return true, ""
}

// RecordSuccess records a successful order placement
func (b *Breaker) RecordSuccess() {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	b.resetCountersIfNeeded()
	b.ordersLastMinute++
	b.consecutiveFailures = 0

	var recovered bool
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.tripReason = ""
		recovered = true
	}
	onReset := b.onReset
	b.mu.Unlock()

	if recovered && onReset != nil {
		go onReset()
	}
}

// RecordFailure records a failed order placement and trips the breaker
// once the consecutive-failure limit is reached. A failure during the
// half-open probe re-opens immediately.
func (b *Breaker) RecordFailure() {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	b.resetCountersIfNeeded()
	b.ordersLastMinute++
	b.consecutiveFailures++

	var reason string
	if b.state == StateHalfOpen {
		reason = "probe order failed after cooldown"
	} else if b.consecutiveFailures >= b.config.MaxConsecutiveFailures {
		reason = fmt.Sprintf("consecutive order failures: %d", b.consecutiveFailures)
	}

	var onTrip func(string)
	if reason != "" {
		b.state = StateOpen
		b.lastTripTime = time.Now()
		b.tripReason = reason
		onTrip = b.onTrip
	}
	b.mu.Unlock()

	if onTrip != nil {
		go onTrip(reason)
	}
}

// ForceReset manually closes the breaker
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.tripReason = ""
	onReset := b.onReset
	b.mu.Unlock()

	if onReset != nil {
		go onReset()
	}
}

// GetState returns the current breaker state
func (b *Breaker) GetState() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// GetStats returns current statistics for the status API
func (b *Breaker) GetStats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]interface{}{
		"state":                string(b.state),
		"consecutive_failures": b.consecutiveFailures,
		"orders_last_minute":   b.ordersLastMinute,
		"trip_reason":          b.tripReason,
		"last_trip_time":       b.lastTripTime,
	}
}

// IsEnabled returns if the circuit breaker is enabled
func (b *Breaker) IsEnabled() bool {
	return b.config.Enabled
}

func (b *Breaker) resetCountersIfNeeded() {
	now := time.Now()
	if now.After(b.minuteResetTime) {
		b.ordersLastMinute = 0
		b.minuteResetTime = now.Add(time.Minute)
	}
}
