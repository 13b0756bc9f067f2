package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventPositionDetected EventType = "POSITION_DETECTED"
	EventOrderPlaced      EventType = "ORDER_PLACED"
	EventOrderFailed      EventType = "ORDER_FAILED"
	EventOrderSkipped     EventType = "ORDER_SKIPPED"
	EventAgentClosed      EventType = "AGENT_CLOSED"
	EventManualClosed     EventType = "MANUAL_CLOSED"
	EventProfitExit       EventType = "PROFIT_EXIT"
	EventCycleCompleted   EventType = "CYCLE_COMPLETED"
	EventBotStarted       EventType = "BOT_STARTED"
	EventBotStopped       EventType = "BOT_STOPPED"
	EventCircuitTripped   EventType = "CIRCUIT_TRIPPED"
	EventError            EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishPositionDetected publishes a new agent position event
func (eb *EventBus) PublishPositionDetected(symbol, side, entryOrderID string, margin float64, leverage int) {
	eb.Publish(Event{
		Type: EventPositionDetected,
		Data: map[string]interface{}{
			"symbol":         symbol,
			"side":           side,
			"entry_order_id": entryOrderID,
			"margin":         margin,
			"leverage":       leverage,
		},
	})
}

// PublishOrderPlaced publishes a successful mirror order event
func (eb *EventBus) PublishOrderPlaced(symbol, side, clientOrderID string, quantity, allocatedMargin float64) {
	eb.Publish(Event{
		Type: EventOrderPlaced,
		Data: map[string]interface{}{
			"symbol":           symbol,
			"side":             side,
			"client_order_id":  clientOrderID,
			"quantity":         quantity,
			"allocated_margin": allocatedMargin,
		},
	})
}

// PublishOrderFailed publishes a failed mirror order event
func (eb *EventBus) PublishOrderFailed(symbol, side string, err error) {
	eb.Publish(Event{
		Type: EventOrderFailed,
		Data: map[string]interface{}{
			"symbol": symbol,
			"side":   side,
			"error":  err.Error(),
		},
	})
}

// PublishOrderSkipped publishes a risk-gate skip event
func (eb *EventBus) PublishOrderSkipped(symbol, reason string) {
	eb.Publish(Event{
		Type: EventOrderSkipped,
		Data: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		},
	})
}

// PublishAgentClosed publishes an agent-side close event
func (eb *EventBus) PublishAgentClosed(symbol, entryOrderID string) {
	eb.Publish(Event{
		Type: EventAgentClosed,
		Data: map[string]interface{}{
			"symbol":         symbol,
			"entry_order_id": entryOrderID,
		},
	})
}

// PublishManualClosed publishes a manual-close detection event
func (eb *EventBus) PublishManualClosed(symbol, entryOrderID string, refollowArmed bool) {
	eb.Publish(Event{
		Type: EventManualClosed,
		Data: map[string]interface{}{
			"symbol":         symbol,
			"entry_order_id": entryOrderID,
			"refollow_armed": refollowArmed,
		},
	})
}

// PublishProfitExit publishes a profit-target exit record event
func (eb *EventBus) PublishProfitExit(symbol, entryOrderID string, profitPct float64, refollowArmed bool) {
	eb.Publish(Event{
		Type: EventProfitExit,
		Data: map[string]interface{}{
			"symbol":         symbol,
			"entry_order_id": entryOrderID,
			"profit_pct":     profitPct,
			"refollow_armed": refollowArmed,
		},
	})
}

// PublishCycleCompleted publishes a polling cycle summary event
func (eb *EventBus) PublishCycleCompleted(newPositions, agentClosed, manualClosed int, duration time.Duration) {
	eb.Publish(Event{
		Type: EventCycleCompleted,
		Data: map[string]interface{}{
			"new_positions": newPositions,
			"agent_closed":  agentClosed,
			"manual_closed": manualClosed,
			"duration_ms":   duration.Milliseconds(),
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source string, err error) {
	eb.Publish(Event{
		Type: EventError,
		Data: map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		},
	})
}
