// Package events provides an in-process pub/sub bus. The API server
// subscribes to it so dashboards see decisions and trades as they
// happen, without the bot importing the api package.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventBotStarted     EventType = "BOT_STARTED"
	EventBotStopped     EventType = "BOT_STOPPED"
	EventCycleProcessed EventType = "CYCLE_PROCESSED"
	EventSignal         EventType = "SIGNAL"
	EventTradeOpened    EventType = "TRADE_OPENED"
	EventTradeClosed    EventType = "TRADE_CLOSED"
	EventOrderPlaced    EventType = "ORDER_PLACED"
	EventPositionUpdate EventType = "POSITION_UPDATE"
	EventError          EventType = "ERROR"
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
	allSubs     []Subscriber
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

// Publish sends an event to all subscribers. Subscribers run on their
// own goroutines so a slow consumer cannot stall the decision loop.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishCycle publishes one processed decision cycle
func (eb *EventBus) PublishCycle(market, action, lastAction string, price, margin float64, triggers []string) {
	eb.Publish(Event{
		Type: EventCycleProcessed,
		Data: map[string]interface{}{
			"market":      market,
			"action":      action,
			"last_action": lastAction,
			"price":       price,
			"margin":      margin,
			"triggers":    triggers,
		},
	})
}

// PublishSignal publishes a generated trading signal
func (eb *EventBus) PublishSignal(market, action, reason string, price float64) {
	eb.Publish(Event{
		Type: EventSignal,
		Data: map[string]interface{}{
			"market": market,
			"action": action,
			"reason": reason,
			"price":  price,
		},
	})
}

// PublishTradeOpened publishes a confirmed buy
func (eb *EventBus) PublishTradeOpened(market string, price, filled float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"market": market,
			"price":  price,
			"filled": filled,
		},
	})
}

// PublishTradeClosed publishes a confirmed sell
func (eb *EventBus) PublishTradeClosed(market string, entryPrice, exitPrice, margin float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"market":      market,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"margin":      margin,
		},
	})
}

// PublishOrderPlaced publishes an order placed event
func (eb *EventBus) PublishOrderPlaced(orderID int64, market, side string, price, amount float64) {
	eb.Publish(Event{
		Type: EventOrderPlaced,
		Data: map[string]interface{}{
			"order_id": orderID,
			"market":   market,
			"side":     side,
			"price":    price,
			"amount":   amount,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
