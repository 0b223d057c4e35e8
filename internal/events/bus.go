// Package events provides the event bus used to publish engine and service
// events to subscribers (logging, WebSocket streaming).
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	RunStarted        EventType = "RUN_STARTED"
	RunProgress       EventType = "RUN_PROGRESS"
	RunCompleted      EventType = "RUN_COMPLETED"
	RunFailed         EventType = "RUN_FAILED"
	OrdersScaled      EventType = "ORDERS_SCALED"
	InvestmentSkipped EventType = "INVESTMENT_SKIPPED"
	OrderEmitted      EventType = "ORDER_EMITTED"
	DepositProcessed  EventType = "DEPOSIT_PROCESSED"
	HistorySynced     EventType = "HISTORY_SYNCED"
	BackupCompleted   EventType = "BACKUP_COMPLETED"
	ExportCompleted   EventType = "EXPORT_COMPLETED"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type, for subscribers that want the full stream
func AllTypes() []EventType {
	return []EventType{
		RunStarted,
		RunProgress,
		RunCompleted,
		RunFailed,
		OrdersScaled,
		InvestmentSkipped,
		OrderEmitted,
		DepositProcessed,
		HistorySynced,
		BackupCompleted,
		ExportCompleted,
		ErrorOccurred,
	}
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
}

// Handler receives published events. Handlers run synchronously on the
// emitting goroutine and must not block.
type Handler func(event *Event)

// Bus dispatches events to subscribers and logs every emission
type Bus struct {
	log         zerolog.Logger
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log:         log.With().Str("service", "events").Logger(),
		subscribers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for an event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Emit publishes an event to all handlers subscribed to its type
func (b *Bus) Emit(eventType EventType, source string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}

	eventJSON, _ := json.Marshal(event)
	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("source", source).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	b.mu.RLock()
	handlers := b.subscribers[eventType]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// EmitError publishes an error event
func (b *Bus) EmitError(source string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error": err.Error(),
	}
	for k, v := range context {
		data[k] = v
	}
	b.Emit(ErrorOccurred, source, data)
}
