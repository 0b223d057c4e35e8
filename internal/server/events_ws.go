package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/dca-lab/internal/events"
)

const (
	wsSendBuffer   = 100
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// wsClient is one connected WebSocket subscriber
type wsClient struct {
	ch     chan *events.Event
	filter map[events.EventType]bool // nil means all types
}

// EventsWSHandler streams bus events to WebSocket clients. It holds a
// single bus subscription per event type and fans events out to connected
// clients, so disconnects never leave handlers behind on the bus.
type EventsWSHandler struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewEventsWSHandler creates the handler and subscribes it to every
// event type
func NewEventsWSHandler(bus *events.Bus, log zerolog.Logger) *EventsWSHandler {
	h := &EventsWSHandler{
		log:     log.With().Str("component", "events_ws").Logger(),
		clients: make(map[*wsClient]struct{}),
	}
	for _, eventType := range events.AllTypes() {
		bus.Subscribe(eventType, h.broadcast)
	}
	return h
}

// broadcast fans an event out to connected clients. Slow clients drop
// events rather than block the emitter.
func (h *EventsWSHandler) broadcast(event *events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.filter != nil && !client.filter[event.Type] {
			continue
		}
		select {
		case client.ch <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Client channel full, dropping event")
		}
	}
}

func (h *EventsWSHandler) add(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *EventsWSHandler) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// ServeHTTP handles GET /api/events/ws. An optional `types` query
// parameter limits the stream to a comma-separated set of event types.
func (h *EventsWSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var filter map[events.EventType]bool
	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		filter = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesParam, ",") {
			filter[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	client := &wsClient{
		ch:     make(chan *events.Event, wsSendBuffer),
		filter: filter,
	}
	h.add(client)
	defer h.remove(client)

	h.log.Info().Str("types", r.URL.Query().Get("types")).Msg("Client connected to event stream")

	// Write-only stream: CloseRead watches for the client closing the
	// connection and cancels the context when it does.
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-client.ch:
			if err := h.writeEvent(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}

		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("WebSocket ping failed")
				return
			}
		}
	}
}

func (h *EventsWSHandler) writeEvent(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
