package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 16
)

// wsEvent is the frame pushed to live feed subscribers
type wsEvent struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans auction events out to websocket subscribers. Clients subscribe
// to one item's live feed; bids and settlement changes for that item arrive
// as JSON frames.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsEvent
	once sync.Once
}

// NewHub creates the websocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is public read-only data.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[uuid.UUID]map[*wsClient]struct{}),
	}
}

// HandleItemFeed upgrades the connection and streams the item's events
func (h *Hub) HandleItemFeed(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid item ID", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan wsEvent, wsSendBuffer),
	}
	h.register(itemID, client)

	go h.writeLoop(itemID, client)
	go h.readLoop(itemID, client)
}

// Broadcast delivers an event to every subscriber of the item. The payload
// must carry an "item_id" field; events without one are dropped.
func (h *Hub) Broadcast(channel string, payload []byte) {
	var envelope struct {
		ItemID uuid.UUID `json:"item_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.ItemID == uuid.Nil {
		return
	}

	event := wsEvent{Channel: channel, Payload: json.RawMessage(payload)}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[envelope.ItemID] {
		select {
		case client.send <- event:
		default:
			// Slow consumer; drop the frame rather than block the feed.
		}
	}
}

// SubscriberCount reports active subscribers for an item, for tests and
// gauges
func (h *Hub) SubscriberCount(itemID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[itemID])
}

func (h *Hub) register(itemID uuid.UUID, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[itemID] == nil {
		h.clients[itemID] = make(map[*wsClient]struct{})
	}
	h.clients[itemID][client] = struct{}{}
}

func (h *Hub) unregister(itemID uuid.UUID, client *wsClient) {
	client.once.Do(func() {
		h.mu.Lock()
		delete(h.clients[itemID], client)
		if len(h.clients[itemID]) == 0 {
			delete(h.clients, itemID)
		}
		h.mu.Unlock()

		close(client.send)
		client.conn.Close()
	})
}

func (h *Hub) writeLoop(itemID uuid.UUID, client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer h.unregister(itemID, client)

	for {
		select {
		case event, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(itemID uuid.UUID, client *wsClient) {
	defer h.unregister(itemID, client)

	// The feed is push-only; the read loop just consumes control frames
	// and detects the peer going away.
	client.conn.SetReadLimit(512)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
