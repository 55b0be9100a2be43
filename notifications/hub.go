package notifications

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
)

// Event is one push message for a club's connected agents.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	ClubID  int         `json:"club_id,omitempty"`
}

// Hub keeps websocket clients grouped per club and pushes notification
// events to everyone watching that club.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	rooms  map[string]map[*Client]bool
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()
			h.logger.Debug("notification client connected", slog.String("room", client.room))

		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, okClient := clients[client]; okClient {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("notification client disconnected", slog.String("room", client.room))
		}
	}
}

// Push fans the event out to every connected agent of the club. Slow clients
// are skipped rather than blocked on.
func (h *Hub) Push(clubID int, event Event) {
	event.ClubID = clubID

	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal notification event", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[roomKey(clubID)]
	if !ok {
		return
	}
	for client := range clients {
		client.trySend(message)
	}
}

func roomKey(clubID int) string {
	return "club:" + strconv.Itoa(clubID)
}
