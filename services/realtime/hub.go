// Package realtime fans dashboard events out to websocket clients grouped in role rooms.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/user"
)

// client -> server
const (
	EventJoinRole           = "join-role"
	EventQuizSubmitted      = "quiz-submitted"
	EventGameCompleted      = "game-completed"
	EventPolicyAcknowledged = "policy-acknowledged"
)

// server -> client
const (
	EventQuizUpdate   = "quiz-update"
	EventGameUpdate   = "game-update"
	EventPolicyUpdate = "policy-update"
	EventError        = "error"
)

const defaultBuffer = 32

var (
	// StaffRooms receive every activity update.
	StaffRooms = []string{user.RoleAdmin, user.RoleManager}

	ErrForbiddenRoom = errors.New("cannot join another role's room")
	ErrUnknownEvent  = errors.New("unknown event")
	ErrInvalidRoom   = errors.New("invalid room")

	// client events that are relayed to the staff rooms
	relays = map[string]string{
		EventQuizSubmitted:      EventQuizUpdate,
		EventGameCompleted:      EventGameUpdate,
		EventPolicyAcknowledged: EventPolicyUpdate,
	}
)

// Message is a websocket frame in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	ID       string
	Identity core.Identity
	send     chan Message
}

// Messages is closed when the client is unregistered.
func (c *Client) Messages() <-chan Message {
	return c.send
}

type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	buffer  int
	logger  core.Logger
}

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		buffer:  defaultBuffer,
		logger:  logger,
	}
}

func (h *Hub) Register(id core.Identity) *Client {
	c := &Client{ID: uuid.NewString(), Identity: id, send: make(chan Message, h.buffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, exists := h.clients[c]
	if exists {
		delete(h.clients, c)
		for name, members := range h.rooms {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, name)
			}
		}
	}
	h.mu.Unlock()
	if exists {
		close(c.send)
	}
}

// Join adds the client to a role room. Only admins may join a room other than their own role.
func (h *Hub) Join(c *Client, room string) error {
	room = core.CleanString(room, true /* lower */)
	if room == "" {
		return ErrInvalidRoom
	}
	if room != c.Identity.Role && c.Identity.Role != user.RoleAdmin {
		return ErrForbiddenRoom
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return nil
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	return nil
}

// RoomSize returns the number of clients in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish sends an event to every client of the given rooms, at most once per client.
// The payload is data plus the sender and a timestamp. A client whose buffer is full misses the event.
func (h *Hub) Publish(event string, data interface{}, from core.Identity, rooms ...string) {
	msg := Message{Event: event, Data: payload(data, from)}

	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			select {
			case c.send <- msg:
			default:
				if h.logger != nil {
					h.logger.Debug("realtime: dropped event for slow client", map[string]interface{}{
						"event": event, "client_id": c.ID,
					})
				}
			}
		}
	}
}

// Handle processes a frame sent by the client.
func (h *Hub) Handle(c *Client, msg Message) error {
	if msg.Event == EventJoinRole {
		var body struct {
			Role string `json:"role"`
		}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &body); err != nil {
				return errors.Wrap(err, "realtime: join-role")
			}
		}
		return h.Join(c, body.Role)
	}

	out, ok := relays[msg.Event]
	if !ok {
		return ErrUnknownEvent
	}
	h.Publish(out, msg.Data, c.Identity, StaffRooms...)
	return nil
}

// payload merges the sender into data when it is a JSON object, or wraps it otherwise.
func payload(data interface{}, from core.Identity) json.RawMessage {
	fields := make(map[string]interface{})

	var raw []byte
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	default:
		raw, _ = json.Marshal(v)
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &fields); err != nil {
			fields = map[string]interface{}{"data": json.RawMessage(raw)}
		}
	}

	fields["user_id"] = from.ID
	fields["username"] = from.Username
	fields["at"] = time.Now().UTC().Format(time.RFC3339Nano)
	b, _ := json.Marshal(fields)
	return b
}
