package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Serve pumps frames between conn and the hub until either side goes away.
// The client joins its own role room on connect.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, c *Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer h.Unregister(c)

	if c.Identity.Role != "" {
		_ = h.Join(c, c.Identity.Role)
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			var msg Message
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				readErr <- err
				return
			}
			if err := h.Handle(c, msg); err != nil {
				h.reply(c, err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, msg)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// reply queues an error frame for the client without blocking.
func (h *Hub) reply(c *Client, err error) {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- Message{Event: EventError, Data: data}:
	default:
	}
}
