package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-relay/backend/internal/protocol"
)

// Conn adapts a websocket connection to the session transport. Writes are
// serialized since peers and the relay send from other goroutines.
type Conn struct {
	mu        sync.Mutex
	ws        *websocket.Conn
	writeWait time.Duration
}

func newConn(ws *websocket.Conn, writeWait time.Duration) *Conn {
	return &Conn{ws: ws, writeWait: writeWait}
}

// Send encodes frame and writes it as a single text message.
func (c *Conn) Send(frame protocol.Outbound) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}
