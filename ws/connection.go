// Package ws carries the WebSocket transport: a write-serialized connection
// wrapper and the HTTP handler that feeds frames into the coordinator.
package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/datafed/cloudnode/pkg/protocol"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
	pongWait   = 3 * pingPeriod

	sendBuffer = 64
)

var ErrConnectionClosed = errors.New("connection closed")

var _ protocol.Connection = (*Conn)(nil)

// Conn wraps a gorilla websocket connection. All writes go through a single
// writer goroutine so concurrent Send calls never interleave frames.
type Conn struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(conn *websocket.Conn) *Conn {
	c := &Conn{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	go c.writeLoop()

	return c
}

func (c *Conn) ID() string {
	return c.id
}

// Send marshals v and queues it for delivery. It fails rather than blocks
// when the peer cannot keep up.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-time.After(writeWait):
		return ErrConnectionClosed
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})

	return err
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Close()

				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()

				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()

				return
			}
		case <-c.done:
			return
		}
	}
}
