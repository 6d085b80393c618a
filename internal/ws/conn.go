package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8 * 1024
	sendBuffer     = 256
)

// Conn wraps one WebSocket connection with a buffered outbound queue. All
// writes go through the queue and a single writer goroutine, so concurrent
// broadcasts never interleave frames.
type Conn struct {
	id   string
	sock *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once
}

// newConn accepts a nil socket for tests that read the send channel directly.
func newConn(sock *websocket.Conn) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		sock: sock,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue hands a pre-encoded frame to the writer. A slow consumer whose
// buffer is full loses the frame rather than blocking the sender.
func (c *Conn) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Conn) shutdown() {
	c.once.Do(func() {
		close(c.done)
		if c.sock != nil {
			_ = c.sock.Close()
		}
	})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
