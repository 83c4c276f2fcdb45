package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size; lobby commands are tiny.
	maxMessageSize = 4 * 1024
)

// wsConn owns one upgraded connection. Outbound frames go through a
// buffered queue drained by a single writer goroutine, so fan-out
// callers never block on the socket. Implements lobby.Sender.
type wsConn struct {
	conn   *websocket.Conn
	frames chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newWSConn(conn *websocket.Conn, buffer int, logger *zap.Logger) *wsConn {
	return &wsConn{
		conn:   conn,
		frames: make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send enqueues a frame for the writer goroutine. Returns false when the
// connection is closed or the buffer is full; the frame is dropped.
func (c *wsConn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.frames <- frame:
		return true
	default:
		return false
	}
}

// writePump is the single writer for the connection: queued frames plus
// keepalive pings. Exits on write failure or close.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.frames:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// close stops the writer goroutine and closes the socket. Idempotent.
func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}
