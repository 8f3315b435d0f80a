package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Viewers only send control frames.
	maxInbound = 4 * 1024
)

// viewer is one connected websocket.
type viewer struct {
	queue chan Message
}

// Serve attaches conn to the feed and blocks until the connection drops or
// the hub stops. The connection is closed on return.
func (h *Hub) Serve(conn *websocket.Conn) {
	defer conn.Close()

	v := &viewer{queue: make(chan Message, viewerBuffer)}
	select {
	case h.register <- v:
	case <-h.done:
		return
	}

	written := make(chan struct{})
	go v.write(conn, written)
	v.read(conn)

	select {
	case h.unregister <- v:
	case <-h.done:
	}
	<-written
}

// read discards inbound messages until the connection fails; it is how a
// disconnect is noticed.
func (v *viewer) read(conn *websocket.Conn) {
	conn.SetReadLimit(maxInbound)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// write is the only goroutine writing to conn. It closes conn when the
// queue is closed or a write fails, which also ends read.
func (v *viewer) write(conn *websocket.Conn, written chan<- struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		conn.Close()
		close(written)
	}()

	for {
		select {
		case msg, ok := <-v.queue:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(msg.opcode(), msg.Data); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
