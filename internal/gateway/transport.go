package gateway

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrTransportClosed is returned when writing to a closed client.
var ErrTransportClosed = errors.New("client transport closed")

// wsTransport is a client WebSocket connection.
// Writes are serialized; the first failed write marks it unwritable.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	writable  atomic.Bool
	closeOnce sync.Once
}

func newTransport(conn *websocket.Conn, writeTimeout time.Duration) *wsTransport {
	t := &wsTransport{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
	t.writable.Store(true)
	return t
}

// Send writes one text frame.
func (t *wsTransport) Send(data []byte) error {
	if !t.writable.Load() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.writable.Store(false)
		return err
	}
	return nil
}

// Writable reports whether the client can still receive frames.
func (t *wsTransport) Writable() bool {
	return t.writable.Load()
}

// Close sends a close frame and closes the connection. Safe to call twice.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writable.Store(false)

		t.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeTimeout))
		t.writeMu.Unlock()

		err = t.conn.Close()
	})
	return err
}
