package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrDuplicateSession = errors.New("session already registered")
)

// Transport is the client side of a session: a full-duplex text-frame connection.
type Transport interface {
	// Send writes one text frame.
	Send(data []byte) error

	// Writable reports whether the transport can still accept frames.
	Writable() bool

	// Close closes the underlying connection.
	Close() error
}

// Session is the server-side record of one connected client transport.
type Session struct {
	ID          string
	Transport   Transport
	ConnectedAt time.Time
}

// NewID returns a fresh session ID.
// IDs are UUIDv7 strings, so they sort in creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Only fails if the random source fails.
		return uuid.NewString()
	}
	return id.String()
}
