package connection

import (
	"encoding/json"
	"errors"
	"net/url"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrLinkStale     = errors.New("upstream link silent past ping timeout")
	ErrLinkClosed    = errors.New("upstream link closed")
	ErrProxyExists   = errors.New("proxy already open for session")
	ErrNoProxy       = errors.New("no proxy for session")
	ErrManagerClosed = errors.New("proxy manager closed")
	ErrAuthFailed    = errors.New("upstream authentication failed")
)

// State is the lifecycle state of an upstream proxy.
type State int32

const (
	StateUnopened State = iota
	StateOpening
	StateOpen
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is an object-form frame from the venue ({"event": ...}).
// Channel data arrives as arrays and never decodes into an Event.
type Event struct {
	Event  string          `json:"event"`
	Status string          `json:"status,omitempty"` // "OK" or "FAILED" for auth
	Code   int             `json:"code,omitempty"`
	Msg    string          `json:"msg,omitempty"`
	UserID json.Number     `json:"userId,omitempty"`
	Caps   json.RawMessage `json:"caps,omitempty"`
}

// Venue event names and statuses.
const (
	EventAuth    = "auth"
	EventInfo    = "info"
	EventError   = "error"
	AuthStatusOK = "OK"
)

// parseEvent decodes frame as an Event. Array frames report false.
func parseEvent(data []byte) (Event, bool) {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil || ev.Event == "" {
				return Event{}, false
			}
			return ev, true
		default:
			return Event{}, false
		}
	}
	return Event{}, false
}

// LinkConfig configures one upstream link.
type LinkConfig struct {
	URL              string        // e.g. wss://api.bitfinex.com/ws/2
	Proxy            *url.URL      // HTTP(S) agent for the dial, nil dials direct
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PingTimeout      time.Duration // Silence longer than this drops the link
	WriteTimeout     time.Duration
	BufferSize       int // Inbound frames held before dropping
}

// DefaultLinkConfig returns the link defaults.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Proxy Manager.
// Every proxy it opens shares this configuration.
type ManagerConfig struct {
	WSURL     string   // Venue WebSocket URL
	APIKey    string   // Authentication is sent only when both key and secret are set
	APISecret string   // HMAC secret for the auth signature
	Agent     *url.URL // Optional HTTP proxy for upstream dials
	Link      LinkConfig
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Link: DefaultLinkConfig(),
	}
}

// withDefaults fills zero-valued fields from DefaultLinkConfig.
func (c LinkConfig) withDefaults() LinkConfig {
	def := DefaultLinkConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = def.PingTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}
