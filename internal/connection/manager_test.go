package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/auth"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/metrics"
	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/session"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// mockVenue is a Bitfinex-like upstream that answers auth events.
type mockVenue struct {
	*httptest.Server

	authStatus string // "" = never answer auth
	received   chan []byte
	conns      chan *websocket.Conn

	writeMu sync.Mutex
}

func newMockVenue(t *testing.T, authStatus string) *mockVenue {
	t.Helper()
	v := &mockVenue{
		authStatus: authStatus,
		received:   make(chan []byte, 100),
		conns:      make(chan *websocket.Conn, 10),
	}
	v.Server = mockWSServer(t, func(conn *websocket.Conn) {
		v.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			v.received <- data

			ev, ok := parseEvent(data)
			if ok && ev.Event == EventAuth && v.authStatus != "" {
				reply := fmt.Sprintf(`{"event":"auth","status":%q,"userId":1}`, v.authStatus)
				v.push(conn, reply)
			}
		}
	})
	return v
}

func (v *mockVenue) push(conn *websocket.Conn, frame string) {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (v *mockVenue) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-v.conns:
		return conn
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for upstream connection")
		return nil
	}
}

// fakeTransport records frames written to a client.
type fakeTransport struct {
	mu       sync.Mutex
	frames   []string
	writable bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{writable: true}
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, string(data))
	return nil
}

func (f *fakeTransport) Writable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writable
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writable = false
	return nil
}

func (f *fakeTransport) Frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func newTestManager(t *testing.T, venue *mockVenue, key, secret string) (*manager, *session.Registry, *metrics.Metrics) {
	t.Helper()
	cfg := DefaultManagerConfig()
	cfg.WSURL = wsURL(venue.Server)
	cfg.APIKey = key
	cfg.APISecret = secret

	reg := session.NewRegistry()
	m := metrics.Discard()
	return NewManager(cfg, reg, m, nil).(*manager), reg, m
}

func TestManager_OpenWithoutCredentials(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "OK")
	defer venue.Close()

	mgr, _, _ := newTestManager(t, venue, "", "")
	defer mgr.CloseAll()

	p, err := mgr.Open("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", p.SessionID())

	require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)

	select {
	case data := <-venue.received:
		t.Fatalf("unexpected upstream message without credentials: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, StateOpen, p.State())
}

func TestManager_AuthenticatesWithCredentials(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "OK")
	defer venue.Close()

	mgr, _, _ := newTestManager(t, venue, "key", "secret")
	defer mgr.CloseAll()

	p, err := mgr.Open("s1")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.State() == StateAuthenticated }, waitFor, tick)

	var msg auth.AuthMessage
	select {
	case data := <-venue.received:
		require.NoError(t, json.Unmarshal(data, &msg))
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for auth message")
	}
	assert.Equal(t, "auth", msg.Event)
	assert.Equal(t, "key", msg.APIKey)
	assert.Equal(t, "AUTH"+msg.AuthNonce, msg.AuthPayload)
	assert.Len(t, msg.AuthSig, 96)
}

func TestManager_AuthRejectedClosesProxy(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "FAILED")
	defer venue.Close()

	mgr, reg, _ := newTestManager(t, venue, "key", "bad-secret")
	defer mgr.CloseAll()

	transport := newFakeTransport()
	_, err := reg.Register("s1", transport)
	require.NoError(t, err)

	p, err := mgr.Open("s1")
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for proxy close")
	}
	assert.Equal(t, StateClosed, p.State())
	assert.Equal(t, 0, mgr.Len())

	// The rejection itself still reaches the client.
	frames := transport.Frames()
	require.Len(t, frames, 1)
	assert.Contains(t, frames[0], `"status":"FAILED"`)
}

func TestManager_ForwardsPushesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	defer venue.Close()

	mgr, reg, m := newTestManager(t, venue, "", "")
	defer mgr.CloseAll()

	transport := newFakeTransport()
	_, err := reg.Register("s1", transport)
	require.NoError(t, err)

	p, err := mgr.Open("s1")
	require.NoError(t, err)
	conn := venue.nextConn(t)
	require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)

	pushes := []string{`{"event":"info","version":2}`, `[0,"hb"]`, `[17082,[7616.5,7620.1]]`}
	for _, frame := range pushes {
		venue.push(conn, frame)
	}

	require.Eventually(t, func() bool { return len(transport.Frames()) == len(pushes) }, waitFor, tick)

	frames := transport.Frames()
	for i, push := range pushes {
		assert.Equal(t, `["bfx",`+push+`]`, frames[i])
	}
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ProxyMessagesTotal.WithLabelValues(metrics.ResultForwarded)))
}

func TestManager_DropsWhenNotWritable(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	defer venue.Close()

	mgr, reg, m := newTestManager(t, venue, "", "")
	defer mgr.CloseAll()

	transport := newFakeTransport()
	transport.writable = false
	_, err := reg.Register("s1", transport)
	require.NoError(t, err)

	p, err := mgr.Open("s1")
	require.NoError(t, err)
	conn := venue.nextConn(t)
	require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)

	venue.push(conn, `[0,"hb"]`)

	dropped := m.ProxyMessagesTotal.WithLabelValues(metrics.ResultDropped)
	require.Eventually(t, func() bool { return testutil.ToFloat64(dropped) == 1 }, waitFor, tick)
	assert.Empty(t, transport.Frames())
	assert.Equal(t, StateOpen, p.State())
}

func TestManager_DropsWhenOwnerAbsentButHeld(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	defer venue.Close()

	// No session registered for s1.
	mgr, _, m := newTestManager(t, venue, "", "")
	defer mgr.CloseAll()

	p, err := mgr.Open("s1")
	require.NoError(t, err)
	conn := venue.nextConn(t)
	require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)

	venue.push(conn, `[0,"hb"]`)

	dropped := m.ProxyMessagesTotal.WithLabelValues(metrics.ResultDropped)
	require.Eventually(t, func() bool { return testutil.ToFloat64(dropped) == 1 }, waitFor, tick)
	assert.Equal(t, StateOpen, p.State())
	assert.Equal(t, 1, mgr.Len())
}

func TestManager_ClosesStaleProxy(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	defer venue.Close()

	mgr, _, m := newTestManager(t, venue, "", "")
	defer mgr.CloseAll()

	p, err := mgr.Open("s1")
	require.NoError(t, err)
	conn := venue.nextConn(t)
	require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)

	// Orphan the proxy: neither the manager nor the registry knows about s1.
	mgr.mu.Lock()
	delete(mgr.proxies, "s1")
	mgr.mu.Unlock()

	venue.push(conn, `[0,"hb"]`)

	select {
	case <-p.Done():
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for stale proxy close")
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProxyMessagesTotal.WithLabelValues(metrics.ResultStale)))
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	defer venue.Close()

	mgr, reg, _ := newTestManager(t, venue, "", "")
	defer mgr.CloseAll()

	transport := newFakeTransport()
	_, err := reg.Register("s1", transport)
	require.NoError(t, err)

	p, err := mgr.Open("s1")
	require.NoError(t, err)
	conn := venue.nextConn(t)
	require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)

	mgr.Close("s1")
	mgr.Close("s1")
	mgr.Close("never-opened")

	assert.Equal(t, StateClosed, p.State())
	assert.Equal(t, 0, mgr.Len())
	_, ok := mgr.Get("s1")
	assert.False(t, ok)

	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	// A late upstream frame never reaches the client.
	venue.push(conn, `[0,"hb"]`)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, transport.Frames())

	assert.ErrorIs(t, p.Send([]byte(`{}`)), ErrNotConnected)
}

func TestManager_OpenTwice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	defer venue.Close()

	mgr, _, _ := newTestManager(t, venue, "", "")
	defer mgr.CloseAll()

	_, err := mgr.Open("s1")
	require.NoError(t, err)

	_, err = mgr.Open("s1")
	assert.True(t, errors.Is(err, ErrProxyExists), "err = %v", err)
}

func TestManager_CloseAll(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	defer venue.Close()

	mgr, _, m := newTestManager(t, venue, "", "")

	var proxies []*Proxy
	for i := 0; i < 3; i++ {
		p, err := mgr.Open(fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		proxies = append(proxies, p)
	}
	for _, p := range proxies {
		require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)
	}
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ActiveProxies))

	mgr.CloseAll()

	for _, p := range proxies {
		assert.Equal(t, StateClosed, p.State())
	}
	assert.Equal(t, 0, mgr.Len())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveProxies))

	_, err := mgr.Open("late")
	assert.ErrorIs(t, err, ErrManagerClosed)

	// Second call is a no-op.
	mgr.CloseAll()
}

func TestManager_DialFailureRemovesProxy(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	url := wsURL(venue.Server)
	venue.Close()

	cfg := DefaultManagerConfig()
	cfg.WSURL = url
	mgr := NewManager(cfg, session.NewRegistry(), nil, nil)
	defer mgr.CloseAll()

	p, err := mgr.Open("s1")
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for proxy close after dial failure")
	}
	assert.Equal(t, 0, mgr.Len())
}

func TestManager_UpstreamDisconnectRemovesProxy(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	defer venue.Close()

	mgr, _, _ := newTestManager(t, venue, "", "")
	defer mgr.CloseAll()

	p, err := mgr.Open("s1")
	require.NoError(t, err)
	conn := venue.nextConn(t)
	require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)

	conn.Close()

	select {
	case <-p.Done():
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for proxy close after upstream disconnect")
	}
	assert.Equal(t, 0, mgr.Len())
}

func TestProxy_SendForwardsToVenue(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	venue := newMockVenue(t, "")
	defer venue.Close()

	mgr, _, _ := newTestManager(t, venue, "", "")
	defer mgr.CloseAll()

	p, err := mgr.Open("s1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)

	assert.ErrorIs(t, mgr.Send("other", []byte(`{}`)), ErrNoProxy)

	payload := `{"event":"subscribe","channel":"ticker","symbol":"tBTCUSD"}`
	require.NoError(t, mgr.Send("s1", []byte(payload)))

	select {
	case data := <-venue.received:
		assert.True(t, strings.Contains(string(data), `"channel":"ticker"`))
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for forwarded payload")
	}
}

// slowLink dials instantly and takes delay to close.
type slowLink struct {
	delay  time.Duration
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newSlowLink(delay time.Duration) *slowLink {
	return &slowLink{delay: delay, frames: make(chan []byte), done: make(chan struct{})}
}

func (l *slowLink) Dial(context.Context) error { return nil }
func (l *slowLink) Write([]byte) error         { return nil }
func (l *slowLink) Frames() <-chan []byte      { return l.frames }
func (l *slowLink) Done() <-chan struct{}      { return l.done }
func (l *slowLink) Err() error                 { return nil }

func (l *slowLink) Close() error {
	l.once.Do(func() {
		time.Sleep(l.delay)
		close(l.done)
	})
	return nil
}

func TestManager_CloseAllClosesInParallel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := NewManager(DefaultManagerConfig(), session.NewRegistry(), nil, nil).(*manager)
	mgr.newLink = func(LinkConfig, *slog.Logger) Link { return newSlowLink(200 * time.Millisecond) }

	var opened []*Proxy
	for i := 0; i < 10; i++ {
		p, err := mgr.Open(fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		opened = append(opened, p)
	}
	for _, p := range opened {
		require.Eventually(t, func() bool { return p.State() == StateOpen }, waitFor, tick)
	}

	start := time.Now()
	mgr.CloseAll()
	elapsed := time.Since(start)

	// Ten sequential closes would take two seconds.
	assert.Less(t, elapsed, time.Second)
	for _, p := range opened {
		assert.Equal(t, StateClosed, p.State())
	}
	assert.Equal(t, 0, mgr.Len())
}
