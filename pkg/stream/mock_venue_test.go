package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// MockVenue is an in-process WebSocket server that stands in for the
// exchange in tests: it records every frame clients send, lets tests push
// frames to connected clients, and can reject or drop connections to
// exercise the reconnect paths.
type MockVenue struct {
	server *httptest.Server
	url    string

	mu          sync.Mutex
	connections map[*websocket.Conn]bool
	received    [][]byte
	connCount   int

	rejectConnections bool
	onMessage         func(conn *websocket.Conn, message []byte)
}

// NewMockVenue starts the mock server. Call Close when done.
func NewMockVenue() *MockVenue {
	m := &MockVenue{
		connections: make(map[*websocket.Conn]bool),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handleConnection))
	m.url = "ws" + strings.TrimPrefix(m.server.URL, "http")
	return m
}

// URL returns the WebSocket URL of the mock venue
func (m *MockVenue) URL() string {
	return m.url
}

// Close shuts down the server and drops all connections
func (m *MockVenue) Close() {
	m.server.Close()
}

// SetRejectConnections makes the venue refuse upgrades while set
func (m *MockVenue) SetRejectConnections(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectConnections = reject
}

// OnMessage sets a callback invoked for every frame a client sends
func (m *MockVenue) OnMessage(callback func(conn *websocket.Conn, message []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = callback
}

// Broadcast pushes one frame to every connected client
func (m *MockVenue) Broadcast(message []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.connections {
		_ = conn.WriteMessage(websocket.TextMessage, message)
	}
}

// DropConnections forcibly closes every live connection, simulating a
// mid-session network fault.
func (m *MockVenue) DropConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.connections {
		conn.Close()
	}
}

// ConnectionCount returns the number of currently live connections
func (m *MockVenue) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// TotalConnections returns how many connections were ever accepted
func (m *MockVenue) TotalConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connCount
}

// ReceivedFrames returns a copy of every frame received so far, in order
// of arrival.
func (m *MockVenue) ReceivedFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	frames := make([][]byte, len(m.received))
	copy(frames, m.received)
	return frames
}

func (m *MockVenue) handleConnection(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	reject := m.rejectConnections
	m.mu.Unlock()
	if reject {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.connections[conn] = true
	m.connCount++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.connections, conn)
		m.mu.Unlock()
		conn.Close()
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		m.mu.Lock()
		m.received = append(m.received, message)
		callback := m.onMessage
		m.mu.Unlock()

		if callback != nil {
			callback(conn, message)
		}
	}
}

// setupMockVenue creates a mock venue wired to the test's cleanup
func setupMockVenue(t *testing.T) *MockVenue {
	t.Helper()
	venue := NewMockVenue()
	t.Cleanup(venue.Close)
	return venue
}
