// Package broadcast fans out orchestrator events to connected dashboard
// WebSocket observers. Delivery is best-effort: no back-pressure, no
// replay — an observer whose send fails or exceeds the write timeout is
// unregistered and its connection closed, so it misses every later
// event. There is no durable event log to replay from; every project
// broadcasts to the same process-wide set of observers.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Envelope is the broadcast message shape: every pipeline transition is
// announced with one of these.
type Envelope struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"projectId,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Observer is a single connected dashboard client.
type Observer struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// Manager tracks connected observers and fans out envelopes to all of
// them. One Manager per process.
type Manager struct {
	mu           sync.RWMutex
	observers    map[string]*Observer
	writeTimeout time.Duration
	log          *slog.Logger
}

// New returns a Manager with the given per-send write timeout.
func New(writeTimeout time.Duration) *Manager {
	return &Manager{
		observers:    make(map[string]*Observer),
		writeTimeout: writeTimeout,
		log:          slog.Default().With("component", "broadcast"),
	}
}

// HandleConnection registers conn as an observer and blocks, reading (and
// discarding) client frames, until the connection closes. Intended to be
// run as the body of the WebSocket HTTP handler after upgrade.
//
// On connect, a single {"type":"info",...} envelope is sent before the
// broadcast stream begins.
func (m *Manager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	obs := &Observer{id: uuid.New().String(), conn: conn, ctx: ctx, cancel: cancel}

	m.register(obs)
	defer m.unregister(obs)

	m.sendRaw(obs, mustMarshal(Envelope{Type: "info", Payload: map[string]string{"status": "connected"}, Timestamp: time.Now()}))

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast delivers env to every currently connected observer. Observers
// whose connection has already closed are pruned as the send fails.
func (m *Manager) Broadcast(env Envelope) {
	data := mustMarshal(env)

	m.mu.RLock()
	observers := make([]*Observer, 0, len(m.observers))
	for _, o := range m.observers {
		observers = append(observers, o)
	}
	m.mu.RUnlock()

	for _, o := range observers {
		if err := m.sendRaw(o, data); err != nil {
			m.log.Warn("failed to send to observer; pruning", "observer_id", o.id, "error", err)
			m.unregister(o)
		}
	}
}

// ActiveObservers returns the number of connected observers.
func (m *Manager) ActiveObservers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}

func (m *Manager) register(o *Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers[o.id] = o
}

func (m *Manager) unregister(o *Observer) {
	m.mu.Lock()
	_, ok := m.observers[o.id]
	delete(m.observers, o.id)
	m.mu.Unlock()
	if ok {
		o.cancel()
		_ = o.conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (m *Manager) sendRaw(o *Observer, data []byte) error {
	ctx, cancel := context.WithTimeout(o.ctx, m.writeTimeout)
	defer cancel()
	return o.conn.Write(ctx, websocket.MessageText, data)
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"error","payload":"marshal failure"}`)
	}
	return data
}
