package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camuig/chartvision-agent/internal/logger"
	"github.com/camuig/chartvision-agent/internal/notify"
)

type State int

const (
	StateDisconnected State = iota
	StateReconnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateReconnecting:
		return "RECONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

const (
	maxReconnectAttempts = 10
	baseReconnectDelay   = time.Second
	maxReconnectDelay    = 30 * time.Second
)

// reconnectDelay returns min(1s * 2^attempt, 30s).
func reconnectDelay(attempt int) time.Duration {
	d := baseReconnectDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return d
}

// Frame is a tagged push-channel message. Recognized types are "signal"
// (payload in Data) and "error" (text in Message); anything else is dropped.
type Frame struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Manager owns the persistent push-channel connection. It reconnects with
// exponential backoff and gives up after the retry ceiling; the operator can
// restart it explicitly afterwards.
type Manager struct {
	url      string
	onSignal func(json.RawMessage)
	queue    *notify.Queue
	logger   *logger.Logger
	dialer   *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	attempt int
	closed  bool
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

func NewManager(url string, onSignal func(json.RawMessage), queue *notify.Queue, log *logger.Logger) *Manager {
	return &Manager{
		url:      url,
		onSignal: onSignal,
		queue:    queue,
		logger:   log,
		dialer:   websocket.DefaultDialer,
	}
}

// Start launches the connect loop. It is a no-op while a loop is running.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.closed = false
	m.attempt = 0
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run()
}

// Restart tears the current loop down and reconnects from a clean state.
// Used after the retry ceiling was reached or after Close.
func (m *Manager) Restart() {
	m.mu.Lock()
	done := m.done
	running := m.running
	m.mu.Unlock()

	m.Close()
	if running && done != nil {
		<-done
	}
	m.Start()
}

// Close synchronously marks the manager closed so pending reconnect timers
// become no-ops, then closes the underlying connection without re-triggering
// reconnection.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.state = StateDisconnected
	if m.stopCh != nil {
		close(m.stopCh)
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) run() {
	defer func() {
		m.mu.Lock()
		m.running = false
		done := m.done
		m.mu.Unlock()
		close(done)
	}()

	for {
		if m.isClosed() {
			return
		}

		m.setState(StateReconnecting)
		m.logger.Info("connecting to push channel")

		conn, _, err := m.dialer.Dial(m.url, nil)
		if err != nil {
			m.logger.Error("push channel dial failed", "error", err)
			if !m.waitRetry() {
				return
			}
			continue
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.conn = conn
		m.state = StateConnected
		m.attempt = 0
		m.mu.Unlock()

		m.logger.Info("push channel connected")
		m.readLoop(conn)

		m.mu.Lock()
		m.conn = nil
		m.state = StateDisconnected
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return
		}
		m.logger.Warn("push channel disconnected")
		if !m.waitRetry() {
			return
		}
	}
}

// waitRetry sleeps the backoff delay for the current attempt. It returns
// false when the retry ceiling is reached or the manager was closed.
func (m *Manager) waitRetry() bool {
	m.mu.Lock()
	if m.attempt >= maxReconnectAttempts {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.logger.Error("push channel retries exhausted", "attempts", maxReconnectAttempts)
		m.queue.Push(notify.LevelError, "Connection lost",
			"Push channel reconnection failed after 10 attempts. Restart the connection manually.")
		return false
	}
	delay := reconnectDelay(m.attempt)
	m.attempt++
	stop := m.stopCh
	m.mu.Unlock()

	m.logger.Info("scheduling reconnect", "delay", delay.String())

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-stop:
		m.setState(StateDisconnected)
		return false
	case <-timer.C:
	}
	if m.isClosed() {
		m.setState(StateDisconnected)
		return false
	}
	return true
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		m.handleFrame(data)
	}
}

// handleFrame parses one inbound frame. Malformed or unrecognized frames are
// dropped and logged, never propagated.
func (m *Manager) handleFrame(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		m.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	switch frame.Type {
	case "signal":
		if len(frame.Data) == 0 {
			m.logger.Warn("dropping signal frame without data")
			return
		}
		if m.onSignal != nil {
			m.onSignal(frame.Data)
		}
	case "error":
		m.queue.Push(notify.LevelError, "Platform error", frame.Message)
	default:
		m.logger.Warn("dropping unrecognized frame", "type", frame.Type)
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
