// Package connection owns the single live WebSocket of the joined room.
package connection

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/roomsync/go/internal/protocol"
)

// State is the lifecycle state of the managed connection
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Handlers are the manager callbacks. Any of them may be nil. They run synchronously and
// must not call Connect or Disconnect.
type Handlers struct {
	// OnFrame receives the inbound frames of the live connection in transport order, from
	// one goroutine at a time.
	OnFrame func(data []byte)
	// OnReset runs inside Connect after the previous connection is closed and before the
	// new one is dialed.
	OnReset func(roomID string)
	// OnConnected fires once when a connection opens
	OnConnected func(roomID string)
	// OnDisconnected fires once per connection when it closes. err is nil for a requested
	// or clean close.
	OnDisconnected func(roomID string, err error)
}

// Manager manages the WebSocket connection to the joined room. At most one connection is
// live at a time; joining another room closes the previous one first.
type Manager struct {
	serverURL string
	config    ConnectionConfig
	dialer    *websocket.Dialer
	handlers  Handlers

	// Serializes Connect and Disconnect
	lifecycleMu sync.Mutex
	// Held while a frame is delivered; replacing the current connection takes it too, so
	// no frame of a replaced connection is delivered afterwards
	deliverMu sync.Mutex

	mu      sync.RWMutex
	current *Connection
	state   State
	roomID  string
}

// Connection is one transport instance bound to one room
type Connection struct {
	ID          string
	RoomID      string
	ConnectedAt time.Time

	manager   *Manager
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a connection manager for the server at serverURL
func NewManager(serverURL string, config ConnectionConfig, handlers Handlers) *Manager {
	config = config.withDefaults()
	return &Manager{
		serverURL: serverURL,
		config:    config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
		handlers: handlers,
	}
}

// State returns the state of the current connection
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// RoomID returns the active room, empty when none was joined
func (m *Manager) RoomID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roomID
}

// ConnectionID returns the id of the current connection instance
func (m *Manager) ConnectionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

// Connect joins roomID. Any existing connection is closed and the reset hook runs before
// the new connection is dialed. The call returns once the handshake completes or fails;
// there is no automatic retry.
func (m *Manager) Connect(ctx context.Context, roomID, credential string) error {
	if credential == "" {
		return ErrNotLoggedIn
	}
	if strings.TrimSpace(roomID) == "" {
		return ErrEmptyRoom
	}
	endpoint, err := RoomURL(m.serverURL, roomID, credential)
	if err != nil {
		return err
	}

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if old := m.detach(); old != nil {
		old.close(nil)
	}
	if m.handlers.OnReset != nil {
		m.handlers.OnReset(roomID)
	}

	c := &Connection{
		ID:      uuid.New().String(),
		RoomID:  roomID,
		manager: m,
		send:    make(chan []byte, m.config.SendBufferSize),
		done:    make(chan struct{}),
	}

	m.deliverMu.Lock()
	m.mu.Lock()
	m.current = c
	m.state = StateConnecting
	m.roomID = roomID
	m.mu.Unlock()
	m.deliverMu.Unlock()

	log.Info().
		Str("connection_id", c.ID).
		Str("room_id", roomID).
		Msg("connecting to room")

	ws, resp, err := m.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial room %s: %w (status %d)", roomID, err, resp.StatusCode)
		} else {
			err = fmt.Errorf("dial room %s: %w", roomID, err)
		}
		c.close(err)
		return err
	}

	c.ws = ws
	c.ConnectedAt = time.Now()

	m.mu.Lock()
	m.state = StateOpen
	m.mu.Unlock()

	log.Info().
		Str("connection_id", c.ID).
		Str("room_id", roomID).
		Msg("WebSocket connection established")

	if m.handlers.OnConnected != nil {
		m.handlers.OnConnected(roomID)
	}

	go c.writePump()
	go c.readPump()

	return nil
}

// Disconnect closes the current connection, if any, and forgets the active room
func (m *Manager) Disconnect() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	old := m.detach()
	m.mu.Lock()
	m.roomID = ""
	m.mu.Unlock()

	if old != nil {
		old.close(nil)
	}
}

// detach makes the current connection stale and returns it
func (m *Manager) detach() *Connection {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.current
	m.current = nil
	if old != nil {
		m.state = StateClosed
	}
	return old
}

// Send queues a frame on the live connection. It returns false when the frame was dropped
// because the connection is not open or its send buffer is full. Frames are never queued
// across connections.
func (m *Manager) Send(frame protocol.Frame) bool {
	data, err := protocol.Encode(frame)
	if err != nil {
		log.Warn().Err(err).Str("frame_type", string(frame.Type)).Msg("failed to encode frame")
		return false
	}

	m.mu.RLock()
	c, state := m.current, m.state
	m.mu.RUnlock()

	if c == nil || state != StateOpen {
		log.Debug().Str("frame_type", string(frame.Type)).Msg("not connected, dropping frame")
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("frame_type", string(frame.Type)).
			Msg("connection send buffer full, dropping frame")
		return false
	}
}

func (m *Manager) isCurrent(c *Connection) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current == c
}

// close tears the connection down and notifies once
func (c *Connection) close(err error) {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			if err == nil {
				deadline := time.Now().Add(c.manager.config.WriteTimeout)
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			}
			c.ws.Close()
		}

		m := c.manager
		m.mu.Lock()
		if m.current == c {
			m.state = StateClosed
		}
		m.mu.Unlock()

		logEvent := log.Info()
		if err != nil {
			logEvent = log.Warn().Err(err)
		}
		logEvent.
			Str("connection_id", c.ID).
			Str("room_id", c.RoomID).
			Msg("connection closed")

		if m.handlers.OnDisconnected != nil {
			m.handlers.OnDisconnected(c.RoomID, err)
		}
	})
}

// deliver hands a frame to the handler unless the connection was replaced
func (c *Connection) deliver(data []byte) {
	m := c.manager
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	if !m.isCurrent(c) {
		log.Debug().Str("connection_id", c.ID).Msg("dropping frame from stale connection")
		return
	}
	if m.handlers.OnFrame != nil {
		m.handlers.OnFrame(data)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	config := c.manager.config
	ticker := time.NewTicker(config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close(fmt.Errorf("write frame: %w", err))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(fmt.Errorf("send ping: %w", err))
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	config := c.manager.config

	c.ws.SetReadLimit(config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(config.ReadTimeout))
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.close(nil)
			} else {
				c.close(fmt.Errorf("read frame: %w", err))
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(config.ReadTimeout))

		if messageType != websocket.TextMessage {
			log.Debug().Str("connection_id", c.ID).Msg("ignoring non-text message")
			continue
		}
		c.deliver(message)
	}
}
