package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/observability"
)

const defaultSendBuffer = 32

// Session is what the hub knows about a connection: who it is and which room it joined.
type Session struct {
	UserID string
	RoomID string
}

// Connection is one live socket as seen by the hub. Frames queued with Enqueue are drained by
// the socket writer through Outbox.
type Connection struct {
	id     string
	send   chan Envelope
	closed chan struct{}
	once   sync.Once
}

// NewConnection allocates a connection with a buffered outbox.
func NewConnection(buffer int) *Connection {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Connection{
		id:     uuid.NewString(),
		send:   make(chan Envelope, buffer),
		closed: make(chan struct{}),
	}
}

// ID identifies the connection.
func (c *Connection) ID() string { return c.id }

// Outbox is drained by the socket writer.
func (c *Connection) Outbox() <-chan Envelope { return c.send }

// Done is closed once the connection is unregistered.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Enqueue queues a frame without blocking; it reports false when the client is slow or gone.
func (c *Connection) Enqueue(envelope Envelope) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- envelope:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.once.Do(func() { close(c.closed) })
}

// Hub maps connections to (user, room) and fans frames out per room. Membership is inserted on
// join and removed on leave or disconnect; a connection belongs to at most one room.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	sessions map[string]Session
	rooms    map[string]map[string]*Connection
	log      zerolog.Logger
}

// NewHub builds an empty connection manager.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		conns:    make(map[string]*Connection),
		sessions: make(map[string]Session),
		rooms:    make(map[string]map[string]*Connection),
		log:      logger.With().Str("component", "chat_hub").Logger(),
	}
}

// Register tracks a freshly accepted connection.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.conns[conn.id]; exists {
		return
	}
	h.conns[conn.id] = conn
	observability.ChatConnections().Inc()
	h.log.Debug().Str("connection_id", conn.id).Msg("chat client connected")
}

// Join binds the connection to a user and room, leaving any room it was in before.
// It returns the previous session when there was one.
func (h *Hub) Join(connID, userID, roomID string) (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return Session{}, false
	}

	previous, hadPrevious := h.sessions[connID]
	if hadPrevious {
		h.removeFromRoom(previous.RoomID, connID)
	}

	h.sessions[connID] = Session{UserID: userID, RoomID: roomID}
	if _, exists := h.rooms[roomID]; !exists {
		h.rooms[roomID] = make(map[string]*Connection)
	}
	h.rooms[roomID][connID] = conn

	h.log.Debug().Str("room_id", roomID).Str("user_id", userID).Msg("chat client joined room")
	return previous, hadPrevious
}

// Leave removes the connection from its room but keeps it registered.
func (h *Hub) Leave(connID string) (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[connID]
	if !ok {
		return Session{}, false
	}
	delete(h.sessions, connID)
	h.removeFromRoom(session.RoomID, connID)
	return session, true
}

// Unregister forgets the connection entirely and returns the session it held, if any.
func (h *Hub) Unregister(connID string) (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return Session{}, false
	}
	delete(h.conns, connID)
	conn.close()
	observability.ChatConnections().Dec()

	session, joined := h.sessions[connID]
	if joined {
		delete(h.sessions, connID)
		h.removeFromRoom(session.RoomID, connID)
	}
	h.log.Debug().Str("connection_id", connID).Msg("chat client disconnected")
	return session, joined
}

func (h *Hub) removeFromRoom(roomID, connID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Session returns the connection's current membership.
func (h *Hub) Session(connID string) (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	session, ok := h.sessions[connID]
	return session, ok
}

// Broadcast queues the frame for every connection in the room except exceptConnID and returns
// how many accepted it.
func (h *Hub) Broadcast(roomID string, envelope Envelope, exceptConnID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, conn := range h.rooms[roomID] {
		if id == exceptConnID {
			continue
		}
		if conn.Enqueue(envelope) {
			delivered++
			continue
		}
		h.log.Warn().Str("room_id", roomID).Str("connection_id", id).Msg("dropping chat frame for slow client")
	}
	return delivered
}

// Send queues a frame for a single connection.
func (h *Hub) Send(connID string, envelope Envelope) bool {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.Enqueue(envelope)
}

// RoomSize returns the number of connections currently joined to the room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
