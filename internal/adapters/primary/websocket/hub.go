package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	apperrors "github.com/lorrc/repair-service-backend/internal/core/errors"
)

// joinRequest asks the hub goroutine to add a client to a room. The reply
// channel carries the acknowledgment the caller waits on.
type joinRequest struct {
	client *Client
	room   string
	reply  chan error
}

// Hub maintains the set of active Clients, the room tables, and the
// connection registry. Register, unregister and join requests are serialized
// through a single goroutine; the mutex additionally guards the maps so
// read-only fan-out paths never observe a partial mutation.
type Hub struct {
	// clients maps connection IDs to their live client
	clients map[uuid.UUID]*Client

	// rooms maps room names to member clients by connection ID.
	// Rooms have no existence of their own: an empty room is deleted.
	rooms map[string]map[uuid.UUID]*Client

	// registry derives presence from the sessions
	registry *Registry

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// joins carries room join requests awaiting acknowledgment
	joins chan joinRequest

	// quit stops the run loop
	quit chan struct{}

	// joinAckTimeout bounds the caller-side wait for a join acknowledgment
	joinAckTimeout time.Duration

	// mu protects the clients and rooms maps
	mu sync.RWMutex

	once sync.Once

	logger *slog.Logger
}

// NewHub creates a new WebSocket hub around the given registry.
func NewHub(registry *Registry, joinAckTimeout time.Duration, logger *slog.Logger) *Hub {
	return &Hub{
		clients:        make(map[uuid.UUID]*Client),
		rooms:          make(map[string]map[uuid.UUID]*Client),
		registry:       registry,
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		joins:          make(chan joinRequest),
		quit:           make(chan struct{}),
		joinAckTimeout: joinAckTimeout,
		logger:         logger.With("component", "websocket_hub"),
	}
}

// Registry exposes the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run starts the hub's event loop. This MUST be run as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.removeClient(client, true)

		case req := <-h.joins:
			req.reply <- h.addToRoom(req.client, req.room)

		case <-h.quit:
			return
		}
	}
}

// Shutdown closes every session and stops the run loop. The HTTP listener is
// released by the caller afterwards.
func (h *Hub) Shutdown(ctx context.Context) {
	h.once.Do(func() { close(h.quit) })

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.removeClient(client, false)
	}

	h.logger.Info("hub shut down", "closed_sessions", len(clients))
}

// registerClient activates the client's session, adds it to the implicit
// identity and role rooms and broadcasts the new presence snapshot. A session
// that fails registration is closed without emitting anything.
func (h *Hub) registerClient(client *Client) {
	if err := h.registry.Register(client.session); err != nil {
		h.logger.Warn("registration rejected",
			"connection_id", client.session.ConnectionID,
			"error", err,
		)
		client.session.close()
		client.CloseSend()
		return
	}

	h.mu.Lock()
	h.clients[client.session.ConnectionID] = client
	h.joinRoomLocked(client, domain.IdentityRoom(client.session.IdentityID))
	h.joinRoomLocked(client, domain.RoleRoom(client.session.Role))
	h.mu.Unlock()

	h.broadcastPresence()
}

// removeClient deregisters the client, removes it from every room it joined
// and closes its send channel. Idempotent: a client already removed (e.g. by
// the reaper) is a no-op, so the pump-triggered unregister that follows a
// forced close does nothing. notify controls whether a presence snapshot is
// broadcast; the reaper suppresses it to emit one per evicted identity.
//
// The session is closed while h.mu is still held: a concurrent join either
// lands before the removal and gets cleaned up with the other memberships,
// or runs after and is refused on the closed state. No membership can
// outlive the connection.
func (h *Hub) removeClient(client *Client, notify bool) {
	connID := client.session.ConnectionID

	h.mu.Lock()
	if _, ok := h.clients[connID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, connID)

	for _, room := range client.session.joinedRooms() {
		h.leaveRoomLocked(client, room)
	}
	client.session.close()
	client.CloseSend()
	h.mu.Unlock()

	h.registry.Deregister(connID)

	if notify {
		h.broadcastPresence()
	}
}

// JoinRoom adds the client to a room and waits for the hub goroutine's
// acknowledgment within the configured bound. Without an acknowledgment in
// time the caller must treat the room as un-joined; the engine never retries
// on its own.
func (h *Hub) JoinRoom(client *Client, room string) error {
	req := joinRequest{client: client, room: room, reply: make(chan error, 1)}

	timer := time.NewTimer(h.joinAckTimeout)
	defer timer.Stop()

	select {
	case h.joins <- req:
	case <-timer.C:
		return apperrors.ErrJoinTimeout
	case <-h.quit:
		return apperrors.ErrSessionClosed
	}

	select {
	case err := <-req.reply:
		return err
	case <-timer.C:
		return apperrors.ErrJoinTimeout
	}
}

// addToRoom is the hub-goroutine half of JoinRoom.
func (h *Hub) addToRoom(client *Client, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.session.State() != StateActive {
		return apperrors.ErrSessionClosed
	}

	h.joinRoomLocked(client, room)
	return nil
}

// joinRoomLocked requires h.mu.
func (h *Hub) joinRoomLocked(client *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[uuid.UUID]*Client)
	}
	h.rooms[room][client.session.ConnectionID] = client
	client.session.rooms[room] = true

	h.logger.Debug("client joined room",
		"connection_id", client.session.ConnectionID,
		"room", room,
	)
}

// LeaveRoom removes the client from a room. Leaving a room that was never
// joined is a no-op, not an error.
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveRoomLocked(client, room)
}

// leaveRoomLocked requires h.mu.
func (h *Hub) leaveRoomLocked(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client.session.ConnectionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.session.rooms, room)
}

// MembersOf resolves a room to its live connection IDs. Unknown or empty
// rooms resolve to an empty set, never an error.
func (h *Hub) MembersOf(room string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]uuid.UUID, 0, len(h.rooms[room]))
	for connID := range h.rooms[room] {
		members = append(members, connID)
	}
	return members
}

// clientsInRooms collects the distinct clients across the given rooms. A
// connection reached through several rooms appears once.
func (h *Hub) clientsInRooms(rooms []string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	var targets []*Client
	for _, room := range rooms {
		for connID, client := range h.rooms[room] {
			if !seen[connID] {
				seen[connID] = true
				targets = append(targets, client)
			}
		}
	}
	return targets
}

// allClients returns a copy of every connected client.
func (h *Hub) allClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// broadcastPresence recomputes the full snapshot and sends it to every open
// connection. Snapshots replace each other in place, so re-delivery is
// harmless.
func (h *Hub) broadcastPresence() {
	snapshot := h.registry.Snapshot()
	envelope := domain.NewEnvelope(domain.EventPresenceSnapshot, domain.SystemInitiator(), snapshot, nil)

	clients := h.allClients()
	for _, client := range clients {
		client.enqueue(envelope)
	}

	h.logger.Debug("presence snapshot broadcast",
		"online_identities", snapshot.Count,
		"connections", len(clients),
	)
}

// EvictIdentity force-closes every session of an identity, as if the peers
// had disconnected, then broadcasts exactly one presence update.
func (h *Hub) EvictIdentity(identityID uuid.UUID) int {
	connIDs := h.registry.connectionsOf(identityID)

	evicted := 0
	for _, connID := range connIDs {
		h.mu.RLock()
		client, ok := h.clients[connID]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		h.removeClient(client, false)
		evicted++
	}

	if evicted > 0 {
		h.broadcastPresence()
	}
	return evicted
}

// GetClientCount returns the total number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetRoomCount returns the number of active rooms
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
