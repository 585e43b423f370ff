package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
)

// SessionState is the lifecycle state of one live connection.
type SessionState string

const (
	// StatePending is a freshly opened connection that has not been bound to
	// an identity yet.
	StatePending SessionState = "pending"
	// StateActive is a registered connection bound to identity and role.
	StateActive SessionState = "active"
	// StateClosed is terminal. A reconnecting peer always gets a brand-new
	// session; closed ones are never resurrected.
	StateClosed SessionState = "closed"
)

// Session is the registry's bookkeeping for one live connection.
type Session struct {
	ConnectionID uuid.UUID
	IdentityID   uuid.UUID
	Role         domain.Role
	DisplayName  string

	// rooms is the set of joined room names, including the implicit
	// identity and role rooms. Guarded by the hub's mutex.
	rooms map[string]bool

	lastActivity time.Time

	// stateMu guards state. The hub and the registry transition sessions
	// under different locks, so state carries its own.
	stateMu sync.Mutex
	state   SessionState
}

// newSession creates a pending session for a connection that just completed
// its transport handshake.
func newSession(identityID uuid.UUID, role domain.Role, displayName string) *Session {
	return &Session{
		ConnectionID: uuid.New(),
		IdentityID:   identityID,
		Role:         role,
		DisplayName:  displayName,
		rooms:        make(map[string]bool),
		lastActivity: time.Now(),
		state:        StatePending,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// activate transitions pending -> active. Only valid after identity and role
// are bound.
func (s *Session) activate() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == StatePending {
		s.state = StateActive
	}
}

// close transitions to the terminal state. Pending -> closed is allowed for
// rejected handshakes. Idempotent.
func (s *Session) close() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = StateClosed
}

// joinedRooms returns a copy of the session's room set.
func (s *Session) joinedRooms() []string {
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// inRoom reports whether the session has joined the room.
func (s *Session) inRoom(room string) bool {
	return s.rooms[room]
}
