package websocket

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	apperrors "github.com/lorrc/repair-service-backend/internal/core/errors"
)

// Registry tracks live sessions and the presence entries derived from them.
// A presence entry exists iff its identity has at least one active session.
//
// All mutating operations lock the single mutex for their full duration, so
// readers (Snapshot, IsOnline) never observe a partially applied change.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session             // by connection id
	presence map[uuid.UUID]*domain.PresenceEntry // by identity id

	logger *slog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		presence: make(map[uuid.UUID]*domain.PresenceEntry),
		logger:   logger.With("component", "connection_registry"),
	}
}

// Register binds a pending session, activating it and creating or extending
// the identity's presence entry. An empty identity is rejected; the caller
// must close the connection without emitting any event.
func (r *Registry) Register(session *Session) error {
	if session.IdentityID == uuid.Nil {
		return apperrors.ErrIdentityRequired
	}
	if !session.Role.IsValid() {
		return apperrors.ErrUnknownRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session.activate()
	session.lastActivity = time.Now()
	r.sessions[session.ConnectionID] = session

	entry, ok := r.presence[session.IdentityID]
	if !ok {
		entry = &domain.PresenceEntry{
			IdentityID:  session.IdentityID,
			DisplayName: session.DisplayName,
			Role:        session.Role,
			Connections: make(map[uuid.UUID]bool),
		}
		r.presence[session.IdentityID] = entry
	}
	entry.Connections[session.ConnectionID] = true
	entry.Touch(session.lastActivity)

	r.logger.Info("session registered",
		"connection_id", session.ConnectionID,
		"identity_id", session.IdentityID,
		"role", session.Role,
		"identity_connections", len(entry.Connections),
	)

	return nil
}

// TouchActivity advances the identity's last-activity timestamp. Unknown
// identities are a no-op. The max() reducer keeps the timestamp monotonic
// even if touches race in from multiple devices.
func (r *Registry) TouchActivity(identityID uuid.UUID) {
	r.touchAt(identityID, time.Now())
}

func (r *Registry) touchAt(identityID uuid.UUID, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.presence[identityID]
	if !ok {
		return
	}
	entry.Touch(now)
}

// Deregister removes a session. It reports whether the identity went offline,
// i.e. this was its last session.
func (r *Registry) Deregister(connectionID uuid.UUID) (session *Session, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[connectionID]
	if !ok {
		return nil, false
	}

	delete(r.sessions, connectionID)
	session.close()

	entry, ok := r.presence[session.IdentityID]
	if ok {
		delete(entry.Connections, connectionID)
		if len(entry.Connections) == 0 {
			delete(r.presence, session.IdentityID)
			wentOffline = true
		}
	}

	r.logger.Info("session deregistered",
		"connection_id", connectionID,
		"identity_id", session.IdentityID,
		"went_offline", wentOffline,
	)

	return session, wentOffline
}

// Snapshot returns the presence view at a single consistent point in time.
func (r *Registry) Snapshot() domain.PresenceSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identities := make([]domain.PresenceIdentity, 0, len(r.presence))
	for _, entry := range r.presence {
		identities = append(identities, entry.Identity())
	}

	// Stable order keeps repeated snapshots comparable for peers.
	sort.Slice(identities, func(i, j int) bool {
		return identities[i].IdentityID < identities[j].IdentityID
	})

	return domain.PresenceSnapshot{
		Count:      len(identities),
		Identities: identities,
	}
}

// IsOnline reports whether the identity has at least one active session.
func (r *Registry) IsOnline(identityID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.presence[identityID]
	return ok && len(entry.Connections) > 0
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IdleIdentities returns the identities whose last activity is older than
// the threshold, as of now.
func (r *Registry) IdleIdentities(threshold time.Duration, now time.Time) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var idle []uuid.UUID
	for identityID, entry := range r.presence {
		if now.Sub(entry.LastActivity) > threshold {
			idle = append(idle, identityID)
		}
	}
	return idle
}

// connectionsOf returns the connection ids of an identity's sessions.
func (r *Registry) connectionsOf(identityID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.presence[identityID]
	if !ok {
		return nil
	}
	conns := make([]uuid.UUID, 0, len(entry.Connections))
	for conn := range entry.Connections {
		conns = append(conns, conn)
	}
	return conns
}
