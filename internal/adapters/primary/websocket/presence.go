package websocket

import (
	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	"github.com/lorrc/repair-service-backend/internal/core/ports"
)

// The presence broadcast path: every registry state change (register,
// deregister, reaper eviction) flows through broadcastPresence in hub.go,
// which recomputes the full snapshot and fans it out to all open
// connections. Peers always receive a replace-in-place snapshot, never a
// diff. This file exposes the read-only reporter side for request handlers.

// Ensure Hub satisfies the PresenceReporter port.
var _ ports.PresenceReporter = (*Hub)(nil)

// Snapshot returns the current online-identity view.
func (h *Hub) Snapshot() domain.PresenceSnapshot {
	return h.registry.Snapshot()
}

// IsOnline reports whether the identity has at least one live session.
func (h *Hub) IsOnline(identityID uuid.UUID) bool {
	return h.registry.IsOnline(identityID)
}
