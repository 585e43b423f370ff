package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
)

// EventDispatcher is the single entry point domain collaborators use to fan
// out real-time events. No collaborator reaches into the registry or room
// tables directly.
type EventDispatcher interface {
	// EmitToRoles delivers one fresh envelope to every live connection whose
	// bound role is in roles. Fire-and-forget: the call returns once the
	// transport writes have been queued.
	EmitToRoles(ctx context.Context, roles []domain.Role, event domain.EventName, payload interface{}, metadata map[string]interface{})

	// EmitToIdentity delivers one fresh envelope to every live connection of
	// a single identity.
	EmitToIdentity(ctx context.Context, identityID uuid.UUID, event domain.EventName, payload interface{}, metadata map[string]interface{})

	// EmitToRoom delivers one fresh envelope to every member of an ad-hoc
	// room. An unknown or empty room resolves to zero recipients.
	EmitToRoom(ctx context.Context, room string, event domain.EventName, payload interface{}, metadata map[string]interface{})
}

// PresenceReporter exposes the current online-identity view for request
// handlers and health surfaces.
type PresenceReporter interface {
	Snapshot() domain.PresenceSnapshot
	IsOnline(identityID uuid.UUID) bool
}
