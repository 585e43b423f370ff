package websocket

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	"github.com/lorrc/repair-service-backend/internal/core/ports"
)

// Dispatcher is the single entry point domain collaborators use to fan out
// events. It resolves role and identity targets to room memberships and
// queues one fresh envelope per dispatch on every target connection.
//
// Dispatch is fire-and-forget: it returns once the transport writes are
// queued, making no delivery promise beyond "the write was attempted while
// the connection was open". Envelopes queued to the same connection arrive
// in dispatch order; cross-connection ordering is undefined.
type Dispatcher struct {
	hub    *Hub
	logger *slog.Logger
}

// Ensure Dispatcher implements the EventDispatcher port.
var _ ports.EventDispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher bound to the hub.
func NewDispatcher(hub *Hub, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		hub:    hub,
		logger: logger.With("component", "event_dispatcher"),
	}
}

// EmitToRoles delivers the event to every live connection bound to any of
// the roles. A connection matching several roles receives the envelope once.
func (d *Dispatcher) EmitToRoles(ctx context.Context, roles []domain.Role, event domain.EventName, payload interface{}, metadata map[string]interface{}) {
	rooms := make([]string, 0, len(roles))
	for _, role := range roles {
		rooms = append(rooms, domain.RoleRoom(role))
	}

	d.emitToRooms(ctx, rooms, event, payload, metadata)
}

// EmitToIdentity delivers the event to every live connection of one identity.
// An offline identity resolves to zero recipients, not an error.
func (d *Dispatcher) EmitToIdentity(ctx context.Context, identityID uuid.UUID, event domain.EventName, payload interface{}, metadata map[string]interface{}) {
	d.emitToRooms(ctx, []string{domain.IdentityRoom(identityID)}, event, payload, metadata)
}

// EmitToRoom delivers the event to every member of an ad-hoc room.
func (d *Dispatcher) EmitToRoom(ctx context.Context, room string, event domain.EventName, payload interface{}, metadata map[string]interface{}) {
	d.emitToRooms(ctx, []string{room}, event, payload, metadata)
}

func (d *Dispatcher) emitToRooms(ctx context.Context, rooms []string, event domain.EventName, payload interface{}, metadata map[string]interface{}) {
	envelope := domain.NewEnvelope(event, domain.InitiatorFromContext(ctx), payload, metadata)

	targets := d.hub.clientsInRooms(rooms)
	for _, client := range targets {
		client.enqueue(envelope)
	}

	d.logger.Debug("event dispatched",
		"event", event,
		"event_id", envelope.EventID,
		"rooms", rooms,
		"target_connections", len(targets),
	)
}
