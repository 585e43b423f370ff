package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventName identifies the kind of real-time event carried by an envelope.
type EventName string

// Events emitted by the engine itself.
const (
	EventPresenceSnapshot     EventName = "presence-snapshot"
	EventNotificationsInitial EventName = "notifications-initial"
	EventNotificationRead     EventName = "notification-read"
	EventNotificationsAllRead EventName = "notifications-all-read"
)

// Acknowledgments for peer-initiated messages.
const (
	EventJoinRoomAck  EventName = "join-room-ack"
	EventLeaveRoomAck EventName = "leave-room-ack"
	EventActivityAck  EventName = "activity-ack"
)

// Domain events originated by external collaborators follow the
// "<domain>-<action>" convention, e.g. "job-created" or "part-requested".
const (
	EventJobCreated      EventName = "job-created"
	EventJobUpdated      EventName = "job-updated"
	EventJobAssigned     EventName = "job-assigned"
	EventPartRequested   EventName = "part-requested"
	EventCustomerCreated EventName = "customer-created"
)

// SystemActor is the initiatedBy sentinel used when no caller identity is
// available (background sweeps, startup, store-driven events).
const SystemActor = "system"

// Actor describes who caused an event to be emitted.
type Actor struct {
	IdentityID  string `json:"identityId"` // identity UUID or the "system" sentinel
	DisplayName string `json:"displayName"`
	Role        string `json:"role,omitempty"`
}

// SystemInitiator returns the sentinel actor for engine-originated events.
func SystemInitiator() Actor {
	return Actor{IdentityID: SystemActor, DisplayName: SystemActor}
}

// actorContextKey keys the acting identity in a request context.
type actorContextKey struct{}

// WithInitiator stores the acting identity in the context so dispatches made
// while handling the request carry it in initiatedBy.
func WithInitiator(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// InitiatorFromContext resolves the acting identity from the context,
// falling back to the system sentinel when none is set.
func InitiatorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorContextKey{}).(Actor); ok {
		return actor
	}
	return SystemInitiator()
}

// EventEnvelope is the canonical wire wrapper for every emitted event.
type EventEnvelope struct {
	EventID     string                 `json:"eventId"`
	Event       EventName              `json:"event"`
	Timestamp   time.Time              `json:"timestamp"`
	InitiatedBy Actor                  `json:"initiatedBy"`
	Payload     interface{}            `json:"payload"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewEnvelope builds a fresh envelope: new event id, current timestamp.
// One envelope is built per dispatch call and shared across all target
// connections of that call.
func NewEnvelope(event EventName, initiator Actor, payload interface{}, metadata map[string]interface{}) EventEnvelope {
	return EventEnvelope{
		EventID:     uuid.NewString(),
		Event:       event,
		Timestamp:   time.Now().UTC(),
		InitiatedBy: initiator,
		Payload:     payload,
		Metadata:    metadata,
	}
}
