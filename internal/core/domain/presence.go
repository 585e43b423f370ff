package domain

import (
	"time"

	"github.com/google/uuid"
)

// PresenceIdentity is one online identity as shown to peers.
type PresenceIdentity struct {
	IdentityID   string    `json:"identityId"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"`
	LastActivity time.Time `json:"lastActivityTimestamp"`
}

// PresenceSnapshot is the full replace-in-place view broadcast to every open
// connection whenever the registry changes. It is never a diff.
type PresenceSnapshot struct {
	Count      int                `json:"count"`
	Identities []PresenceIdentity `json:"identities"`
}

// PresenceEntry tracks one identity with at least one active session.
// It exists iff the identity has an active session.
type PresenceEntry struct {
	IdentityID   uuid.UUID
	DisplayName  string
	Role         Role
	Connections  map[uuid.UUID]bool
	LastActivity time.Time
}

// Touch advances LastActivity with a max() reducer so concurrent touches
// never move time backward.
func (e *PresenceEntry) Touch(now time.Time) {
	if now.After(e.LastActivity) {
		e.LastActivity = now
	}
}

// Identity converts the entry into its wire representation.
func (e *PresenceEntry) Identity() PresenceIdentity {
	return PresenceIdentity{
		IdentityID:   e.IdentityID.String(),
		DisplayName:  e.DisplayName,
		Role:         string(e.Role),
		LastActivity: e.LastActivity,
	}
}
