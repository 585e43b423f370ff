package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
)

// NotificationRepository is the port to the persisted notification store.
// The replay bridge reads from it; the notification service marks rows read.
type NotificationRepository interface {
	// Create persists a new notification targeted at an identity or a role.
	Create(ctx context.Context, notification *domain.Notification) (*domain.Notification, error)

	// ListUnread returns every unread notification targeted at the identity
	// directly or at its role, newest first.
	ListUnread(ctx context.Context, identityID uuid.UUID, role domain.Role) ([]*domain.Notification, error)

	// ListForIdentity returns notifications visible to the identity (own and
	// role-targeted), newest first, limited.
	ListForIdentity(ctx context.Context, identityID uuid.UUID, role domain.Role, limit int) ([]*domain.Notification, error)

	// MarkRead marks a single notification read for the identity. Role-
	// targeted rows can only be read-marked by a holder of that role.
	// Returns ErrNotificationNotFound when no visible row matches.
	MarkRead(ctx context.Context, id int64, identityID uuid.UUID, role domain.Role) error

	// MarkAllRead marks every unread notification visible to the identity as
	// read and returns how many rows changed.
	MarkAllRead(ctx context.Context, identityID uuid.UUID, role domain.Role) (int64, error)
}
