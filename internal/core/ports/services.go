package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
)

// ListNotificationsParams defines the input for listing an identity's notifications.
type ListNotificationsParams struct {
	IdentityID uuid.UUID
	Role       domain.Role
	Limit      int
}

// MarkReadParams defines the input for acknowledging a single notification.
type MarkReadParams struct {
	NotificationID int64
	IdentityID     uuid.UUID
	Role           domain.Role
}

// MarkAllReadParams defines the input for acknowledging every notification.
type MarkAllReadParams struct {
	IdentityID uuid.UUID
	Role       domain.Role
}

// NotificationService defines the business operations on persisted
// notifications. Read-marks are acknowledged back to the owning identity over
// the live channel through the EventDispatcher.
type NotificationService interface {
	ListNotifications(ctx context.Context, params ListNotificationsParams) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, params MarkReadParams) error
	MarkAllRead(ctx context.Context, params MarkAllReadParams) (int64, error)
}
