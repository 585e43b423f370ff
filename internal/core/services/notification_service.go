package services

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	apperrors "github.com/lorrc/repair-service-backend/internal/core/errors"
	"github.com/lorrc/repair-service-backend/internal/core/ports"
)

const defaultNotificationListLimit = 50

// NotificationService implements the business logic for persisted
// notifications. Read-marks are echoed back to the identity's live
// connections so every open tab converges on the same read state.
type NotificationService struct {
	notificationRepo ports.NotificationRepository
	dispatcher       ports.EventDispatcher
}

// Ensure implementation matches the interface.
var _ ports.NotificationService = (*NotificationService)(nil)

// NewNotificationService creates a new service for notification logic.
func NewNotificationService(
	notificationRepo ports.NotificationRepository,
	dispatcher ports.EventDispatcher,
) ports.NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		dispatcher:       dispatcher,
	}
}

// ListNotifications returns notifications visible to the identity, newest
// first.
func (s *NotificationService) ListNotifications(ctx context.Context, params ports.ListNotificationsParams) ([]*domain.Notification, error) {
	if params.IdentityID == uuid.Nil {
		return nil, apperrors.ErrIdentityRequired
	}
	if !params.Role.IsValid() {
		return nil, apperrors.ErrUnknownRole
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultNotificationListLimit
	}

	return s.notificationRepo.ListForIdentity(ctx, params.IdentityID, params.Role, limit)
}

// MarkRead acknowledges a single notification and echoes the read-mark to
// the identity's live connections.
func (s *NotificationService) MarkRead(ctx context.Context, params ports.MarkReadParams) error {
	if params.IdentityID == uuid.Nil {
		return apperrors.ErrIdentityRequired
	}
	if !params.Role.IsValid() {
		return apperrors.ErrUnknownRole
	}

	if err := s.notificationRepo.MarkRead(ctx, params.NotificationID, params.IdentityID, params.Role); err != nil {
		return err
	}

	s.dispatcher.EmitToIdentity(ctx, params.IdentityID, domain.EventNotificationRead,
		map[string]interface{}{
			"notificationId": strconv.FormatInt(params.NotificationID, 10),
		}, nil)

	return nil
}

// MarkAllRead acknowledges every unread notification visible to the identity
// and echoes the bulk read-mark to its live connections.
func (s *NotificationService) MarkAllRead(ctx context.Context, params ports.MarkAllReadParams) (int64, error) {
	if params.IdentityID == uuid.Nil {
		return 0, apperrors.ErrIdentityRequired
	}
	if !params.Role.IsValid() {
		return 0, apperrors.ErrUnknownRole
	}

	updated, err := s.notificationRepo.MarkAllRead(ctx, params.IdentityID, params.Role)
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		s.dispatcher.EmitToIdentity(ctx, params.IdentityID, domain.EventNotificationsAllRead,
			map[string]interface{}{
				"updated": updated,
			}, nil)
	}

	return updated, nil
}
