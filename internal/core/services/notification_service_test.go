package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	apperrors "github.com/lorrc/repair-service-backend/internal/core/errors"
	"github.com/lorrc/repair-service-backend/internal/core/mocks"
	"github.com/lorrc/repair-service-backend/internal/core/ports"
	"github.com/lorrc/repair-service-backend/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_ListNotifications(t *testing.T) {
	ctx := context.Background()
	identityID := uuid.New()

	t.Run("success with default limit", func(t *testing.T) {
		mockRepo := mocks.NewMockNotificationRepository()
		mockDispatcher := mocks.NewMockEventDispatcher()

		svc := services.NewNotificationService(mockRepo, mockDispatcher)

		stored := []*domain.Notification{
			{ID: 2, Title: "Newer"},
			{ID: 1, Title: "Older"},
		}
		mockRepo.On("ListForIdentity", ctx, identityID, domain.RoleTechnician, 50).
			Return(stored, nil)

		notifications, err := svc.ListNotifications(ctx, ports.ListNotificationsParams{
			IdentityID: identityID,
			Role:       domain.RoleTechnician,
		})

		require.NoError(t, err)
		assert.Equal(t, stored, notifications)
		mockRepo.AssertExpectations(t)
	})

	t.Run("rejects missing identity", func(t *testing.T) {
		mockRepo := mocks.NewMockNotificationRepository()
		mockDispatcher := mocks.NewMockEventDispatcher()

		svc := services.NewNotificationService(mockRepo, mockDispatcher)

		_, err := svc.ListNotifications(ctx, ports.ListNotificationsParams{
			Role: domain.RoleTechnician,
		})

		assert.ErrorIs(t, err, apperrors.ErrIdentityRequired)
		mockRepo.AssertNotCalled(t, "ListForIdentity")
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		mockRepo := mocks.NewMockNotificationRepository()
		mockDispatcher := mocks.NewMockEventDispatcher()

		svc := services.NewNotificationService(mockRepo, mockDispatcher)

		_, err := svc.ListNotifications(ctx, ports.ListNotificationsParams{
			IdentityID: identityID,
			Role:       domain.Role("superuser"),
		})

		assert.ErrorIs(t, err, apperrors.ErrUnknownRole)
	})
}

func TestNotificationService_MarkRead(t *testing.T) {
	ctx := context.Background()
	identityID := uuid.New()

	t.Run("marks read and echoes to identity", func(t *testing.T) {
		mockRepo := mocks.NewMockNotificationRepository()
		mockDispatcher := mocks.NewMockEventDispatcher()

		svc := services.NewNotificationService(mockRepo, mockDispatcher)

		mockRepo.On("MarkRead", ctx, int64(42), identityID, domain.RoleManager).Return(nil)
		mockDispatcher.On("EmitToIdentity", ctx, identityID, domain.EventNotificationRead,
			mock.Anything, mock.Anything).Return()

		err := svc.MarkRead(ctx, ports.MarkReadParams{
			NotificationID: 42,
			IdentityID:     identityID,
			Role:           domain.RoleManager,
		})

		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
		mockDispatcher.AssertExpectations(t)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		mockRepo := mocks.NewMockNotificationRepository()
		mockDispatcher := mocks.NewMockEventDispatcher()

		svc := services.NewNotificationService(mockRepo, mockDispatcher)

		err := svc.MarkRead(ctx, ports.MarkReadParams{
			NotificationID: 42,
			IdentityID:     identityID,
			Role:           domain.Role("superuser"),
		})

		assert.ErrorIs(t, err, apperrors.ErrUnknownRole)
		mockRepo.AssertNotCalled(t, "MarkRead")
	})

	t.Run("no echo when store rejects", func(t *testing.T) {
		mockRepo := mocks.NewMockNotificationRepository()
		mockDispatcher := mocks.NewMockEventDispatcher()

		svc := services.NewNotificationService(mockRepo, mockDispatcher)

		mockRepo.On("MarkRead", ctx, int64(42), identityID, domain.RoleManager).
			Return(apperrors.ErrNotificationNotFound)

		err := svc.MarkRead(ctx, ports.MarkReadParams{
			NotificationID: 42,
			IdentityID:     identityID,
			Role:           domain.RoleManager,
		})

		assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)
		mockDispatcher.AssertNotCalled(t, "EmitToIdentity")
	})
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	ctx := context.Background()
	identityID := uuid.New()

	t.Run("echoes bulk read-mark when rows changed", func(t *testing.T) {
		mockRepo := mocks.NewMockNotificationRepository()
		mockDispatcher := mocks.NewMockEventDispatcher()

		svc := services.NewNotificationService(mockRepo, mockDispatcher)

		mockRepo.On("MarkAllRead", ctx, identityID, domain.RoleManager).
			Return(int64(3), nil)
		mockDispatcher.On("EmitToIdentity", ctx, identityID, domain.EventNotificationsAllRead,
			mock.Anything, mock.Anything).Return()

		updated, err := svc.MarkAllRead(ctx, ports.MarkAllReadParams{
			IdentityID: identityID,
			Role:       domain.RoleManager,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(3), updated)
		mockDispatcher.AssertExpectations(t)
	})

	t.Run("silent when nothing was unread", func(t *testing.T) {
		mockRepo := mocks.NewMockNotificationRepository()
		mockDispatcher := mocks.NewMockEventDispatcher()

		svc := services.NewNotificationService(mockRepo, mockDispatcher)

		mockRepo.On("MarkAllRead", ctx, identityID, domain.RoleManager).
			Return(int64(0), nil)

		updated, err := svc.MarkAllRead(ctx, ports.MarkAllReadParams{
			IdentityID: identityID,
			Role:       domain.RoleManager,
		})

		require.NoError(t, err)
		assert.Zero(t, updated)
		mockDispatcher.AssertNotCalled(t, "EmitToIdentity")
	})
}
