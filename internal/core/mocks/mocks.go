package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// MockNotificationRepository is a mock implementation of ports.NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) Create(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	args := m.Called(ctx, notification)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) ListUnread(ctx context.Context, identityID uuid.UUID, role domain.Role) ([]*domain.Notification, error) {
	args := m.Called(ctx, identityID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) ListForIdentity(ctx context.Context, identityID uuid.UUID, role domain.Role, limit int) ([]*domain.Notification, error) {
	args := m.Called(ctx, identityID, role, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id int64, identityID uuid.UUID, role domain.Role) error {
	args := m.Called(ctx, id, identityID, role)
	return args.Error(0)
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, identityID uuid.UUID, role domain.Role) (int64, error) {
	args := m.Called(ctx, identityID, role)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventDispatcher is a mock implementation of ports.EventDispatcher
type MockEventDispatcher struct {
	mock.Mock
}

func NewMockEventDispatcher() *MockEventDispatcher {
	return &MockEventDispatcher{}
}

func (m *MockEventDispatcher) EmitToRoles(ctx context.Context, roles []domain.Role, event domain.EventName, payload interface{}, metadata map[string]interface{}) {
	m.Called(ctx, roles, event, payload, metadata)
}

func (m *MockEventDispatcher) EmitToIdentity(ctx context.Context, identityID uuid.UUID, event domain.EventName, payload interface{}, metadata map[string]interface{}) {
	m.Called(ctx, identityID, event, payload, metadata)
}

func (m *MockEventDispatcher) EmitToRoom(ctx context.Context, room string, event domain.EventName, payload interface{}, metadata map[string]interface{}) {
	m.Called(ctx, room, event, payload, metadata)
}
