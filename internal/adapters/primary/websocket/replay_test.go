package websocket

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	"github.com/lorrc/repair-service-backend/internal/core/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReplayBridge_DeliversUnreadBatch(t *testing.T) {
	hub := newTestHub(t)
	identityID := uuid.New()
	client := newTestClient(hub, identityID, domain.RoleTechnician, "Taylor")
	mustRegister(t, hub, client)
	settle(t, client, 1)

	store := mocks.NewMockNotificationRepository()
	store.On("ListUnread", mock.Anything, identityID, domain.RoleTechnician).
		Return([]*domain.Notification{
			{ID: 2, Kind: "job-assigned", Title: "Newer", CreatedAt: time.Now()},
			{ID: 1, Kind: "job-created", Title: "Older", CreatedAt: time.Now().Add(-time.Hour)},
		}, nil)

	bridge := NewReplayBridge(store, testLogger())
	bridge.Deliver(client)

	envelopes := drain(client)
	require.Len(t, envelopes, 1)
	assert.Equal(t, domain.EventNotificationsInitial, envelopes[0].Event)
	assert.Equal(t, domain.SystemInitiator(), envelopes[0].InitiatedBy)

	payload, ok := envelopes[0].Payload.(notificationsInitialPayload)
	require.True(t, ok)
	assert.Equal(t, 2, payload.Count)
	require.Len(t, payload.Notifications, 2)
	assert.Equal(t, "Newer", payload.Notifications[0].Title)

	store.AssertExpectations(t)
}

func TestReplayBridge_StoreFailureDegradesToEmptyBatch(t *testing.T) {
	hub := newTestHub(t)
	identityID := uuid.New()
	client := newTestClient(hub, identityID, domain.RoleManager, "Morgan")
	mustRegister(t, hub, client)
	settle(t, client, 1)

	store := mocks.NewMockNotificationRepository()
	store.On("ListUnread", mock.Anything, identityID, domain.RoleManager).
		Return(nil, errors.New("store unavailable"))

	bridge := NewReplayBridge(store, testLogger())
	bridge.Deliver(client)

	// The connection still gets its batch event, just empty.
	envelopes := drain(client)
	require.Len(t, envelopes, 1)
	assert.Equal(t, domain.EventNotificationsInitial, envelopes[0].Event)

	payload, ok := envelopes[0].Payload.(notificationsInitialPayload)
	require.True(t, ok)
	assert.Zero(t, payload.Count)
	assert.Empty(t, payload.Notifications)
}

func TestReplayBridge_NoUnreadDeliversEmptyBatch(t *testing.T) {
	hub := newTestHub(t)
	identityID := uuid.New()
	client := newTestClient(hub, identityID, domain.RoleAdmin, "Alex")
	mustRegister(t, hub, client)
	settle(t, client, 1)

	store := mocks.NewMockNotificationRepository()
	store.On("ListUnread", mock.Anything, identityID, domain.RoleAdmin).
		Return([]*domain.Notification{}, nil)

	bridge := NewReplayBridge(store, testLogger())
	bridge.Deliver(client)

	envelopes := drain(client)
	require.Len(t, envelopes, 1)

	payload, ok := envelopes[0].Payload.(notificationsInitialPayload)
	require.True(t, ok)
	assert.Zero(t, payload.Count)
}
