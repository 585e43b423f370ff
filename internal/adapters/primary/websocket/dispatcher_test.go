package websocket

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_EmitToRoles_FanOut(t *testing.T) {
	hub := newTestHub(t)
	dispatcher := NewDispatcher(hub, testLogger())

	technician1 := newTestClient(hub, uuid.New(), domain.RoleTechnician, "Tech One")
	technician2 := newTestClient(hub, uuid.New(), domain.RoleTechnician, "Tech Two")
	coordinator := newTestClient(hub, uuid.New(), domain.RoleCoordinator, "Coord")
	manager := newTestClient(hub, uuid.New(), domain.RoleManager, "Manager")
	receptionist := newTestClient(hub, uuid.New(), domain.RoleReceptionist, "Front Desk")

	clients := []*Client{technician1, technician2, coordinator, manager, receptionist}
	for _, c := range clients {
		mustRegister(t, hub, c)
	}
	for i, c := range clients {
		settle(t, c, len(clients)-i)
	}

	dispatcher.EmitToRoles(context.Background(),
		[]domain.Role{domain.RoleTechnician, domain.RoleCoordinator},
		domain.EventJobAssigned,
		map[string]interface{}{"jobId": "42"},
		nil,
	)

	for _, target := range []*Client{technician1, technician2, coordinator} {
		envelopes := drain(target)
		require.Len(t, envelopes, 1)
		assert.Equal(t, domain.EventJobAssigned, envelopes[0].Event)
	}

	assert.Empty(t, drain(manager))
	assert.Empty(t, drain(receptionist))
}

func TestDispatcher_EmitToRoles_DeduplicatesAcrossRooms(t *testing.T) {
	hub := newTestHub(t)
	dispatcher := NewDispatcher(hub, testLogger())

	client := newTestClient(hub, uuid.New(), domain.RoleTechnician, "Taylor")
	mustRegister(t, hub, client)
	settle(t, client, 1)

	// The same role listed twice still resolves to one delivery.
	dispatcher.EmitToRoles(context.Background(),
		[]domain.Role{domain.RoleTechnician, domain.RoleTechnician},
		domain.EventJobUpdated, nil, nil,
	)

	assert.Len(t, drain(client), 1)
}

func TestDispatcher_EmitToIdentity_AllConnections(t *testing.T) {
	hub := newTestHub(t)
	dispatcher := NewDispatcher(hub, testLogger())
	identityID := uuid.New()

	desktop := newTestClient(hub, identityID, domain.RoleManager, "Morgan")
	phone := newTestClient(hub, identityID, domain.RoleManager, "Morgan")
	other := newTestClient(hub, uuid.New(), domain.RoleManager, "Sam")
	clients := []*Client{desktop, phone, other}
	for _, c := range clients {
		mustRegister(t, hub, c)
	}
	for i, c := range clients {
		settle(t, c, len(clients)-i)
	}

	dispatcher.EmitToIdentity(context.Background(), identityID, domain.EventNotificationRead, nil, nil)

	assert.Len(t, drain(desktop), 1)
	assert.Len(t, drain(phone), 1)
	assert.Empty(t, drain(other))
}

func TestDispatcher_EmitToIdentity_OfflineIsNoop(t *testing.T) {
	hub := newTestHub(t)
	dispatcher := NewDispatcher(hub, testLogger())

	// No recipients, no error, no panic.
	dispatcher.EmitToIdentity(context.Background(), uuid.New(), domain.EventJobCreated, nil, nil)
}

func TestDispatcher_EnvelopePerDispatch(t *testing.T) {
	hub := newTestHub(t)
	dispatcher := NewDispatcher(hub, testLogger())
	identityID := uuid.New()

	client := newTestClient(hub, identityID, domain.RoleAdmin, "Alex")
	mustRegister(t, hub, client)
	settle(t, client, 1)

	dispatcher.EmitToIdentity(context.Background(), identityID, domain.EventJobCreated, nil, nil)
	dispatcher.EmitToIdentity(context.Background(), identityID, domain.EventJobCreated, nil, nil)

	envelopes := drain(client)
	require.Len(t, envelopes, 2)
	assert.NotEqual(t, envelopes[0].EventID, envelopes[1].EventID)
	assert.False(t, envelopes[0].Timestamp.IsZero())
}

func TestDispatcher_PerConnectionOrder(t *testing.T) {
	hub := newTestHub(t)
	dispatcher := NewDispatcher(hub, testLogger())
	identityID := uuid.New()

	client := newTestClient(hub, identityID, domain.RoleAdmin, "Alex")
	mustRegister(t, hub, client)
	settle(t, client, 1)

	events := []domain.EventName{domain.EventJobCreated, domain.EventJobUpdated, domain.EventJobAssigned}
	for _, event := range events {
		dispatcher.EmitToIdentity(context.Background(), identityID, event, nil, nil)
	}

	envelopes := drain(client)
	require.Len(t, envelopes, len(events))
	for i, event := range events {
		assert.Equal(t, event, envelopes[i].Event)
	}
}

func TestDispatcher_InitiatorFromContext(t *testing.T) {
	hub := newTestHub(t)
	dispatcher := NewDispatcher(hub, testLogger())
	identityID := uuid.New()

	client := newTestClient(hub, identityID, domain.RoleManager, "Morgan")
	mustRegister(t, hub, client)
	settle(t, client, 1)

	actor := domain.Actor{IdentityID: uuid.NewString(), DisplayName: "Casey", Role: "coordinator"}
	ctx := domain.WithInitiator(context.Background(), actor)
	dispatcher.EmitToIdentity(ctx, identityID, domain.EventJobUpdated, nil, nil)

	// Without an initiator in the context the system sentinel is stamped.
	dispatcher.EmitToIdentity(context.Background(), identityID, domain.EventJobUpdated, nil, nil)

	envelopes := drain(client)
	require.Len(t, envelopes, 2)
	assert.Equal(t, actor, envelopes[0].InitiatedBy)
	assert.Equal(t, domain.SystemInitiator(), envelopes[1].InitiatedBy)
}

func TestDispatcher_EmitToRoom_AdHocMembersOnly(t *testing.T) {
	hub := newTestHub(t)
	dispatcher := NewDispatcher(hub, testLogger())

	member := newTestClient(hub, uuid.New(), domain.RoleTechnician, "In")
	outsider := newTestClient(hub, uuid.New(), domain.RoleTechnician, "Out")
	mustRegister(t, hub, member)
	mustRegister(t, hub, outsider)
	settle(t, member, 2)
	settle(t, outsider, 1)

	require.NoError(t, hub.JoinRoom(member, "job-42"))

	dispatcher.EmitToRoom(context.Background(), "job-42", domain.EventPartRequested, nil, nil)

	assert.Len(t, drain(member), 1)
	assert.Empty(t, drain(outsider))
}
