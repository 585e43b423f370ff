package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	apperrors "github.com/lorrc/repair-service-backend/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHub starts a hub with a running event loop and shuts it down with
// the test.
func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(NewRegistry(testLogger()), time.Second, testLogger())
	go hub.Run()
	t.Cleanup(func() { hub.Shutdown(context.Background()) })
	return hub
}

// newTestClient builds a client without a transport connection. The hub and
// dispatch paths never touch the connection, so nil is fine outside the pumps.
func newTestClient(hub *Hub, identityID uuid.UUID, role domain.Role, name string) *Client {
	return NewClient(hub, nil, identityID, role, name, Keepalive{}, nil, testLogger())
}

// mustRegister pushes the client through the hub's register channel and waits
// until the registration is applied.
func mustRegister(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	before := hub.GetClientCount()
	hub.Register <- client
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == before+1
	}, time.Second, 5*time.Millisecond)
}

// settle waits until the client has received the presence broadcasts of the
// expected number of registrations, then discards everything queued. A client
// gets one broadcast per registration made while it was connected, its own
// included.
func settle(t *testing.T, client *Client, broadcasts int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(client.Send) >= broadcasts
	}, time.Second, 5*time.Millisecond)
	drain(client)
}

// drain empties the client's send buffer and returns what was queued.
func drain(client *Client) []domain.EventEnvelope {
	var envelopes []domain.EventEnvelope
	for {
		select {
		case envelope, ok := <-client.Send:
			if !ok {
				return envelopes
			}
			envelopes = append(envelopes, envelope)
		default:
			return envelopes
		}
	}
}

func TestHub_Register_JoinsImplicitRooms(t *testing.T) {
	hub := newTestHub(t)
	identityID := uuid.New()
	client := newTestClient(hub, identityID, domain.RoleTechnician, "Taylor")

	mustRegister(t, hub, client)

	identityMembers := hub.MembersOf(domain.IdentityRoom(identityID))
	require.Len(t, identityMembers, 1)
	assert.Equal(t, client.ConnectionID(), identityMembers[0])

	roleMembers := hub.MembersOf(domain.RoleRoom(domain.RoleTechnician))
	assert.Contains(t, roleMembers, client.ConnectionID())

	// Registration announces the new presence to every open connection,
	// including the one that just arrived.
	require.Eventually(t, func() bool {
		return len(client.Send) >= 1
	}, time.Second, 5*time.Millisecond)
	envelopes := drain(client)
	assert.Equal(t, domain.EventPresenceSnapshot, envelopes[0].Event)
}

func TestHub_Register_RejectedSessionEmitsNothing(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, uuid.Nil, domain.RoleTechnician, "Nobody")

	hub.Register <- client

	// The send channel is closed without a single envelope.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-client.Send:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	assert.Zero(t, hub.GetClientCount())
	assert.Equal(t, StateClosed, client.session.State())
}

func TestHub_JoinRoom_AcknowledgedWithinBound(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, uuid.New(), domain.RoleManager, "Morgan")
	mustRegister(t, hub, client)

	require.NoError(t, hub.JoinRoom(client, "job-42"))
	assert.Contains(t, hub.MembersOf("job-42"), client.ConnectionID())

	// Joining the same room twice is a no-op.
	require.NoError(t, hub.JoinRoom(client, "job-42"))
	assert.Len(t, hub.MembersOf("job-42"), 1)
}

func TestHub_JoinRoom_TimesOutWithoutAck(t *testing.T) {
	// No run loop: the join request is never picked up.
	hub := NewHub(NewRegistry(testLogger()), 20*time.Millisecond, testLogger())
	client := newTestClient(hub, uuid.New(), domain.RoleManager, "Morgan")

	err := hub.JoinRoom(client, "job-42")
	assert.ErrorIs(t, err, apperrors.ErrJoinTimeout)
	assert.Empty(t, hub.MembersOf("job-42"))
}

func TestHub_JoinRoom_RejectsClosedSession(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, uuid.New(), domain.RoleManager, "Morgan")
	mustRegister(t, hub, client)

	client.session.close()

	err := hub.JoinRoom(client, "job-42")
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
}

func TestHub_LeaveRoom_NeverJoinedIsNoop(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, uuid.New(), domain.RoleCoordinator, "Casey")
	mustRegister(t, hub, client)

	hub.LeaveRoom(client, "job-7")
	assert.Empty(t, hub.MembersOf("job-7"))
}

func TestHub_EmptyRoomsAreDeleted(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, uuid.New(), domain.RoleCoordinator, "Casey")
	mustRegister(t, hub, client)

	require.NoError(t, hub.JoinRoom(client, "job-9"))
	before := hub.GetRoomCount()

	hub.LeaveRoom(client, "job-9")
	assert.Equal(t, before-1, hub.GetRoomCount())
	assert.Empty(t, hub.MembersOf("job-9"))
}

func TestHub_MembersOf_UnknownRoom(t *testing.T) {
	hub := newTestHub(t)
	members := hub.MembersOf("no-such-room")
	assert.NotNil(t, members)
	assert.Empty(t, members)
}

func TestHub_Unregister_BroadcastsPresenceOnce(t *testing.T) {
	hub := newTestHub(t)
	leaving := newTestClient(hub, uuid.New(), domain.RoleTechnician, "Leaver")
	observer := newTestClient(hub, uuid.New(), domain.RoleManager, "Watcher")
	mustRegister(t, hub, leaving)
	mustRegister(t, hub, observer)

	settle(t, observer, 1)

	hub.Unregister <- leaving
	require.Eventually(t, func() bool {
		return len(observer.Send) >= 1
	}, time.Second, 5*time.Millisecond)

	envelopes := drain(observer)
	require.Len(t, envelopes, 1)
	assert.Equal(t, domain.EventPresenceSnapshot, envelopes[0].Event)

	snapshot, ok := envelopes[0].Payload.(domain.PresenceSnapshot)
	require.True(t, ok)
	assert.Equal(t, 1, snapshot.Count)
}

func TestHub_EvictIdentity_SinglePresenceBroadcast(t *testing.T) {
	hub := newTestHub(t)
	identityID := uuid.New()

	first := newTestClient(hub, identityID, domain.RoleTechnician, "Taylor")
	second := newTestClient(hub, identityID, domain.RoleTechnician, "Taylor")
	observer := newTestClient(hub, uuid.New(), domain.RoleManager, "Watcher")
	mustRegister(t, hub, first)
	mustRegister(t, hub, second)
	mustRegister(t, hub, observer)

	settle(t, observer, 1)

	evicted := hub.EvictIdentity(identityID)
	assert.Equal(t, 2, evicted)

	// Both sessions closed as if the peers had disconnected.
	assert.False(t, hub.Registry().IsOnline(identityID))
	assert.Empty(t, hub.MembersOf(domain.IdentityRoom(identityID)))

	// Exactly one presence update for the whole identity, not one per session.
	envelopes := drain(observer)
	require.Len(t, envelopes, 1)
	assert.Equal(t, domain.EventPresenceSnapshot, envelopes[0].Event)
}

func TestHub_EvictIdentity_UnknownIdentity(t *testing.T) {
	hub := newTestHub(t)
	assert.Zero(t, hub.EvictIdentity(uuid.New()))
}

func TestHub_ReconnectionDropsAdHocRooms(t *testing.T) {
	hub := newTestHub(t)
	identityID := uuid.New()

	client := newTestClient(hub, identityID, domain.RoleTechnician, "Taylor")
	mustRegister(t, hub, client)
	require.NoError(t, hub.JoinRoom(client, "job-42"))

	hub.Unregister <- client
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 0
	}, time.Second, 5*time.Millisecond)

	// A reconnecting peer gets a brand-new session: implicit rooms come back
	// automatically, ad-hoc memberships do not.
	reconnected := newTestClient(hub, identityID, domain.RoleTechnician, "Taylor")
	mustRegister(t, hub, reconnected)

	assert.NotEqual(t, client.ConnectionID(), reconnected.ConnectionID())
	assert.Contains(t, hub.MembersOf(domain.IdentityRoom(identityID)), reconnected.ConnectionID())
	assert.Empty(t, hub.MembersOf("job-42"))
}

func TestHub_Shutdown_ClosesEverySession(t *testing.T) {
	hub := NewHub(NewRegistry(testLogger()), time.Second, testLogger())
	go hub.Run()

	client := newTestClient(hub, uuid.New(), domain.RoleAdmin, "Alex")
	mustRegister(t, hub, client)

	hub.Shutdown(context.Background())

	assert.Zero(t, hub.GetClientCount())
	assert.Zero(t, hub.Registry().SessionCount())
	assert.Equal(t, StateClosed, client.session.State())

	// Shutting down twice is safe.
	hub.Shutdown(context.Background())
}

func TestHub_ConcurrentJoinAndRemovalLeavesNoMembership(t *testing.T) {
	hub := newTestHub(t)
	const room = "job-races"

	// A join landing either side of a forced removal must never leave the
	// connection behind in the room table.
	for i := 0; i < 25; i++ {
		client := newTestClient(hub, uuid.New(), domain.RoleTechnician, "Racer")
		mustRegister(t, hub, client)

		done := make(chan struct{})
		go func() {
			// May succeed or fail with ErrSessionClosed depending on which
			// side wins; both outcomes are valid.
			_ = hub.JoinRoom(client, room)
			close(done)
		}()
		hub.removeClient(client, false)
		<-done

		assert.NotContains(t, hub.MembersOf(room), client.ConnectionID())
		assert.Equal(t, StateClosed, client.session.State())
	}

	assert.Zero(t, hub.GetClientCount())
	assert.Empty(t, hub.MembersOf(room))
}

func TestHub_JoinAfterRemovalIsRefused(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, uuid.New(), domain.RoleManager, "Morgan")
	mustRegister(t, hub, client)

	hub.removeClient(client, false)

	err := hub.JoinRoom(client, "job-7")
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
	assert.Empty(t, hub.MembersOf("job-7"))
}

func TestHub_PartialDisconnectKeepsIdentityLive(t *testing.T) {
	hub := newTestHub(t)
	dispatcher := NewDispatcher(hub, testLogger())
	ctx := context.Background()

	identityID := uuid.New()
	desktop := newTestClient(hub, identityID, domain.RoleTechnician, "Taylor")
	tablet := newTestClient(hub, identityID, domain.RoleTechnician, "Taylor")

	mustRegister(t, hub, desktop)
	mustRegister(t, hub, tablet)
	settle(t, desktop, 2)
	settle(t, tablet, 1)

	// A role dispatch reaches both sessions.
	dispatcher.EmitToRoles(ctx, []domain.Role{domain.RoleTechnician}, "job-created", nil, nil)
	settle(t, desktop, 1)
	settle(t, tablet, 1)

	// Only the desktop session follows the ad-hoc job channel.
	require.NoError(t, hub.JoinRoom(desktop, "job-42"))
	dispatcher.EmitToRoom(ctx, "job-42", "job-updated", nil, nil)
	settle(t, desktop, 1)
	assert.Empty(t, drain(tablet))

	// The desktop session drops; the identity stays online through the
	// tablet and keeps receiving identity-targeted events.
	hub.removeClient(desktop, true)
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, hub.Registry().IsOnline(identityID))
	settle(t, tablet, 1) // the presence broadcast for the disconnect

	dispatcher.EmitToIdentity(ctx, identityID, "job-assigned", nil, nil)
	require.Eventually(t, func() bool {
		return len(tablet.Send) >= 1
	}, time.Second, 5*time.Millisecond)
	envelopes := drain(tablet)
	require.Len(t, envelopes, 1)
	assert.Equal(t, domain.EventName("job-assigned"), envelopes[0].Event)
}
