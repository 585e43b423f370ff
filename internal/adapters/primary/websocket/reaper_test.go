package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaper_SweepEvictsIdleIdentities(t *testing.T) {
	hub := newTestHub(t)
	reaper := NewReaper(hub, 30*time.Second, 60*time.Minute, testLogger())

	idleID := uuid.New()
	activeID := uuid.New()

	idle := newTestClient(hub, idleID, domain.RoleTechnician, "Idle")
	active := newTestClient(hub, activeID, domain.RoleManager, "Busy")
	mustRegister(t, hub, idle)
	mustRegister(t, hub, active)

	now := time.Now()
	hub.Registry().touchAt(activeID, now.Add(30*time.Minute))

	reaper.sweep(now.Add(61 * time.Minute))

	assert.False(t, hub.Registry().IsOnline(idleID))
	assert.True(t, hub.Registry().IsOnline(activeID))
	assert.Equal(t, 1, hub.GetClientCount())
}

func TestReaper_SweepBelowThresholdEvictsNothing(t *testing.T) {
	hub := newTestHub(t)
	reaper := NewReaper(hub, 30*time.Second, 60*time.Minute, testLogger())

	identityID := uuid.New()
	client := newTestClient(hub, identityID, domain.RoleCoordinator, "Casey")
	mustRegister(t, hub, client)

	reaper.sweep(time.Now().Add(59 * time.Minute))

	assert.True(t, hub.Registry().IsOnline(identityID))
	assert.Equal(t, 1, hub.GetClientCount())
}

func TestReaper_EvictionBroadcastsOncePerIdentity(t *testing.T) {
	hub := newTestHub(t)
	reaper := NewReaper(hub, 30*time.Second, 60*time.Minute, testLogger())

	idleID := uuid.New()
	first := newTestClient(hub, idleID, domain.RoleTechnician, "Taylor")
	second := newTestClient(hub, idleID, domain.RoleTechnician, "Taylor")
	observer := newTestClient(hub, uuid.New(), domain.RoleManager, "Watcher")
	mustRegister(t, hub, first)
	mustRegister(t, hub, second)
	mustRegister(t, hub, observer)

	settle(t, observer, 1)

	now := time.Now()
	hub.Registry().touchAt(observer.session.IdentityID, now.Add(30*time.Minute))

	reaper.sweep(now.Add(61 * time.Minute))

	envelopes := drain(observer)
	require.Len(t, envelopes, 1)
	assert.Equal(t, domain.EventPresenceSnapshot, envelopes[0].Event)
}

func TestReaper_EvictContainsPanics(t *testing.T) {
	// A nil hub makes the eviction blow up; the recovery must turn the panic
	// into an error so the sweep can carry on.
	reaper := NewReaper(nil, 30*time.Second, 60*time.Minute, testLogger())

	evicted, err := reaper.evict(uuid.New())
	require.Error(t, err)
	assert.Zero(t, evicted)
}
