package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Reaper periodically evicts identities whose sessions have been idle beyond
// the threshold. Evicted sessions are closed through the normal
// deregistration path, so each evicted identity produces exactly one
// presence broadcast.
type Reaper struct {
	hub       *Hub
	interval  time.Duration
	idleAfter time.Duration
	logger    *slog.Logger
}

// NewReaper creates a reaper for the hub.
func NewReaper(hub *Hub, interval, idleAfter time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		hub:       hub,
		interval:  interval,
		idleAfter: idleAfter,
		logger:    logger.With("component", "inactivity_reaper"),
	}
}

// Run sweeps on a fixed period until the context is canceled. This MUST be
// run as a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now())
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		}
	}
}

// sweep evicts every identity idle beyond the threshold as of now. A failure
// on one identity is logged and does not stop the sweep.
func (r *Reaper) sweep(now time.Time) {
	idle := r.hub.Registry().IdleIdentities(r.idleAfter, now)

	for _, identityID := range idle {
		evicted, err := r.evict(identityID)
		if err != nil {
			r.logger.Error("failed to evict idle identity",
				"identity_id", identityID,
				"error", err,
			)
			continue
		}
		r.logger.Info("evicted idle identity",
			"identity_id", identityID,
			"closed_sessions", evicted,
		)
	}
}

// evict closes all of an identity's sessions. A panic while closing is
// contained so the sweep can continue with the next identity.
func (r *Reaper) evict(identityID uuid.UUID) (evicted int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("evict %s: %v", identityID, p)
		}
	}()

	return r.hub.EvictIdentity(identityID), nil
}
