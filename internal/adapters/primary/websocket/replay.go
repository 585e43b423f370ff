package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/lorrc/repair-service-backend/internal/core/domain"
	"github.com/lorrc/repair-service-backend/internal/core/ports"
)

// replayFetchTimeout bounds how long one replay may hold a store connection.
const replayFetchTimeout = 10 * time.Second

// ReplayBridge delivers persisted, undelivered notifications to a connection
// once its peer authenticates. The batch goes to that single connection only,
// never broadcast.
type ReplayBridge struct {
	store  ports.NotificationRepository
	logger *slog.Logger
}

// NewReplayBridge creates a bridge over the persisted notification store.
func NewReplayBridge(store ports.NotificationRepository, logger *slog.Logger) *ReplayBridge {
	return &ReplayBridge{
		store:  store,
		logger: logger.With("component", "notification_replay"),
	}
}

// notificationsInitialPayload is the wire payload of notifications-initial.
type notificationsInitialPayload struct {
	Notifications []domain.NotificationSnapshot `json:"notifications"`
	Count         int                           `json:"count"`
}

// Deliver fetches the unread notifications targeted at the client's identity
// or role and queues them as one batch event. A fetch failure degrades to an
// empty batch; it never blocks or fails the connection.
func (b *ReplayBridge) Deliver(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), replayFetchTimeout)
	defer cancel()

	notifications, err := b.store.ListUnread(ctx, client.session.IdentityID, client.session.Role)
	if err != nil {
		b.logger.Error("replay fetch failed, delivering empty batch",
			"identity_id", client.session.IdentityID,
			"error", err,
		)
		notifications = nil
	}

	payload := notificationsInitialPayload{
		Notifications: domain.NewNotificationBatch(notifications),
		Count:         len(notifications),
	}

	client.enqueue(domain.NewEnvelope(domain.EventNotificationsInitial, domain.SystemInitiator(), payload, nil))

	b.logger.Debug("notification replay delivered",
		"identity_id", client.session.IdentityID,
		"count", payload.Count,
	)
}
