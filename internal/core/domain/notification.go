package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Notification is a persisted message targeted at a single identity or at
// every holder of a role. It lives in the external notification store and is
// replayed onto a live connection once that connection authenticates.
type Notification struct {
	ID            int64
	RecipientID   *uuid.UUID // exactly one of RecipientID / RecipientRole is set
	RecipientRole *Role
	Kind          string
	Title         string
	Body          string
	JobID         *int64
	ReadAt        *time.Time
	CreatedAt     time.Time
}

// IsRead reports whether the notification has been acknowledged.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// NotificationSnapshot matches the wire shape used in notifications-initial
// batches and the REST listing.
type NotificationSnapshot struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	JobID     *int64  `json:"jobId,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"createdAt"`
	ReadAt    *string `json:"readAt,omitempty"`
}

// NewNotificationSnapshot builds a snapshot from a stored notification.
func NewNotificationSnapshot(n *Notification) NotificationSnapshot {
	var readAt *string
	if n.ReadAt != nil {
		value := n.ReadAt.UTC().Format(time.RFC3339)
		readAt = &value
	}

	return NotificationSnapshot{
		ID:        strconv.FormatInt(n.ID, 10),
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      n.Body,
		JobID:     n.JobID,
		Read:      n.ReadAt != nil,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		ReadAt:    readAt,
	}
}

// NewNotificationBatch converts stored notifications into the batch payload
// delivered as one notifications-initial event.
func NewNotificationBatch(notifications []*Notification) []NotificationSnapshot {
	batch := make([]NotificationSnapshot, 0, len(notifications))
	for _, n := range notifications {
		batch = append(batch, NewNotificationSnapshot(n))
	}
	return batch
}
