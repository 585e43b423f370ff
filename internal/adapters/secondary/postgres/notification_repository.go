package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	apperrors "github.com/lorrc/repair-service-backend/internal/core/errors"
	"github.com/lorrc/repair-service-backend/internal/core/ports"
)

// NotificationRepository handles database operations for persisted
// notifications.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// Ensure implementation matches the interface.
var _ ports.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(pool *pgxpool.Pool) ports.NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// scanNotification reads one notification row in column order.
func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n             domain.Notification
		recipientID   pgtype.UUID
		recipientRole pgtype.Text
		jobID         pgtype.Int8
		readAt        pgtype.Timestamptz
		createdAt     pgtype.Timestamptz
	)

	err := row.Scan(&n.ID, &recipientID, &recipientRole, &n.Kind, &n.Title, &n.Body, &jobID, &readAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if recipientID.Valid {
		id := uuid.UUID(recipientID.Bytes)
		n.RecipientID = &id
	}
	if recipientRole.Valid {
		role := domain.Role(recipientRole.String)
		n.RecipientRole = &role
	}
	if jobID.Valid {
		n.JobID = &jobID.Int64
	}
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	n.CreatedAt = createdAt.Time

	return &n, nil
}

const notificationColumns = `id, recipient_id, recipient_role, kind, title, body, job_id, read_at, created_at`

// Create persists a new notification targeted at an identity or a role.
func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	query := `
		INSERT INTO notifications (recipient_id, recipient_role, kind, title, body, job_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + notificationColumns

	var recipientID pgtype.UUID
	if notification.RecipientID != nil {
		recipientID = pgtype.UUID{Bytes: *notification.RecipientID, Valid: true}
	}
	var recipientRole pgtype.Text
	if notification.RecipientRole != nil {
		recipientRole = pgtype.Text{String: notification.RecipientRole.String(), Valid: true}
	}
	var jobID pgtype.Int8
	if notification.JobID != nil {
		jobID = pgtype.Int8{Int64: *notification.JobID, Valid: true}
	}

	row := r.pool.QueryRow(ctx, query,
		recipientID,
		recipientRole,
		notification.Kind,
		notification.Title,
		notification.Body,
		jobID,
	)
	return scanNotification(row)
}

// ListUnread returns every unread notification targeted at the identity
// directly or at its role, newest first.
func (r *NotificationRepository) ListUnread(ctx context.Context, identityID uuid.UUID, role domain.Role) ([]*domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE read_at IS NULL
		  AND (recipient_id = $1 OR recipient_role = $2)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, pgtype.UUID{Bytes: identityID, Valid: true}, role.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// ListForIdentity returns notifications visible to the identity, newest
// first, limited.
func (r *NotificationRepository) ListForIdentity(ctx context.Context, identityID uuid.UUID, role domain.Role, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1 OR recipient_role = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, pgtype.UUID{Bytes: identityID, Valid: true}, role.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// MarkRead marks a single notification read. Marking an already-read
// notification is a no-op that still succeeds. A role-targeted row is only
// matched when the caller holds the targeted role.
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64, identityID uuid.UUID, role domain.Role) error {
	query := `
		UPDATE notifications
		SET read_at = COALESCE(read_at, now())
		WHERE id = $1
		  AND (recipient_id = $2 OR recipient_role = $3)
	`

	tag, err := r.pool.Exec(ctx, query, id, pgtype.UUID{Bytes: identityID, Valid: true}, role.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification visible to the identity as
// read and returns how many rows changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, identityID uuid.UUID, role domain.Role) (int64, error) {
	query := `
		UPDATE notifications
		SET read_at = now()
		WHERE read_at IS NULL
		  AND (recipient_id = $1 OR recipient_role = $2)
	`

	tag, err := r.pool.Exec(ctx, query, pgtype.UUID{Bytes: identityID, Valid: true}, role.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectNotifications(rows pgx.Rows) ([]*domain.Notification, error) {
	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}
