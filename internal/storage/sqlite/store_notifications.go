package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/emberline/saga/internal/storage"
)

// EnqueueNotification inserts one outbox record.
func (s *Store) EnqueueNotification(ctx context.Context, notification storage.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(notification.ID) == "" {
		return fmt.Errorf("notification id is required")
	}
	if strings.TrimSpace(notification.Kind) == "" {
		return fmt.Errorf("notification kind is required")
	}

	var sentAt sql.NullInt64
	if notification.SentAt != nil {
		sentAt = sql.NullInt64{Int64: toMillis(*notification.SentAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO notifications (id, run_id, user_id, kind, body, created_at, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		notification.ID,
		notification.RunID,
		notification.UserID,
		notification.Kind,
		notification.Body,
		toMillis(notification.CreatedAt),
		sentAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// ListPendingNotifications returns unsent records, oldest first.
func (s *Store) ListPendingNotifications(ctx context.Context, limit int) ([]storage.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, run_id, user_id, kind, body, created_at, sent_at
		   FROM notifications
		  WHERE sent_at IS NULL
		  ORDER BY created_at ASC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	defer rows.Close()

	var notifications []storage.Notification
	for rows.Next() {
		var notification storage.Notification
		var createdAt int64
		var sentAt sql.NullInt64
		if err := rows.Scan(
			&notification.ID,
			&notification.RunID,
			&notification.UserID,
			&notification.Kind,
			&notification.Body,
			&createdAt,
			&sentAt,
		); err != nil {
			return nil, fmt.Errorf("list pending notifications: %w", err)
		}
		notification.CreatedAt = fromMillis(createdAt)
		if sentAt.Valid {
			at := fromMillis(sentAt.Int64)
			notification.SentAt = &at
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationSent stamps one outbox record as delivered.
func (s *Store) MarkNotificationSent(ctx context.Context, id string, sentAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("notification id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE notifications SET sent_at = ? WHERE id = ?`,
		toMillis(sentAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
