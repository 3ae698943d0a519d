package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/obe-hub/gamification-core/internal/domain/notification"
)

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Insert stores a notification.
func (r *NotificationRepository) Insert(ctx context.Context, n notification.Notification) error {
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal notification metadata: %w", err)
	}

	query := `
		INSERT INTO notifications (id, user_id, type, title, message, metadata, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.conn.Exec(ctx, query, n.ID, n.UserID, string(n.Type), n.Title, n.Message, raw, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id::text, user_id, type, title, message, metadata, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.conn.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]notification.Notification, 0)
	for rows.Next() {
		var n notification.Notification
		var typ string
		var raw []byte
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &raw, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = notification.Type(typ)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &n.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification metadata: %w", err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
