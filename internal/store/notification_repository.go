package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// NotificationChannel is the LISTEN/NOTIFY channel fed by the notifications insert trigger
const NotificationChannel = "notifications_added"

// NotificationRepository handles database operations for the notification feed
type NotificationRepository struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewNotificationRepository creates a NotificationRepository. Listen requires a
// pool; the CRUD methods only need db.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool, db: pool}
}

// Create inserts a notification. The insert trigger announces it on NotificationChannel.
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now()

	link, err := json.Marshal(n.DeepLink)
	if err != nil {
		return err
	}
	query := `INSERT INTO notifications (id, user_id, title, body, deep_link, read, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.db.Exec(ctx, query, n.ID, n.UserID, n.Title, n.Body, link, n.Read, n.CreatedAt)
	return err
}

// GetByID retrieves a notification by ID, returning nil, nil when it does not exist
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	query := `SELECT id, user_id, title, body, deep_link, read, created_at
              FROM notifications WHERE id = $1`
	n := &model.Notification{}
	var link []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &link, &n.Read, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(link) > 0 {
		if err := json.Unmarshal(link, &n.DeepLink); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// MarkRead marks a notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type notificationSignal struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// Listen blocks until ctx is done, calling fn for every newly inserted unread
// notification. It holds one pooled connection for its lifetime.
func (r *NotificationRepository) Listen(ctx context.Context, fn func(n *model.Notification)) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotificationChannel); err != nil {
		return fmt.Errorf("listen %s: %w", NotificationChannel, err)
	}

	for {
		pgn, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		var sig notificationSignal
		if err := json.Unmarshal([]byte(pgn.Payload), &sig); err != nil {
			log.Warn().Err(err).Str("payload", pgn.Payload).Msg("Malformed notification signal")
			continue
		}
		n, err := r.GetByID(ctx, sig.ID)
		if err != nil {
			log.Warn().Err(err).Str("notification_id", sig.ID).Msg("Failed to load signalled notification")
			continue
		}
		if n == nil || n.Read {
			continue
		}
		fn(n)
	}
}
