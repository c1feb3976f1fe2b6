package notify

import (
	"context"
	"strings"

	"github.com/teresa-solution/tenant-branding-service/internal/apperr"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// NotificationStore persists in-app notification records
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
}

// Notifier records a notification for the in-app list and pushes it to the
// recipient's devices.
type Notifier struct {
	store  NotificationStore
	sender *Sender
}

// NewNotifier creates a Notifier. store may be nil, in which case nothing
// is recorded and the request is only pushed.
func NewNotifier(store NotificationStore, sender *Sender) *Notifier {
	return &Notifier{store: store, sender: sender}
}

// Notify returns the stored notification ID, or "" when nothing was stored.
// Only the record write can fail; push delivery is best-effort.
func (n *Notifier) Notify(ctx context.Context, req SendRequest) (string, error) {
	if strings.TrimSpace(req.RecipientID) == "" {
		return "", apperr.Invalid("recipient_id", "recipient is required")
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Body) == "" {
		return "", apperr.Invalid("title", "title or body is required")
	}
	req = req.withDefaults()

	var id string
	if n.store != nil {
		record := &model.Notification{
			UserID: req.RecipientID,
			Title:  req.Title,
			Body:   req.Body,
			DeepLink: model.DeepLink{
				Path:      req.DeepLinkPath,
				ProjectID: req.ProjectID,
				TaskID:    req.TaskID,
				MeetingID: req.MeetingID,
				TargetTab: req.TargetTab,
			},
		}
		if err := n.store.Create(ctx, record); err != nil {
			return "", &apperr.PersistenceError{Op: "notification", Err: err}
		}
		id = record.ID
	}

	if n.sender != nil {
		n.sender.Send(ctx, req)
	}
	return id, nil
}
