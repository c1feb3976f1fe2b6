package notify

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// PushContent is the display part of a push payload
type PushContent struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// Payload is an inbound push message
type Payload struct {
	MessageID    string            `json:"messageId,omitempty"`
	Notification *PushContent      `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Link         string            `json:"link,omitempty"`
}

// Normalize converts a push payload into a NotificationEvent for userID
func Normalize(userID string, p Payload) model.NotificationEvent {
	var content PushContent
	if p.Notification != nil {
		content = *p.Notification
	}
	if content.Title == "" {
		content.Title = model.DefaultNotificationTitle
	}
	if content.Icon == "" {
		content.Icon = model.DefaultNotificationIcon
	}

	link := model.DeepLinkFromData(p.Data)
	if link.Path == "" {
		link.Path = p.Link
	}
	if link.Path == "" {
		link.Path = model.RootDeepLinkPath
	}

	event := model.NotificationEvent{
		ID:       p.MessageID,
		UserID:   userID,
		Title:    content.Title,
		Body:     content.Body,
		Icon:     content.Icon,
		DeepLink: &link,
		Source:   model.SourceForegroundPush,
	}
	if IsExternalURL(p.Data["url"]) {
		event.ExternalURL = p.Data["url"]
	}
	return event
}

// IsExternalURL reports whether s is an absolute http or https URL
func IsExternalURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// MessageSource delivers raw push messages by subject
type MessageSource interface {
	Subscribe(subject string, cb func(data []byte)) (Subscription, error)
}

// ForegroundSource feeds push messages for an active user into a Bridge
type ForegroundSource struct {
	source MessageSource
	bridge *Bridge
}

func NewForegroundSource(source MessageSource, bridge *Bridge) *ForegroundSource {
	return &ForegroundSource{source: source, bridge: bridge}
}

// Start subscribes to userID's push subject. The subscription ends when ctx
// is done or the returned stop function is called.
func (s *ForegroundSource) Start(ctx context.Context, userID string) (func(), error) {
	sub, err := s.source.Subscribe(pushSubject(userID), func(raw []byte) {
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Malformed push payload")
			return
		}
		s.bridge.Dispatch(ctx, Normalize(userID, p))
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Failed to unsubscribe push source")
			}
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()

	log.Info().Str("user_id", userID).Msg("Foreground push source started")
	return stop, nil
}
