package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/monitoring"
)

// Feed receives normalized events for the in-app notification list
type Feed interface {
	Push(ctx context.Context, event model.NotificationEvent) error
}

// BusFeed publishes events to the user's in-app feed subject
type BusFeed struct {
	bus Bus
}

func NewBusFeed(bus Bus) *BusFeed {
	return &BusFeed{bus: bus}
}

func (f *BusFeed) Push(ctx context.Context, event model.NotificationEvent) error {
	if event.UserID == "" {
		return fmt.Errorf("feed event %s has no user", event.ID)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.bus.Publish(feedSubject(event.UserID), payload)
}

type BridgeOptions struct {
	// SuppressDuplicates shows each message ID once. When the native display
	// succeeds the in-app copy is skipped.
	SuppressDuplicates bool
	SeenSetSize        int
}

// Bridge fans a normalized event out to the in-app feed and, when a desktop
// bridge is present and permission is granted, to native display.
//
// Without SuppressDuplicates the same event can appear in both channels.
type Bridge struct {
	feed       Feed
	desktop    DesktopBridge
	permission *Permission
	seen       *SeenSet
}

// NewBridge creates a Bridge. desktop may be nil outside a desktop shell.
func NewBridge(feed Feed, desktop DesktopBridge, permission *Permission, opts BridgeOptions) *Bridge {
	b := &Bridge{
		feed:       feed,
		desktop:    desktop,
		permission: permission,
	}
	if opts.SuppressDuplicates {
		b.seen = NewSeenSet(opts.SeenSetSize)
	}
	return b
}

// Dispatch delivers event. Delivery failures are logged, never returned.
// With SuppressDuplicates, a message that reached no channel is forgotten so
// a redelivery is tried again.
func (b *Bridge) Dispatch(ctx context.Context, event model.NotificationEvent) {
	if b.seen != nil && !b.seen.FirstSight(event.ID) {
		log.Debug().Str("message_id", event.ID).Msg("Duplicate notification dropped")
		return
	}

	shown := b.showNative(event)
	if shown && b.seen != nil {
		return
	}
	pushed := b.pushFeed(ctx, event)
	if !shown && !pushed && b.seen != nil {
		b.seen.Forget(event.ID)
	}
}

func (b *Bridge) pushFeed(ctx context.Context, event model.NotificationEvent) bool {
	if b.feed == nil {
		return false
	}
	if err := b.feed.Push(ctx, event); err != nil {
		monitoring.NotificationsDelivered.WithLabelValues("feed", "failed").Inc()
		log.Warn().Err(err).Str("message_id", event.ID).Str("source", string(event.Source)).Msg("Failed to push notification to feed")
		return false
	}
	monitoring.NotificationsDelivered.WithLabelValues("feed", "success").Inc()
	return true
}

func (b *Bridge) showNative(event model.NotificationEvent) bool {
	if b.desktop == nil || b.permission == nil || !b.permission.Granted() {
		return false
	}
	if err := b.desktop.ShowNotification(event.Title, event.Body, nativeData(event)); err != nil {
		monitoring.NotificationsDelivered.WithLabelValues("native", "failed").Inc()
		log.Warn().Err(err).Str("message_id", event.ID).Msg("Failed to show native notification")
		return false
	}
	monitoring.NotificationsDelivered.WithLabelValues("native", "success").Inc()
	return true
}

// nativeData is the click payload attached to a native notification
func nativeData(event model.NotificationEvent) map[string]string {
	link := model.DeepLink{Path: model.RootDeepLinkPath}
	if event.DeepLink != nil {
		link = *event.DeepLink
	}
	data := link.Data()
	if event.ExternalURL != "" {
		data["url"] = event.ExternalURL
	}
	if event.Icon != "" {
		data["icon"] = event.Icon
	}
	return data
}
