package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// NotificationListener streams newly added unread notifications
type NotificationListener interface {
	Listen(ctx context.Context, fn func(n *model.Notification)) error
}

// Unsubscribe ends a change-feed subscription. It is safe to call more than once.
type Unsubscribe func()

type feedSubscriber struct {
	desktop DesktopBridge
	onAdded func(model.NotificationEvent)
	active  atomic.Bool
}

// ChangeFeed shares one database listener among per-user subscribers
type ChangeFeed struct {
	listener NotificationListener
	retry    time.Duration

	mu     sync.Mutex
	subs   map[string]map[int]*feedSubscriber
	nextID int
}

func NewChangeFeed(listener NotificationListener) *ChangeFeed {
	return &ChangeFeed{
		listener: listener,
		retry:    time.Second,
		subs:     make(map[string]map[int]*feedSubscriber),
	}
}

// Run keeps the database listener alive until ctx is done
func (f *ChangeFeed) Run(ctx context.Context) error {
	for {
		err := f.listener.Listen(ctx, f.dispatch)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Dur("retry_in", f.retry).Msg("Notification change feed stopped")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.retry):
		}
	}
}

// Subscribe forwards newly added unread notifications for userID to the
// desktop bridge, then to onAdded when set. Without a desktop bridge it is a
// no-op and returns a no-op Unsubscribe.
func (f *ChangeFeed) Subscribe(ctx context.Context, userID string, desktop DesktopBridge, onAdded func(model.NotificationEvent)) (Unsubscribe, error) {
	if desktop == nil {
		log.Debug().Str("user_id", userID).Err(ErrCapabilityUnavailable).Msg("Change feed not started")
		return func() {}, nil
	}

	sub := &feedSubscriber{desktop: desktop, onAdded: onAdded}
	sub.active.Store(true)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.subs[userID] == nil {
		f.subs[userID] = make(map[int]*feedSubscriber)
	}
	f.subs[userID][id] = sub
	f.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			sub.active.Store(false)
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[userID], id)
			if len(f.subs[userID]) == 0 {
				delete(f.subs, userID)
			}
		})
	}
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return unsubscribe, nil
}

// Subscribers returns the number of live subscriptions for userID
func (f *ChangeFeed) Subscribers(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[userID])
}

func (f *ChangeFeed) dispatch(n *model.Notification) {
	f.mu.Lock()
	targets := make([]*feedSubscriber, 0, len(f.subs[n.UserID]))
	for _, sub := range f.subs[n.UserID] {
		targets = append(targets, sub)
	}
	f.mu.Unlock()

	event := n.Event()
	for _, sub := range targets {
		if !sub.active.Load() {
			continue
		}
		if err := sub.desktop.ShowNotification(event.Title, event.Body, nativeData(event)); err != nil {
			log.Warn().Err(err).Str("notification_id", n.ID).Msg("Failed to forward notification to desktop")
		}
		if sub.onAdded != nil {
			sub.onAdded(event)
		}
	}
}
