package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

type shown struct {
	title, body string
	data        map[string]string
}

type recordingDesktop struct {
	mu      sync.Mutex
	shown   []shown
	actions []WindowAction
	showErr error
}

func (d *recordingDesktop) ShowNotification(title, body string, data map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.showErr != nil {
		return d.showErr
	}
	d.shown = append(d.shown, shown{title: title, body: body, data: data})
	return nil
}

func (d *recordingDesktop) OnNotificationClick(cb ClickHandler) (func(), error) {
	return func() {}, nil
}

func (d *recordingDesktop) SendWindowControl(action WindowAction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, action)
	return nil
}

func (d *recordingDesktop) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shown)
}

type recordingFeed struct {
	mu       sync.Mutex
	events   []model.NotificationEvent
	attempts int
	pushErr  error
}

func (f *recordingFeed) Push(ctx context.Context, event model.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.pushErr != nil {
		return f.pushErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *recordingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestNormalizeDefaults(t *testing.T) {
	ev := Normalize("u1", Payload{MessageID: "m1"})
	assert.Equal(t, "m1", ev.ID)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, model.DefaultNotificationTitle, ev.Title)
	assert.Equal(t, "", ev.Body)
	assert.Equal(t, model.DefaultNotificationIcon, ev.Icon)
	require.NotNil(t, ev.DeepLink)
	assert.Equal(t, "/", ev.DeepLink.Path)
	assert.Equal(t, model.SourceForegroundPush, ev.Source)
	assert.Empty(t, ev.ExternalURL)
}

func TestNormalizeDeepLinkPrecedence(t *testing.T) {
	tests := []struct {
		name string
		p    Payload
		want string
	}{
		{"data wins", Payload{Data: map[string]string{"deepLinkPath": "/tasks/7"}, Link: "/fallback"}, "/tasks/7"},
		{"link used when data missing", Payload{Link: "/meetings"}, "/meetings"},
		{"root otherwise", Payload{}, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize("u1", tt.p).DeepLink.Path)
		})
	}
}

func TestNormalizeCarriesContentAndIDs(t *testing.T) {
	ev := Normalize("u1", Payload{
		Notification: &PushContent{Title: "Task assigned", Body: "Pour slab", Icon: "/i.png"},
		Data: map[string]string{
			"projectId": "p1",
			"taskId":    "t1",
			"targetTab": "plan",
			"url":       "https://example.com/report",
		},
	})
	assert.Equal(t, "Task assigned", ev.Title)
	assert.Equal(t, "Pour slab", ev.Body)
	assert.Equal(t, "/i.png", ev.Icon)
	assert.Equal(t, "p1", ev.DeepLink.ProjectID)
	assert.Equal(t, "t1", ev.DeepLink.TaskID)
	assert.Equal(t, "plan", ev.DeepLink.TargetTab)
	assert.Equal(t, "https://example.com/report", ev.ExternalURL)
}

func TestIsExternalURL(t *testing.T) {
	assert.True(t, IsExternalURL("https://example.com"))
	assert.True(t, IsExternalURL("http://example.com/x"))
	assert.False(t, IsExternalURL("/projects/1"))
	assert.False(t, IsExternalURL("mailto:a@b.c"))
	assert.False(t, IsExternalURL(""))
}

func TestBridgeNativeOnlyWhenGranted(t *testing.T) {
	desktop := &recordingDesktop{}
	feed := &recordingFeed{}
	perm := NewPermission(nil)
	bridge := NewBridge(feed, desktop, perm, BridgeOptions{})

	bridge.Dispatch(context.Background(), Normalize("u1", Payload{MessageID: "m1"}))
	assert.Equal(t, 0, desktop.count())
	assert.Equal(t, 1, feed.count())

	bridge = NewBridge(feed, desktop, NewGrantedPermission(), BridgeOptions{})
	bridge.Dispatch(context.Background(), Normalize("u1", Payload{MessageID: "m2"}))
	assert.Equal(t, 1, desktop.count())
	assert.Equal(t, 2, feed.count())
}

func TestBridgeAllowsDuplicatesByDefault(t *testing.T) {
	desktop := &recordingDesktop{}
	feed := &recordingFeed{}
	bridge := NewBridge(feed, desktop, NewGrantedPermission(), BridgeOptions{})

	ev := Normalize("u1", Payload{MessageID: "m1"})
	bridge.Dispatch(context.Background(), ev)
	bridge.Dispatch(context.Background(), ev)
	assert.Equal(t, 2, desktop.count())
	assert.Equal(t, 2, feed.count())
}

func TestBridgeSuppressDuplicates(t *testing.T) {
	desktop := &recordingDesktop{}
	feed := &recordingFeed{}
	bridge := NewBridge(feed, desktop, NewGrantedPermission(), BridgeOptions{SuppressDuplicates: true, SeenSetSize: 4})

	ev := Normalize("u1", Payload{MessageID: "m1"})
	bridge.Dispatch(context.Background(), ev)
	bridge.Dispatch(context.Background(), ev)
	assert.Equal(t, 1, desktop.count())
	assert.Equal(t, 0, feed.count(), "native display replaces the in-app copy")

	desktop.showErr = errors.New("shell closed")
	bridge.Dispatch(context.Background(), Normalize("u1", Payload{MessageID: "m2"}))
	assert.Equal(t, 1, feed.count(), "falls back to the feed when native display fails")
}

func TestBridgeRetriesMessageThatReachedNoChannel(t *testing.T) {
	desktop := &recordingDesktop{showErr: errors.New("shell closed")}
	feed := &recordingFeed{pushErr: errors.New("bus down")}
	bridge := NewBridge(feed, desktop, NewGrantedPermission(), BridgeOptions{SuppressDuplicates: true})

	ev := Normalize("u1", Payload{MessageID: "m1"})
	bridge.Dispatch(context.Background(), ev)
	assert.Equal(t, 1, feed.attempts)

	// redelivery after both channels failed is not a duplicate
	feed.pushErr = nil
	bridge.Dispatch(context.Background(), ev)
	assert.Equal(t, 2, feed.attempts)
	assert.Equal(t, 1, feed.count())

	// once delivered, it is
	bridge.Dispatch(context.Background(), ev)
	assert.Equal(t, 2, feed.attempts)
}

func TestBridgeWithoutDesktop(t *testing.T) {
	feed := &recordingFeed{}
	bridge := NewBridge(feed, nil, NewGrantedPermission(), BridgeOptions{})
	bridge.Dispatch(context.Background(), Normalize("u1", Payload{}))
	assert.Equal(t, 1, feed.count())
}

func TestNativeDataCarriesClickTarget(t *testing.T) {
	ev := Normalize("u1", Payload{Data: map[string]string{"deepLinkPath": "/tasks/1", "url": "https://x.test"}})
	data := nativeData(ev)
	assert.Equal(t, "/tasks/1", data["deepLinkPath"])
	assert.Equal(t, "https://x.test", data["url"])
	assert.Equal(t, model.DefaultNotificationIcon, data["icon"])
}

func TestSeenSet(t *testing.T) {
	s := NewSeenSet(2)
	assert.True(t, s.FirstSight("a"))
	assert.False(t, s.FirstSight("a"))
	assert.True(t, s.FirstSight("b"))
	assert.True(t, s.FirstSight("c"))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.FirstSight("a"), "oldest entry was evicted")
	assert.True(t, s.FirstSight(""))
	assert.True(t, s.FirstSight(""))

	s.Forget("a")
	assert.True(t, s.FirstSight("a"))
}

func TestForegroundSourceDispatchesPushes(t *testing.T) {
	bus := newMemoryBus()
	feed := &recordingFeed{}
	bridge := NewBridge(feed, nil, nil, BridgeOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, err := NewForegroundSource(bus, bridge).Start(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, bus.Publish("push.u1", []byte(`{"messageId":"m1","notification":{"title":"Hello"}}`)))
	require.NoError(t, bus.Publish("push.u1", []byte(`{broken`)))
	require.NoError(t, bus.Publish("push.u2", []byte(`{"messageId":"other"}`)))

	require.Equal(t, 1, feed.count())
	assert.Equal(t, "Hello", feed.events[0].Title)

	stop()
	stop()
	assert.Equal(t, 0, bus.subscribers("push.u1"))
}

func TestBusFeedPublishesToUserSubject(t *testing.T) {
	bus := newMemoryBus()
	feed := NewBusFeed(bus)

	require.NoError(t, feed.Push(context.Background(), Normalize("u1", Payload{MessageID: "m1"})))
	assert.Error(t, feed.Push(context.Background(), Normalize("", Payload{})))

	msgs := bus.on("app.u1.feed")
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", decode[model.NotificationEvent](t, msgs[0]).ID)
}
