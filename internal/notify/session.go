package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Session wires one user's notification sources to one desktop device
type Session struct {
	UserID     string
	DeviceID   string
	Permission *Permission

	cancel context.CancelFunc
	stops  []func()
}

func (s *Session) close() {
	for i := len(s.stops) - 1; i >= 0; i-- {
		s.stops[i]()
	}
	s.cancel()
}

// SessionManager opens and closes desktop notification sessions. A device
// holds at most one session; opening a new one closes the previous.
type SessionManager struct {
	bus      Bus
	feed     *ChangeFeed
	tokens   TokenStore
	opts     BridgeOptions
	timeout  time.Duration
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(bus Bus, feed *ChangeFeed, tokens TokenStore, opts BridgeOptions) *SessionManager {
	return &SessionManager{
		bus:      bus,
		feed:     feed,
		tokens:   tokens,
		opts:     opts,
		timeout:  10 * time.Second,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for userID on deviceID, replacing any session
// already open there. Permission and push token registration run in the
// background.
func (m *SessionManager) Open(userID, deviceID string) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	desktop := NewBusDesktop(m.bus, deviceID)
	permission := NewPermission(desktop.RequestPermission)
	session := &Session{
		UserID:     userID,
		DeviceID:   deviceID,
		Permission: permission,
		cancel:     cancel,
	}

	bridge := NewBridge(NewBusFeed(m.bus), desktop, permission, m.opts)
	router := NewClickRouter(NewBusNavigator(m.bus, deviceID))

	stopClicks, err := desktop.OnNotificationClick(router.Handle)
	if err != nil {
		session.close()
		return nil, err
	}
	session.stops = append(session.stops, stopClicks)

	stopPush, err := NewForegroundSource(m.bus, bridge).Start(ctx, userID)
	if err != nil {
		session.close()
		return nil, err
	}
	session.stops = append(session.stops, stopPush)

	if m.feed != nil {
		unsubscribe, err := m.feed.Subscribe(ctx, userID, desktop, nil)
		if err != nil {
			session.close()
			return nil, err
		}
		session.stops = append(session.stops, unsubscribe)
	}

	if m.tokens != nil {
		registrar := NewTokenRegistrar(permission, NewBusTokenSource(m.bus, deviceID), m.tokens)
		go func() {
			rctx, rcancel := context.WithTimeout(ctx, m.timeout)
			defer rcancel()
			if _, err := registrar.Register(rctx, userID); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Str("device_id", deviceID).Msg("Push registration failed")
			}
		}()
	}

	m.mu.Lock()
	previous := m.sessions[deviceID]
	m.sessions[deviceID] = session
	m.mu.Unlock()
	if previous != nil {
		previous.close()
		log.Info().Str("user_id", previous.UserID).Str("device_id", deviceID).Msg("Desktop session replaced")
	}

	log.Info().Str("user_id", userID).Str("device_id", deviceID).Msg("Desktop session opened")
	return session, nil
}

// Get returns the open session for deviceID, or nil
func (m *SessionManager) Get(deviceID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[deviceID]
}

// Close ends the session on deviceID and reports whether one was open
func (m *SessionManager) Close(deviceID string) bool {
	m.mu.Lock()
	session, ok := m.sessions[deviceID]
	delete(m.sessions, deviceID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	session.close()
	log.Info().Str("user_id", session.UserID).Str("device_id", deviceID).Msg("Desktop session closed")
	return true
}

// CloseAll ends every open session
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	devices := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		devices = append(devices, id)
	}
	m.mu.Unlock()
	for _, id := range devices {
		m.Close(id)
	}
}
