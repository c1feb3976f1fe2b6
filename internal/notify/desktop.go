package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrCapabilityUnavailable marks a desktop-only operation invoked without a
// desktop bridge. Callers treat it as a silent no-op.
var ErrCapabilityUnavailable = errors.New("desktop capability unavailable")

// ErrInvalidWindowAction is returned for window actions other than minimize, maximize and close
var ErrInvalidWindowAction = errors.New("invalid window action")

type WindowAction string

const (
	WindowMinimize WindowAction = "minimize"
	WindowMaximize WindowAction = "maximize"
	WindowClose    WindowAction = "close"
)

func ParseWindowAction(s string) (WindowAction, error) {
	switch a := WindowAction(s); a {
	case WindowMinimize, WindowMaximize, WindowClose:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWindowAction, s)
}

// ClickHandler receives the data map of a clicked native notification
type ClickHandler func(data map[string]string)

// DesktopBridge is the native surface of a desktop shell
type DesktopBridge interface {
	ShowNotification(title, body string, data map[string]string) error
	OnNotificationClick(cb ClickHandler) (func(), error)
	SendWindowControl(action WindowAction) error
}

// ControlWindow validates action and forwards it to bridge. A nil bridge is a no-op.
func ControlWindow(bridge DesktopBridge, action string) error {
	a, err := ParseWindowAction(action)
	if err != nil {
		return err
	}
	if bridge == nil {
		log.Debug().Str("action", action).Err(ErrCapabilityUnavailable).Msg("Window control skipped")
		return nil
	}
	return bridge.SendWindowControl(a)
}

type desktopNotification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type windowControl struct {
	Action WindowAction `json:"action"`
}

// BusDesktop is a DesktopBridge for one device, reached over the bus
type BusDesktop struct {
	bus      Bus
	deviceID string
}

func NewBusDesktop(bus Bus, deviceID string) *BusDesktop {
	return &BusDesktop{bus: bus, deviceID: deviceID}
}

func (d *BusDesktop) DeviceID() string {
	return d.deviceID
}

func (d *BusDesktop) ShowNotification(title, body string, data map[string]string) error {
	payload, err := json.Marshal(desktopNotification{Title: title, Body: body, Data: data})
	if err != nil {
		return err
	}
	return d.bus.Publish(desktopSubject(d.deviceID, "notification"), payload)
}

// OnNotificationClick subscribes cb to clicks on this device. The returned
// function unsubscribes and may be called more than once.
func (d *BusDesktop) OnNotificationClick(cb ClickHandler) (func(), error) {
	sub, err := d.bus.Subscribe(desktopSubject(d.deviceID, "click"), func(raw []byte) {
		var data map[string]string
		if err := json.Unmarshal(raw, &data); err != nil {
			log.Warn().Err(err).Str("device_id", d.deviceID).Msg("Malformed notification click")
			return
		}
		cb(data)
	})
	if err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				log.Warn().Err(err).Str("device_id", d.deviceID).Msg("Failed to unsubscribe click handler")
			}
		})
	}, nil
}

func (d *BusDesktop) SendWindowControl(action WindowAction) error {
	if _, err := ParseWindowAction(string(action)); err != nil {
		return err
	}
	payload, err := json.Marshal(windowControl{Action: action})
	if err != nil {
		return err
	}
	return d.bus.Publish(desktopSubject(d.deviceID, "window"), payload)
}

// RequestPermission asks the shell whether native notifications may be shown
func (d *BusDesktop) RequestPermission(ctx context.Context) (bool, error) {
	resp, err := d.bus.Request(ctx, desktopSubject(d.deviceID, "permission"), nil)
	if err != nil {
		return false, err
	}
	var answer struct {
		Permission string `json:"permission"`
	}
	if err := json.Unmarshal(resp, &answer); err != nil {
		return false, fmt.Errorf("decode permission answer: %w", err)
	}
	return answer.Permission == "granted", nil
}
