// Package notify bridges push messages, the notifications change-feed and
// desktop shells into one normalized notification stream.
package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subscription is a live subscription on a Bus
type Subscription interface {
	Unsubscribe() error
}

// Bus is the messaging surface the bridge runs on
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb func(data []byte)) (Subscription, error)
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// NATSBus adapts a NATS connection to Bus
type NATSBus struct {
	nc *nats.Conn
}

func NewNATSBus(nc *nats.Conn) *NATSBus {
	return &NATSBus{nc: nc}
}

func (b *NATSBus) Publish(subject string, data []byte) error {
	return b.nc.Publish(subject, data)
}

func (b *NATSBus) Subscribe(subject string, cb func(data []byte)) (Subscription, error) {
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		cb(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

func (b *NATSBus) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := b.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}
	return msg.Data, nil
}

func pushSubject(userID string) string {
	return "push." + userID
}

func feedSubject(userID string) string {
	return "app." + userID + ".feed"
}

func navigateSubject(deviceID string) string {
	return "app." + deviceID + ".navigate"
}

func desktopSubject(deviceID, topic string) string {
	return "desktop." + deviceID + "." + topic
}
