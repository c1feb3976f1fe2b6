package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

// memoryBus is an in-process Bus with exact subject matching
type memoryBus struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]map[int]func([]byte)
	nextID     int
	replies    map[string][]byte
	publishErr error

	// subscribeDelay widens the window between concurrent Subscribe calls
	subscribeDelay time.Duration
}

func newMemoryBus() *memoryBus {
	return &memoryBus{
		handlers: make(map[string]map[int]func([]byte)),
		replies:  make(map[string][]byte),
	}
}

func (b *memoryBus) Publish(subject string, data []byte) error {
	b.mu.Lock()
	if b.publishErr != nil {
		b.mu.Unlock()
		return b.publishErr
	}
	b.published = append(b.published, published{subject: subject, data: data})
	handlers := make([]func([]byte), 0, len(b.handlers[subject]))
	for _, h := range b.handlers[subject] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

type memorySub struct {
	bus     *memoryBus
	subject string
	id      int
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.handlers[s.subject][s.id]; !ok {
		return errors.New("invalid subscription")
	}
	delete(s.bus.handlers[s.subject], s.id)
	return nil
}

func (b *memoryBus) Subscribe(subject string, cb func(data []byte)) (Subscription, error) {
	if b.subscribeDelay > 0 {
		time.Sleep(b.subscribeDelay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[subject] == nil {
		b.handlers[subject] = make(map[int]func([]byte))
	}
	id := b.nextID
	b.nextID++
	b.handlers[subject][id] = cb
	return &memorySub{bus: b, subject: subject, id: id}, nil
}

func (b *memoryBus) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	reply, ok := b.replies[subject]
	if !ok {
		return nil, errors.New("no responders")
	}
	return reply, nil
}

func (b *memoryBus) reply(subject string, v interface{}) {
	data, _ := json.Marshal(v)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[subject] = data
}

func (b *memoryBus) subscribers(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[subject])
}

// on returns every payload published to subject
func (b *memoryBus) on(subject string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [][]byte
	for _, p := range b.published {
		if p.subject == subject {
			out = append(out, p.data)
		}
	}
	return out
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}
