// Package eventbus implements the in-process publish/subscribe broadcast
// that bridges the ConversionWorker (and other producers) to per-client SSE
// streams.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
)

const subscriberBufferSize = 256

// Message is one published event.
type Message struct {
	Kind    string
	Payload interface{}
}

// Bus fans every Publish out to all currently-subscribed channels. A
// subscriber whose buffer fills is dropped rather than allowed to block the
// publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]chan Message
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string]chan Message)}
}

// Subscribe registers a new subscriber and returns its id, a read-only
// channel of future messages, and a cancel func to unregister it.
func (b *Bus) Subscribe() (string, <-chan Message, func()) {
	id := uuid.NewString()
	ch := make(chan Message, subscriberBufferSize)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() { b.unsubscribe(id) }
	return id, ch, cancel
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish broadcasts msg to every current subscriber. It never blocks: a
// subscriber whose buffer is full is dropped instead (its channel is closed,
// signalling the SSE handler to end that connection; the client may
// reconnect).
func (b *Bus) Publish(kind string, payload interface{}) {
	msg := Message{Kind: kind, Payload: payload}

	b.mu.RLock()
	targets := make(map[string]chan Message, len(b.subs))
	for id, ch := range b.subs {
		targets[id] = ch
	}
	b.mu.RUnlock()

	for id, ch := range targets {
		select {
		case ch <- msg:
		default:
			b.unsubscribe(id)
		}
	}
}
