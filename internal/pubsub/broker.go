package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const defaultChannelBufferSize = 100

type subscription[T any] struct {
	ch      chan Event[T]
	cancel  context.CancelFunc
	dropped int
}

// Broker fans events out to every subscriber in publish order. A subscriber
// whose buffer is full misses the event instead of blocking the publisher.
type Broker[T any] struct {
	subs     map[chan Event[T]]*subscription[T]
	mu       sync.RWMutex
	isClosed bool
	silent   bool
}

type BrokerOption func(*brokerOptions)

type brokerOptions struct {
	silent bool
}

// Silent disables the broker's own diagnostics. The log broker uses it so
// that a dropped log record does not produce another log record.
func Silent() BrokerOption {
	return func(o *brokerOptions) {
		o.silent = true
	}
}

func NewBroker[T any](opts ...BrokerOption) *Broker[T] {
	var o brokerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker[T]{
		subs:   make(map[chan Event[T]]*subscription[T]),
		silent: o.silent,
	}
}

func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	if b.isClosed {
		b.mu.Unlock()
		return
	}
	b.isClosed = true

	for ch, sub := range b.subs {
		sub.cancel()
		close(ch)
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	if !b.silent {
		slog.Debug("PubSub broker shut down", "type", fmt.Sprintf("%T", *new(T)))
	}
}

func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed {
		closedCh := make(chan Event[T])
		close(closedCh)
		return closedCh
	}

	subCtx, subCancel := context.WithCancel(ctx)
	sub := &subscription[T]{
		ch:     make(chan Event[T], defaultChannelBufferSize),
		cancel: subCancel,
	}
	b.subs[sub.ch] = sub

	go func() {
		<-subCtx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub.ch]; ok {
			close(sub.ch)
			delete(b.subs, sub.ch)
		}
	}()

	return sub.ch
}

// Publish delivers under the write lock, so every subscriber observes events
// in the same order.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.Lock()
	if b.isClosed {
		b.mu.Unlock()
		if !b.silent {
			slog.Warn("Attempted to publish on a closed pubsub broker", "type", eventType, "payload_type", fmt.Sprintf("%T", payload))
		}
		return
	}

	event := Event[T]{Type: eventType, Payload: payload}
	dropped := 0
	for ch, sub := range b.subs {
		select {
		case ch <- event:
		default:
			sub.dropped++
			dropped++
		}
	}
	b.mu.Unlock()

	if dropped > 0 && !b.silent {
		slog.Warn("PubSub: dropped event for slow subscribers", "type", eventType, "subscribers", dropped)
	}
}

func (b *Broker[T]) GetSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
