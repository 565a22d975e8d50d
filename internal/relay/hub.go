// Package relay fans client events out to secondary consumers such as the
// websocket endpoint of the side server.
//
// Publishing never blocks: the stream reader goroutine calls the hub's sink,
// and a slow consumer must not stall frame reassembly. Messages that do not
// fit a consumer's buffer are dropped for that consumer.
package relay

import (
	"context"
	"sync/atomic"
)

// Hub distributes messages to subscribers
type Hub struct {
	broadcast  chan Message
	register   chan chan Message
	unregister chan chan Message
	clients    map[chan Message]struct{}
	clientBuf  int
	done       chan struct{}
	dropped    atomic.Uint64
}

// Option configures a Hub
type Option func(*Hub)

// WithBroadcastBuffer sets how many messages may queue before Run picks
// them up
func WithBroadcastBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan Message, size)
		}
	}
}

// WithClientBuffer sets the default per-subscriber buffer
func WithClientBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.clientBuf = size
		}
	}
}

// NewHub creates a hub; call Run to start it
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		broadcast:  make(chan Message, 1024),
		register:   make(chan chan Message),
		unregister: make(chan chan Message),
		clients:    make(map[chan Message]struct{}),
		clientBuf:  256,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers messages until ctx is done, then closes every subscriber
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for ch := range h.clients {
				close(ch)
			}
			h.clients = nil
			return
		case ch := <-h.register:
			h.clients[ch] = struct{}{}
		case ch := <-h.unregister:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case msg := <-h.broadcast:
			for ch := range h.clients {
				select {
				case ch <- msg:
				default:
					h.dropped.Add(1)
				}
			}
		}
	}
}

// Subscribe registers a consumer with the default buffer
func (h *Hub) Subscribe() (chan Message, bool) {
	return h.SubscribeWithBuffer(h.clientBuf)
}

// SubscribeWithBuffer registers a consumer. It returns false once the hub
// has stopped. The channel is closed by Unsubscribe or when the hub stops.
func (h *Hub) SubscribeWithBuffer(size int) (chan Message, bool) {
	if size <= 0 {
		size = h.clientBuf
	}
	ch := make(chan Message, size)

	select {
	case h.register <- ch:
		return ch, true
	case <-h.done:
		return nil, false
	}
}

// Unsubscribe removes a consumer and closes its channel
func (h *Hub) Unsubscribe(ch chan Message) {
	select {
	case h.unregister <- ch:
	case <-h.done:
	}
}

// Publish queues msg for delivery. It returns false if the message was
// dropped because the hub is stopped or its queue is full.
func (h *Hub) Publish(msg Message) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.broadcast <- msg:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// Dropped returns how many deliveries were skipped because a queue was full
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Done is closed when Run returns
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
