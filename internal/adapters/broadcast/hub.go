// Package broadcast fans committed changes out to live subscribers.
//
// Delivery is best effort. A subscriber that cannot keep up is disconnected
// and must re-fetch full state when it reconnects; there is no replay.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/okian/taikai/pkg/logger"
	"github.com/okian/taikai/pkg/metrics"
)

const defaultPublishBuffer = 256

// Topic names a kind of change notification.
type Topic string

// Topics published by the service.
const (
	TeamsUpdated       Topic = "teamsUpdated"
	CosplayUpdated     Topic = "cosplayUpdated"
	EventScoresUpdated Topic = "eventScoresUpdated"
)

// Message is the wire envelope sent to subscribers.
type Message struct {
	Topic   Topic           `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscriber receives encoded messages.
type Subscriber interface {
	ID() string
	// Deliver hands over one frame without blocking. It returns false if
	// the subscriber cannot take it.
	Deliver(frame []byte) bool
	// Close releases the subscriber. It is called at most once by the hub.
	Close()
}

// Hub owns the subscriber set and serializes fan-out.
type Hub struct {
	publishBuffer int
	logger        logger.Logger

	publish    chan Message
	register   chan Subscriber
	unregister chan Subscriber
	done       chan struct{}
	startOnce  sync.Once

	subscribers map[string]Subscriber
	count       atomic.Int64
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		publishBuffer: defaultPublishBuffer,
		register:      make(chan Subscriber),
		unregister:    make(chan Subscriber),
		done:          make(chan struct{}),
		subscribers:   make(map[string]Subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("broadcast")
	}
	h.publish = make(chan Message, h.publishBuffer)
	return h
}

// Run delivers messages until ctx is cancelled, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for id, s := range h.subscribers {
			s.Close()
			delete(h.subscribers, id)
		}
		h.setCount()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			h.subscribers[s.ID()] = s
			h.setCount()
			h.logger.Debug(ctx, "subscriber registered", logger.String("subscriber", s.ID()))
		case s := <-h.unregister:
			h.drop(s.ID())
			h.logger.Debug(ctx, "subscriber unregistered", logger.String("subscriber", s.ID()))
		case msg := <-h.publish:
			h.fanOut(ctx, msg)
		}
	}
}

// Start runs the hub in a goroutine once.
func (h *Hub) Start(ctx context.Context) {
	h.startOnce.Do(func() { go h.Run(ctx) })
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) fanOut(ctx context.Context, msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(ctx, "encode message", logger.String("topic", string(msg.Topic)), logger.Error(err))
		return
	}
	for id, s := range h.subscribers {
		if s.Deliver(frame) {
			metrics.RecordBroadcast(string(msg.Topic))
			continue
		}
		metrics.RecordBroadcastDropped(string(msg.Topic))
		h.logger.Warn(ctx, "subscriber too slow, disconnecting", logger.String("subscriber", id))
		h.drop(id)
	}
}

func (h *Hub) drop(id string) {
	if s, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		s.Close()
		h.setCount()
	}
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.subscribers)))
	metrics.UpdateSubscribers(len(h.subscribers))
}

// Publish queues a notification without blocking. payload may be nil for a
// signal-only topic. Callers publish only after the change is committed.
func (h *Hub) Publish(topic Topic, payload any) error {
	msg := Message{Topic: topic}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrEncodeTopic, topic, err)
		}
		msg.Payload = raw
	}

	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.publish <- msg:
		return nil
	default:
		metrics.RecordBroadcastDropped(string(topic))
		return fmt.Errorf("%w: %s", ErrBufferFull, topic)
	}
}

// Register adds s to the subscriber set.
func (h *Hub) Register(s Subscriber) error {
	select {
	case h.register <- s:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes and closes s. Unknown subscribers are ignored.
func (h *Hub) Unregister(s Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Subscribers returns the current number of subscribers.
func (h *Hub) Subscribers() int {
	return int(h.count.Load())
}

// ChannelSubscriber is an in-process subscriber backed by a buffered channel.
type ChannelSubscriber struct {
	id     string
	frames chan []byte
	once   sync.Once
}

// NewChannelSubscriber returns a subscriber that buffers up to n frames.
func NewChannelSubscriber(n int) *ChannelSubscriber {
	if n <= 0 {
		n = 1
	}
	return &ChannelSubscriber{id: uuid.NewString(), frames: make(chan []byte, n)}
}

// ID identifies the subscriber within the hub.
func (c *ChannelSubscriber) ID() string { return c.id }

// Deliver buffers frame, reporting false when the buffer is full.
func (c *ChannelSubscriber) Deliver(frame []byte) bool {
	select {
	case c.frames <- frame:
		return true
	default:
		return false
	}
}

// Close closes the frame channel. It is safe to call more than once.
func (c *ChannelSubscriber) Close() {
	c.once.Do(func() { close(c.frames) })
}

// C yields frames until the hub closes the subscriber.
func (c *ChannelSubscriber) C() <-chan []byte { return c.frames }

// Decode parses a frame produced by the hub.
func Decode(frame []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(frame, &m)
	return m, err
}
