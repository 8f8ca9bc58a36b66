package bus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360studio/devteam/metrics"
)

// Callback receives a published message. Callbacks run synchronously in
// publish order; a callback that panics is isolated and logged, it never
// prevents delivery to the remaining subscribers.
type Callback func(*Message)

// subscription pairs a callback with a stable identity so the same
// function value can be unsubscribed later.
type subscription struct {
	id int64
	fn Callback
}

// Bus is a topic-based publish/subscribe hub with an append-only,
// time-ordered message history.
//
// The internal mutex protects the history and the subscriber table only.
// Callbacks are invoked outside the lock so a subscriber may itself
// publish without deadlocking.
type Bus struct {
	mu         sync.Mutex
	history    []*Message
	maxHistory int
	subs       map[string][]subscription
	nextSubID  int64
	logger     *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxHistory caps the retained history at n messages.
// Oldest entries are dropped first. Zero means unbounded.
func WithMaxHistory(n int) Option {
	return func(b *Bus) {
		b.maxHistory = n
	}
}

// WithLogger sets the logger used for subscriber failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New creates an empty message bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[string][]subscription),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription identifies a registered callback for later removal.
type Subscription struct {
	topic string
	id    int64
}

// Subscribe registers a callback for a topic and returns a handle for
// Unsubscribe. Callbacks on the same topic run in registration order.
func (b *Bus) Subscribe(topic string, fn Callback) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	b.subs[topic] = append(b.subs[topic], subscription{id: b.nextSubID, fn: fn})
	return Subscription{topic: topic, id: b.nextSubID}
}

// Unsubscribe removes a previously registered callback. Removing the last
// callback for a topic removes the topic entry entirely.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.topic]
	for i, s := range list {
		if s.id == sub.id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.subs, sub.topic)
	} else {
		b.subs[sub.topic] = list
	}
}

// Publish appends the message to history and delivers it to every
// subscriber of each matching topic. Delivery is synchronous; subscriber
// panics are recovered and logged. Publishing to a topic with no
// subscribers is a no-op beyond the history append.
func (b *Bus) Publish(msg *Message) {
	if msg == nil {
		return
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if b.maxHistory > 0 && len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}

	// Snapshot matching callbacks while holding the lock, invoke after
	// releasing it so a callback can publish without reentrancy deadlock.
	var targets []subscription
	for _, topic := range msg.topics() {
		targets = append(targets, b.subs[topic]...)
	}
	b.mu.Unlock()

	metrics.MessagesPublished.WithLabelValues(string(msg.Type)).Inc()

	for _, sub := range targets {
		b.deliver(sub, msg)
	}
}

// deliver invokes one callback, isolating panics.
func (b *Bus) deliver(sub subscription, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber panicked",
				"message_id", msg.ID,
				"message_type", msg.Type,
				"error", fmt.Sprintf("%v", r))
		}
	}()
	sub.fn(msg)
}

// HistoryFilter selects messages from the bus history.
// Zero-valued fields match everything.
type HistoryFilter struct {
	// Sender matches messages published by this sender.
	Sender string

	// Receiver matches messages addressed to this receiver.
	Receiver string

	// Type matches messages of this type.
	Type MessageType

	// Limit returns only the most recent N matching messages.
	Limit int
}

// History returns a chronologically ordered view of retained messages
// matching the filter.
func (b *Bus) History(filter HistoryFilter) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	matched := make([]*Message, 0, len(b.history))
	for _, msg := range b.history {
		if filter.Sender != "" && msg.Sender != filter.Sender {
			continue
		}
		if filter.Receiver != "" && msg.Receiver != filter.Receiver {
			continue
		}
		if filter.Type != "" && msg.Type != filter.Type {
			continue
		}
		matched = append(matched, msg)
	}

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}
	return matched
}

// HistoryLen returns the number of retained messages.
func (b *Bus) HistoryLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}
