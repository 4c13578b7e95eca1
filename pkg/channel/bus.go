// Package channel delivers typed, topic-addressed push messages from the
// server to in-process subscribers.
package channel

import (
	"sync"

	"github.com/google/uuid"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/sirupsen/logrus"
)

// Handler receives the raw decoded JSON payload of a message.
type Handler func(payload any)

// Subscription is the token returned by Subscribe. Unsubscribe is safe to
// call more than once.
type Subscription interface {
	Topic() models.Topic
	Unsubscribe()
}

// Publisher accepts messages from a transport source.
type Publisher interface {
	Publish(topic models.Topic, payload any)
}

// Bus is a publish/subscribe hub keyed by topic.
type Bus interface {
	Publisher
	Subscribe(topic models.Topic, h Handler) Subscription
}

// MemoryBus is an in-process Bus. Handlers run on the publisher's
// goroutine in subscription order, so per-topic delivery order follows the
// order of Publish calls.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[models.Topic][]*subscription
	logger *logrus.Entry
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus(logger *logrus.Entry) *MemoryBus {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MemoryBus{
		subs:   make(map[models.Topic][]*subscription),
		logger: logger,
	}
}

type subscription struct {
	id      string
	topic   models.Topic
	handler Handler
	bus     *MemoryBus
	once    sync.Once
}

func (s *subscription) Topic() models.Topic { return s.topic }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Subscribe registers h for topic.
func (b *MemoryBus) Subscribe(topic models.Topic, h Handler) Subscription {
	sub := &subscription{
		id:      uuid.NewString(),
		topic:   topic,
		handler: h,
		bus:     b,
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{"topic": topic, "subscription": sub.id}).Debug("Subscribed")
	return sub
}

// Publish delivers payload to every current subscriber of topic.
func (b *MemoryBus) Publish(topic models.Topic, payload any) {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.WithField("topic", topic).Trace("No subscribers for message")
		return
	}
	for _, sub := range subs {
		sub.handler(payload)
	}
}

// Subscribers returns the number of live subscriptions for topic.
func (b *MemoryBus) Subscribers(topic models.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *MemoryBus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.topic]
	for i, s := range list {
		if s == sub {
			b.subs[sub.topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.topic]) == 0 {
		delete(b.subs, sub.topic)
	}
	b.logger.WithFields(logrus.Fields{"topic": sub.topic, "subscription": sub.id}).Debug("Unsubscribed")
}
