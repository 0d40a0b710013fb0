// Package pubsub is the in-process topic fan-out used by the hub. Publish
// is fire-and-forget: each subscriber decides what to do when it cannot
// accept a payload.
package pubsub

import "sync"

// Subscriber receives published payloads.
type Subscriber interface {
	// Deliver enqueues payload without blocking. It reports false when the
	// payload was dropped.
	Deliver(payload []byte) bool
}

// Broker maps topics to subscriber sets.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]map[Subscriber]struct{})}
}

// Subscribe adds sub to topic. Subscribing twice is a no-op.
func (b *Broker) Subscribe(sub Subscriber, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[Subscriber]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
}

// Unsubscribe removes sub from topic without affecting other subscribers.
func (b *Broker) Unsubscribe(sub Subscriber, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// UnsubscribeAll removes sub from every topic.
func (b *Broker) UnsubscribeAll(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.topics {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
}

// Publish hands payload to every current subscriber of topic and returns
// how many accepted it.
func (b *Broker) Publish(topic string, payload []byte) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for sub := range b.topics[topic] {
		if sub.Deliver(payload) {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns the number of subscribers on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
