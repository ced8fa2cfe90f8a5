package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type subscription struct {
	filter  string
	handler Handler
}

// ChannelBroker is an in-process Broker for local development and
// tests. Delivery is synchronous within Publish.
type ChannelBroker struct {
	mu     sync.RWMutex
	subs   []subscription
	closed bool
}

func NewChannelBroker() *ChannelBroker {
	return &ChannelBroker{}
}

func (c *ChannelBroker) Publish(_ context.Context, topic string, _ byte, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("not connected to broker")
	}

	for _, sub := range c.subs {
		if topicMatches(sub.filter, topic) {
			sub.handler(topic, payload)
		}
	}
	return nil
}

func (c *ChannelBroker) Subscribe(topicFilter string, _ byte, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("not connected to broker")
	}
	c.subs = append(c.subs, subscription{filter: topicFilter, handler: handler})
	return nil
}

func (c *ChannelBroker) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subs = nil
	return nil
}

// topicMatches implements MQTT filter matching: "+" matches one level,
// "#" matches the remainder.
func topicMatches(filter, topic string) bool {
	fParts := strings.Split(filter, "/")
	tParts := strings.Split(topic, "/")

	for i, fp := range fParts {
		if fp == "#" {
			return true
		}
		if i >= len(tParts) {
			return false
		}
		if fp != "+" && fp != tParts[i] {
			return false
		}
	}
	return len(fParts) == len(tParts)
}
