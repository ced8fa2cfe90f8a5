package broker

import "context"

// Handler receives one inbound message.
type Handler func(topic string, payload []byte)

// Broker is the pub/sub transport contract. QoS follows MQTT delivery
// tiers: 0 is fire-and-forget, 2 requires the broker handshake to
// complete before Publish returns.
type Broker interface {
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
	Subscribe(topicFilter string, qos byte, handler Handler) error
	Close() error
}
