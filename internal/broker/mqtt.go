package broker

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type MQTTBroker struct {
	client mqtt.Client
}

func NewMQTTBroker(brokerURL, clientID, username, password string) (*MQTTBroker, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false)

	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}

	return &MQTTBroker{client: client}, nil
}

func (m *MQTTBroker) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if !m.client.IsConnected() {
		return fmt.Errorf("not connected to broker")
	}

	token := m.client.Publish(topic, qos, false, payload)
	if qos == 0 {
		// at-most-once, nothing to wait for
		return nil
	}

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish to %s failed: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTTBroker) Subscribe(topicFilter string, qos byte, handler Handler) error {
	token := m.client.Subscribe(topicFilter, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe to %s timed out", topicFilter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topicFilter, err)
	}
	return nil
}

func (m *MQTTBroker) Close() error {
	m.client.Disconnect(250)
	return nil
}
