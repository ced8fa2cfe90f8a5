// Package audit ships command and uplink lifecycle events to Kafka for
// downstream log/analytics pipelines. Emission is fire-and-forget: a
// broken feed must never fail the operation that produced the event.
package audit

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	KindDispatched     = "command_dispatched"
	KindDelivered      = "command_delivered"
	KindPublishFailed  = "publish_failed"
	KindUplinkReceived = "uplink_received"
)

type Event struct {
	Kind    string    `json:"kind"`
	IMEI    string    `json:"imei"`
	CmdID   string    `json:"cmd_id,omitempty"`
	Command string    `json:"command,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

type Feed struct {
	producer *kafka.Producer
	topic    string
	log      *slog.Logger
}

func NewFeed(brokers, topic string, log *slog.Logger) (*Feed, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
	})
	if err != nil {
		return nil, err
	}

	f := &Feed{producer: producer, topic: topic, log: log}

	// drain delivery reports so the internal queue never fills
	go func() {
		for e := range producer.Events() {
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
				log.Debug("audit event not delivered", "error", m.TopicPartition.Error)
			}
		}
	}()

	return f, nil
}

// Emit queues one event. Safe on a nil feed so callers can treat the
// feed as optional.
func (f *Feed) Emit(event Event) {
	if f == nil || f.producer == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	err = f.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &f.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.IMEI),
		Value:          data,
	}, nil)
	if err != nil {
		f.log.Debug("audit emit dropped", "kind", event.Kind, "error", err)
	}
}

func (f *Feed) Close() {
	if f == nil || f.producer == nil {
		return
	}
	f.producer.Flush(2000)
	f.producer.Close()
}
