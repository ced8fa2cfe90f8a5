package server

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/richd0tcom/waypoint/internal/broker"
	"github.com/richd0tcom/waypoint/internal/db"
	"github.com/richd0tcom/waypoint/internal/domain"
	"github.com/richd0tcom/waypoint/internal/state"
)

type ServerConfig struct {
	Broker      broker.Broker
	MongoClient *mongo.Client

	Commands  domain.CommandStore
	Geofences domain.GeofenceStore
	Telemetry domain.TelemetryStore

	Cache *state.Cache
	Log   *slog.Logger

	KafkaBrokers string
	KafkaTopic   string

	WorkerCount     int
	UplinkQueueSize int
	Port            string
}

type ConfigOption func(*ServerConfig) error

func WithMQTT(brokerURL, clientID, username, password string) ConfigOption {
	return func(config *ServerConfig) error {
		b, err := broker.NewMQTTBroker(brokerURL, clientID, username, password)
		if err != nil {
			return err
		}
		config.Broker = b
		return nil
	}
}

// WithChannelBroker wires the in-process broker, for local development
// without an MQTT server.
func WithChannelBroker() ConfigOption {
	return func(config *ServerConfig) error {
		config.Broker = broker.NewChannelBroker()
		return nil
	}
}

func WithMongoDB(uri, database string) ConfigOption {
	return func(config *ServerConfig) error {
		client, err := db.NewMongoConnection(uri)
		if err != nil {
			return err
		}

		commands, err := db.NewMongoCommandStore(client, database)
		if err != nil {
			return err
		}
		geofences, err := db.NewMongoGeofenceStore(client, database)
		if err != nil {
			return err
		}
		telemetry, err := db.NewMongoTelemetryStore(client, database)
		if err != nil {
			return err
		}

		config.MongoClient = client
		config.Commands = commands
		config.Geofences = geofences
		config.Telemetry = telemetry
		return nil
	}
}

// WithStores injects store implementations directly; used by tests.
func WithStores(commands domain.CommandStore, geofences domain.GeofenceStore, telemetry domain.TelemetryStore) ConfigOption {
	return func(config *ServerConfig) error {
		config.Commands = commands
		config.Geofences = geofences
		config.Telemetry = telemetry
		return nil
	}
}

func WithStateCache(addr, password string, redisDB int) ConfigOption {
	return func(config *ServerConfig) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cache, err := state.NewCache(ctx, addr, password, redisDB)
		if err != nil {
			return err
		}
		config.Cache = cache
		return nil
	}
}

func WithKafkaAudit(brokers, topic string) ConfigOption {
	return func(config *ServerConfig) error {
		config.KafkaBrokers = brokers
		config.KafkaTopic = topic
		return nil
	}
}

func WithWorkerConfig(workerCount, queueSize int) ConfigOption {
	return func(config *ServerConfig) error {
		config.WorkerCount = workerCount
		config.UplinkQueueSize = queueSize
		return nil
	}
}

func WithPort(port string) ConfigOption {
	return func(config *ServerConfig) error {
		config.Port = port
		return nil
	}
}

func WithLogger(log *slog.Logger) ConfigOption {
	return func(config *ServerConfig) error {
		config.Log = log
		return nil
	}
}
