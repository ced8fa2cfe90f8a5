package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort string `yaml:"http_port"`

	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	MQTTBrokerURL string `yaml:"mqtt_broker_url"`
	MQTTClientID  string `yaml:"mqtt_client_id"`
	MQTTUsername  string `yaml:"mqtt_username"`
	MQTTPassword  string `yaml:"mqtt_password"`

	// Empty KafkaBrokers disables the audit feed.
	KafkaBrokers string `yaml:"kafka_brokers"`
	KafkaTopic   string `yaml:"kafka_topic"`

	// Empty RedisAddr disables the state cache and live feed.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	WorkerCount     int `yaml:"worker_count"`
	UplinkQueueSize int `yaml:"uplink_queue_size"`
}

// Load builds the config from defaults, an optional YAML file named by
// WAYPOINT_CONFIG, then environment overrides, in that order.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        "8080",
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "waypoint",
		MQTTBrokerURL:   "tcp://localhost:1883",
		MQTTClientID:    "waypoint-backend",
		KafkaTopic:      "device-events",
		WorkerCount:     4,
		UplinkQueueSize: 1024,
	}

	if path := os.Getenv("WAYPOINT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.MQTTBrokerURL = getEnv("MQTT_BROKER_URL", cfg.MQTTBrokerURL)
	cfg.MQTTClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTTClientID)
	cfg.MQTTUsername = getEnv("MQTT_USERNAME", cfg.MQTTUsername)
	cfg.MQTTPassword = getEnv("MQTT_PASSWORD", cfg.MQTTPassword)
	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.WorkerCount = getEnvInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.UplinkQueueSize = getEnvInt("UPLINK_QUEUE_SIZE", cfg.UplinkQueueSize)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
