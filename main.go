package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/richd0tcom/waypoint/core/server"
	"github.com/richd0tcom/waypoint/internal/config"
	"github.com/richd0tcom/waypoint/pkg/logger"
)

func main() {
	godotenv.Load()
	log := logger.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	options := []server.ConfigOption{
		server.WithMongoDB(cfg.MongoURI, cfg.MongoDatabase),
		server.WithWorkerConfig(cfg.WorkerCount, cfg.UplinkQueueSize),
		server.WithPort(cfg.HTTPPort),
		server.WithLogger(log),
	}

	// "channels" runs without an MQTT server, for local development
	if os.Getenv("MESSAGE_BROKER_TYPE") == "channels" {
		options = append(options, server.WithChannelBroker())
	} else {
		options = append(options, server.WithMQTT(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTUsername, cfg.MQTTPassword))
	}

	if cfg.RedisAddr != "" {
		options = append(options, server.WithStateCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
	}
	if cfg.KafkaBrokers != "" {
		options = append(options, server.WithKafkaAudit(cfg.KafkaBrokers, cfg.KafkaTopic))
	}

	srv, err := server.NewServer(options...)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	srv.Close()
	log.Info("server shutdown complete")
}
