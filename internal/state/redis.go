// Package state keeps a small per-device snapshot in Redis so the
// latest position and vitals are readable without touching Mongo, and
// fans live updates out to subscribers.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/richd0tcom/waypoint/internal/domain"
)

const snapshotTTL = 30 * time.Minute

type Cache struct {
	client *redis.Client
}

func NewCache(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func stateKey(imei string) string { return fmt.Sprintf("device:%s:state", imei) }

func feedChannel(imei string) string { return fmt.Sprintf("device:%s:feed", imei) }

// Update writes the device snapshot and publishes it on the device's
// feed channel in one pipeline.
func (c *Cache) Update(ctx context.Context, rec *domain.TelemetryRecord) error {
	snapshot := map[string]interface{}{
		"imei":        rec.IMEI,
		"packet":      rec.Packet,
		"latitude":    rec.Latitude,
		"longitude":   rec.Longitude,
		"speed":       rec.Speed,
		"battery":     rec.Battery,
		"signal":      rec.Signal,
		"temperature": rec.Temperature,
		"alert":       rec.Alert,
		"received_at": rec.ReceivedAt.Unix(),
	}
	if rec.DeviceTime != nil {
		snapshot["device_time"] = rec.DeviceTime.Unix()
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, stateKey(rec.IMEI), snapshot)
	pipe.Expire(ctx, stateKey(rec.IMEI), snapshotTTL)
	pipe.Publish(ctx, feedChannel(rec.IMEI), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Get returns the latest snapshot fields, empty map if unknown.
func (c *Cache) Get(ctx context.Context, imei string) (map[string]string, error) {
	return c.client.HGetAll(ctx, stateKey(imei)).Result()
}

// SubscribeFeed opens a pub/sub subscription on the device's live
// feed. The caller owns the returned subscription and must Close it.
func (c *Cache) SubscribeFeed(ctx context.Context, imei string) *redis.PubSub {
	return c.client.Subscribe(ctx, feedChannel(imei))
}
