// Device simulator: publishes synthetic uplink packets for a handful
// of IMEIs so the backend can be exercised without hardware. Devices
// random-walk around a starting position and echo command acks.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type simConfig struct {
	BrokerURL   string
	DeviceCount int
	Interval    time.Duration
}

type device struct {
	imei    string
	lat     float64
	lon     float64
	battery float64

	mu      sync.Mutex
	pending string // CmdID awaiting ack
}

func (d *device) packet() map[string]any {
	d.mu.Lock()
	ack := d.pending
	d.pending = ""
	d.mu.Unlock()

	// small random walk
	d.lat += (rand.Float64() - 0.5) * 0.002
	d.lon += (rand.Float64() - 0.5) * 0.002
	d.battery -= rand.Float64() * 0.05
	if d.battery < 5 {
		d.battery = 100
	}

	pkt := map[string]any{
		"packet":    "N",
		"latitude":  fmt.Sprintf("%.6f", d.lat),
		"longitude": fmt.Sprintf("%.6f", d.lon),
		"speed":     fmt.Sprintf("%.1f", rand.Float64()*60),
		"Battery":   fmt.Sprintf("%.0f", d.battery),
		"Signal":    fmt.Sprintf("%d", 60+rand.Intn(40)),
		"Temp":      fmt.Sprintf("%.1f", 30+rand.Float64()*20),
		"Alert":     "0",
		"interval":  150,
		"timestamp": time.Now().Format("2006-01-02 15:04:05"),
	}
	if ack != "" {
		pkt["Ack"] = ack
	}
	return pkt
}

func main() {
	cfg := simConfig{
		BrokerURL:   envOr("MQTT_BROKER_URL", "tcp://localhost:1883"),
		DeviceCount: envIntOr("DEVICE_COUNT", 3),
		Interval:    time.Duration(envIntOr("INTERVAL_SECONDS", 15)) * time.Second,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(fmt.Sprintf("waypoint-sim-%d", os.Getpid())).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("Failed to connect to broker: %v", token.Error())
	}
	defer client.Disconnect(250)

	devices := make([]*device, cfg.DeviceCount)
	for i := range devices {
		devices[i] = &device{
			imei:    fmt.Sprintf("86%013d", 4200000000+i),
			lat:     12.9716 + rand.Float64()*0.1,
			lon:     77.5946 + rand.Float64()*0.1,
			battery: 100,
		}
	}

	// capture downlinks so the next uplink can ack them
	for _, d := range devices {
		dev := d
		topic := dev.imei + "/sub"
		token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			var payload map[string]any
			if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
				return
			}
			if id, ok := payload["CmdID"].(string); ok {
				dev.mu.Lock()
				dev.pending = id
				dev.mu.Unlock()
				log.Printf("[%s] received command, will ack %s", dev.imei, id)
			}
		})
		token.Wait()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Printf("Simulating %d devices every %s against %s", cfg.DeviceCount, cfg.Interval, cfg.BrokerURL)

	for {
		select {
		case <-sigChan:
			log.Println("Simulator stopping")
			return
		case <-ticker.C:
			for _, d := range devices {
				data, err := json.Marshal(d.packet())
				if err != nil {
					continue
				}
				client.Publish(d.imei+"/pub", 1, false, data)
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
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
