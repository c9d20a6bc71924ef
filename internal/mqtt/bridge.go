//go:build !no_mqtt

// Package mqtt receives device frames from an MQTT broker and publishes
// device state back to it, with Home Assistant discovery.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"thread-go-home/internal/api"
	"thread-go-home/internal/device"
	"thread-go-home/internal/hub"
	"thread-go-home/internal/wire"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	Discovery   bool
}

// Bridge connects the hub to MQTT.
type Bridge struct {
	client    pahomqtt.Client
	hub       *hub.Hub
	prefix    string
	discovery bool
	logger    *slog.Logger
	unsub     func()

	// Reading keys each device's discovery config was last published with.
	mu         sync.Mutex
	discovered map[uint64]string
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(h *hub.Hub, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		hub:        h,
		prefix:     cfg.TopicPrefix,
		discovery:  cfg.Discovery,
		logger:     logger.With("component", "mqtt"),
		discovered: make(map[uint64]string),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID(cfg.TopicPrefix)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(b.bridgeStateTopic(), "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.subscribeFrames()
			b.publishAll()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// clientID keeps several instances on one broker from kicking each other off.
func clientID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Start subscribes to hub events and registers the bridge as a settings
// transport.
func (b *Bridge) Start() {
	b.unsub = b.hub.Events().OnAll(b.handleEvent)
	b.hub.AddSettingWriter(b)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) subscribeFrames() {
	filters := map[string]byte{
		b.prefix + "/hb":  1,
		b.prefix + "/+/+": 1,
	}
	token := b.client.SubscribeMultiple(filters, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleMessage(msg.Topic(), msg.Payload())
	})
	go func() {
		if !token.WaitTimeout(10 * time.Second) {
			b.logger.Warn("MQTT subscribe timeout")
		} else if err := token.Error(); err != nil {
			b.logger.Error("MQTT subscribe", "err", err)
		}
	}()
}

// handleMessage dispatches one frame to the hub. Our own state topics also
// match the wildcard and fall out at route.
func (b *Bridge) handleMessage(topic string, payload []byte) {
	serial, kind, err := route(b.prefix, topic)
	if err != nil {
		b.logger.Debug("ignoring message", "topic", topic, "err", err)
		return
	}
	if err := dispatch(b.hub, serial, kind, payload); err != nil {
		b.logger.Warn("frame rejected", "topic", topic, "err", err)
	}
}

func dispatch(h *hub.Hub, serial uint64, kind frameKind, payload []byte) error {
	switch kind {
	case frameHeartBeatLegacy:
		return h.HandleHeartBeat(payload)
	case frameHeartBeatKeyed:
		return h.HandleHeartBeatKeyed(serial, payload)
	case frameMeasurement:
		return h.HandleMeasurement(serial, payload)
	case frameNeighbors:
		return h.HandleNeighbors(serial, payload)
	case frameConnected:
		return h.HandleConnected(serial, payload)
	case frameSettings:
		return h.HandleSettings(serial, payload)
	}
	return fmt.Errorf("unknown frame kind %d", kind)
}

func (b *Bridge) handleEvent(event hub.Event) {
	switch event.Type {
	case hub.EventDeviceRemoved:
		b.publish(b.stateTopic(event.Serial), nil, true)
		b.mu.Lock()
		delete(b.discovered, event.Serial)
		b.mu.Unlock()
		if b.discovery {
			for _, msg := range buildRemoveDiscovery(event.Serial) {
				b.publish(msg.Topic, msg.Payload, true)
			}
		}
	case hub.EventDeviceJoined:
		b.publishDevice(event.Serial, true)
	case hub.EventHeartBeat, hub.EventMeasurement, hub.EventConnectedUpdated, hub.EventDeviceUpdated:
		b.publishDevice(event.Serial, event.Type == hub.EventDeviceUpdated)
	}
}

// publishDevice publishes the retained state of one device. Discovery is
// republished when forced or when the device has started reporting a new
// kind of reading.
func (b *Bridge) publishDevice(serial uint64, force bool) {
	dev, ok := b.hub.Registry().Get(serial)
	if !ok {
		return
	}
	if b.discovery && b.needsDiscovery(dev, force) {
		for _, msg := range buildDiscovery(dev, b.prefix) {
			b.publish(msg.Topic, msg.Payload, true)
		}
	}
	b.publish(b.stateTopic(serial), statePayload(dev, b.hub.Now()), true)
}

func (b *Bridge) needsDiscovery(dev device.Device, force bool) bool {
	keys := make([]string, 0, 4)
	for k := range dev.Readings() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	sig := strings.Join(keys, ",")

	b.mu.Lock()
	defer b.mu.Unlock()
	prev, seen := b.discovered[dev.Identity()]
	if seen && !force && prev == sig {
		return false
	}
	b.discovered[dev.Identity()] = sig
	return true
}

func statePayload(dev device.Device, now time.Time) []byte {
	return mustJSON(api.Post[device.View]{Data: device.NewView(dev, now)})
}

func (b *Bridge) publishAll() {
	for _, dev := range b.hub.Registry().List() {
		b.publishDevice(dev.Identity(), true)
	}
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.bridgeStateTopic(), []byte(state), true)
}

// WriteSetting publishes an encoded setting frame for the device and waits
// for the broker to accept it.
func (b *Bridge) WriteSetting(ctx context.Context, serial uint64, s wire.Setting) error {
	token := b.client.Publish(b.settingsSetTopic(serial), 1, false, s.Encode())
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
