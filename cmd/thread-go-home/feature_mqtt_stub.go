//go:build no_mqtt

package main

import (
	"log/slog"

	"thread-go-home/internal/hub"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *hub.Hub, cfg *Config, logger *slog.Logger) *mqttStopper {
	if cfg.MQTT.Enabled {
		logger.Warn("mqtt is enabled in config but not compiled in")
	}
	return &mqttStopper{}
}
