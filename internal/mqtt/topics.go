//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"

	"thread-go-home/internal/device"
)

// frameKind is the payload type selected by a topic.
type frameKind int

const (
	frameUnknown frameKind = iota
	frameHeartBeatLegacy
	frameHeartBeatKeyed
	frameMeasurement
	frameNeighbors
	frameConnected
	frameSettings
)

var suffixKinds = map[string]frameKind{
	"hb":        frameHeartBeatKeyed,
	"sensor":    frameMeasurement,
	"neighbors": frameNeighbors,
	"connected": frameConnected,
	"settings":  frameSettings,
}

// route maps an incoming topic to the decoder for its payload. The legacy
// heartbeat topic carries no serial; the payload has it.
func route(prefix, topic string) (serial uint64, kind frameKind, err error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return 0, frameUnknown, fmt.Errorf("topic %q outside prefix %q", topic, prefix)
	}
	if rest == "hb" {
		return 0, frameHeartBeatLegacy, nil
	}
	id, suffix, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(suffix, "/") {
		return 0, frameUnknown, fmt.Errorf("unexpected topic %q", topic)
	}
	kind, ok = suffixKinds[suffix]
	if !ok {
		return 0, frameUnknown, fmt.Errorf("unexpected topic %q", topic)
	}
	serial, err = device.ParseSerial(id)
	if err != nil {
		return 0, frameUnknown, fmt.Errorf("topic %q: %w", topic, err)
	}
	return serial, kind, nil
}

func serialTopic(serial uint64) string {
	return fmt.Sprintf("%016X", serial)
}

func (b *Bridge) stateTopic(serial uint64) string {
	return b.prefix + "/" + serialTopic(serial) + "/state"
}

func (b *Bridge) settingsSetTopic(serial uint64) string {
	return b.prefix + "/" + serialTopic(serial) + "/settings/set"
}

func (b *Bridge) bridgeStateTopic() string {
	return b.prefix + "/bridge/state"
}
