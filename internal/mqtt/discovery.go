//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"slices"

	"thread-go-home/internal/device"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/sensor/thread_0123456789ABCDEF/temp/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	Options           []string `json:"options,omitempty"`
	Device            haDevice `json:"device"`
}

// readingSensor describes how one reading key is shown in HA.
type readingSensor struct {
	name        string
	deviceClass string
	unit        string
}

var readingSensors = map[string]readingSensor{
	"temp":         {"Temperature", "temperature", "°C"},
	"dieTemp":      {"Die Temperature", "temperature", "°C"},
	"humidity":     {"Humidity", "humidity", "%"},
	"soilMoisture": {"Soil Moisture", "moisture", "%"},
	"light":        {"Light", "illuminance", "lx"},
	"pressure":     {"Pressure", "pressure", "hPa"},
	"battery":      {"Battery", "voltage", "V"},
	"charge":       {"Charge", "battery", "%"},
}

var statusOptions = []string{"Error", "RunningOk", "Downloading", "Flashing", "Rebooting", "Offline", "Unknown"}

// deviceIdentifier returns the unique identifier for HA device registry.
func deviceIdentifier(serial uint64) string {
	return "thread_" + serialTopic(serial)
}

// buildDiscovery generates HA discovery messages for a device: one sensor
// per reading the device has reported, plus its status.
func buildDiscovery(dev device.Device, prefix string) []discoveryMsg {
	serial := dev.Identity()
	avail := prefix + "/bridge/state"
	stateTopic := prefix + "/" + serialTopic(serial) + "/state"
	nodeID := deviceIdentifier(serial)
	displayName := dev.DisplayName()

	haDev := haDevice{
		Identifiers: []string{nodeID},
		Model:       dev.DeviceTypeName(),
		Name:        displayName,
	}
	if fw, ok := dev.FirmwareVersion(); ok {
		haDev.SWVersion = device.FirmwareString(fw)
	}

	msgs := []discoveryMsg{{
		Topic: fmt.Sprintf("homeassistant/sensor/%s/status/config", nodeID),
		Payload: mustJSON(haDiscovery{
			Name:              displayName + " Status",
			UniqueID:          nodeID + "_status",
			StateTopic:        stateTopic,
			AvailabilityTopic: avail,
			ValueTemplate:     "{{ value_json.data.statusName }}",
			DeviceClass:       "enum",
			Options:           statusOptions,
			Device:            haDev,
		}),
	}}

	keys := make([]string, 0, len(readingSensors))
	for k := range dev.Readings() {
		if _, ok := readingSensors[k]; ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		msgs = append(msgs, buildSensor(nodeID, displayName, stateTopic, avail, haDev, k, readingSensors[k]))
	}
	return msgs
}

func buildSensor(nodeID, displayName, stateTopic, avail string, haDev haDevice, key string, rs readingSensor) discoveryMsg {
	topic := fmt.Sprintf("homeassistant/sensor/%s/%s/config", nodeID, key)
	payload := haDiscovery{
		Name:              displayName + " " + rs.name,
		UniqueID:          nodeID + "_" + key,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     fmt.Sprintf("{{ value_json.data.readings.%s }}", key),
		UnitOfMeasurement: rs.unit,
		DeviceClass:       rs.deviceClass,
		StateClass:        "measurement",
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

// buildRemoveDiscovery generates empty retained messages to remove a device from HA.
func buildRemoveDiscovery(serial uint64) []discoveryMsg {
	nodeID := deviceIdentifier(serial)
	objects := []string{"status"}
	for k := range readingSensors {
		objects = append(objects, k)
	}
	slices.Sort(objects[1:])

	msgs := make([]discoveryMsg, 0, len(objects))
	for _, obj := range objects {
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("homeassistant/sensor/%s/%s/config", nodeID, obj),
			Payload: nil, // empty retained = delete
		})
	}
	return msgs
}
