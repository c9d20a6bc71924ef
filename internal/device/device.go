// Package device models the mesh devices known to the gateway and keeps
// them in a registry keyed by serial number.
package device

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"time"

	"thread-go-home/internal/codes"
	"thread-go-home/internal/wire"
)

// Dev is the capability view shared by every device kind.
type Dev interface {
	Identity() uint64
	DisplayName() string
	LastActive() time.Time
	Uptime() (time.Duration, bool)
	DeviceTypeName() string
	FirmwareVersion() ([4]byte, bool)
	FirmwareTag() (string, bool)
	EffectiveStatus(now time.Time) codes.DevStatus
}

// Device is one of *SoilSensor, *EnvSensor, *Router, *LedPanel or *TeLys.
type Device interface {
	Dev
	Kind() Kind
	Readings() map[string]float64
	Record() *Info

	clone() Device
	applyReading(m wire.Measurement, at time.Time)
}

// Kind names a concrete device variant.
type Kind string

const (
	KindSoilSensor Kind = "SoilSensor"
	KindEnvSensor  Kind = "EnvSensor"
	KindRouter     Kind = "Router"
	KindLedPanel   Kind = "LedPanel"
	KindTeLys      Kind = "TeLys"
)

// KindFor maps a device type code to the variant used to hold it.
// Types without dedicated sensor fields are kept as routers.
func KindFor(t codes.DevType) Kind {
	switch t {
	case codes.DevTypeHortiLed:
		return KindLedPanel
	case codes.DevTypeHortiPlantSensor:
		return KindSoilSensor
	case codes.DevTypeWeatherStation, codes.DevTypeEnvironmentSensor:
		return KindEnvSensor
	case codes.DevTypeTeLys:
		return KindTeLys
	default:
		return KindRouter
	}
}

// New creates an empty device of the kind matching devType.
func New(serial uint64, devType codes.DevType) Device {
	d := newOfKind(KindFor(devType))
	in := d.Record()
	in.Serial = serial
	in.DevType = devType
	return d
}

func newOfKind(k Kind) Device {
	switch k {
	case KindSoilSensor:
		return &SoilSensor{}
	case KindEnvSensor:
		return &EnvSensor{}
	case KindRouter:
		return &Router{}
	case KindLedPanel:
		return &LedPanel{}
	case KindTeLys:
		return &TeLys{}
	}
	return nil
}

// Info is the record every device kind carries.
type Info struct {
	Serial      uint64                 `json:"serial,string"`
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	Rloc16      uint16                 `json:"rloc16"`
	Status      codes.DevStatus        `json:"status"`
	LastSeen    time.Time              `json:"lastActive"`
	DevType     codes.DevType          `json:"type"`
	Firmware    *uint32                `json:"firmware,omitempty"`
	Tag         string                 `json:"firmwareTag,omitempty"`
	UptimeSecs  *uint32                `json:"uptime,omitempty"`
	Connected   []wire.ConnectedDevice `json:"connected,omitempty"`

	// Revision counts registry updates. Stores keep the highest one.
	Revision uint64 `json:"revision,omitempty"`
}

// Record returns the shared record for in-place updates by the registry.
func (i *Info) Record() *Info { return i }

func (i *Info) Identity() uint64 { return i.Serial }

// DisplayName returns the assigned name, or the serial as 16 hex digits.
func (i *Info) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return fmt.Sprintf("%016X", i.Serial)
}

func (i *Info) LastActive() time.Time { return i.LastSeen }

func (i *Info) Uptime() (time.Duration, bool) {
	if i.UptimeSecs == nil {
		return 0, false
	}
	return time.Duration(*i.UptimeSecs) * time.Second, true
}

// FirmwareVersion returns the version word as big-endian bytes (major first).
func (i *Info) FirmwareVersion() ([4]byte, bool) {
	var v [4]byte
	if i.Firmware == nil {
		return v, false
	}
	binary.BigEndian.PutUint32(v[:], *i.Firmware)
	return v, true
}

func (i *Info) FirmwareTag() (string, bool) { return i.Tag, i.Tag != "" }

// EffectiveStatus is StatusUnknown for a device that never reported.
func (i *Info) EffectiveStatus(now time.Time) codes.DevStatus {
	if i.LastSeen.IsZero() {
		return codes.StatusUnknown
	}
	return EffectiveStatus(i.Status, i.LastSeen, now)
}

// ConnectedDevices returns the peripherals last reported by the device.
func (i *Info) ConnectedDevices() []wire.ConnectedDevice {
	return slices.Clone(i.Connected)
}

func (i *Info) cloneInfo() Info {
	c := *i
	if i.Firmware != nil {
		v := *i.Firmware
		c.Firmware = &v
	}
	if i.UptimeSecs != nil {
		v := *i.UptimeSecs
		c.UptimeSecs = &v
	}
	c.Connected = slices.Clone(i.Connected)
	return c
}

// Reading is a sensor value kept as an integer part and a micro-unit part.
type Reading struct {
	H         int32     `json:"h"`
	L         int32     `json:"l"`
	Timestamp time.Time `json:"timestamp"`
}

func readingOf(m wire.Measurement, at time.Time) *Reading {
	return &Reading{H: m.Value1, L: m.Value2, Timestamp: at}
}

// Float returns H + L * 1e-6.
func (r Reading) Float() float64 {
	return float64(r.H) + float64(r.L)*1e-6
}

func cloneReading(r *Reading) *Reading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func putReading(out map[string]float64, key string, r *Reading) {
	if r != nil {
		out[key] = r.Float()
	}
}

// ParseSerial reads a serial number written either as exactly 16 hex
// digits or in decimal.
func ParseSerial(s string) (uint64, error) {
	if len(s) == 16 {
		if v, err := strconv.ParseUint(s, 16, 64); err == nil {
			return v, nil
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid serial %q", s)
	}
	return v, nil
}
