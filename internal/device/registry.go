package device

import (
	"cmp"
	"errors"
	"slices"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"thread-go-home/internal/codes"
	"thread-go-home/internal/wire"
)

// ErrUnknownDevice is returned for updates to a serial number that has not
// been registered by a heartbeat.
var ErrUnknownDevice = errors.New("unknown device")

// DefaultMeasurementLimit is the number of measurements kept per device.
const DefaultMeasurementLimit = 64

// entry is published as an immutable snapshot; updates build a new one.
type entry struct {
	dev          Device
	measurements []wire.Measurement
	neighbors    []wire.Neighbor
	settings     []wire.Setting
}

func (e *entry) copy() *entry {
	return &entry{
		dev:          e.dev.clone(),
		measurements: e.measurements,
		neighbors:    e.neighbors,
		settings:     e.settings,
	}
}

// Registry holds the devices seen on the mesh, keyed by serial number.
//
// Updates for one serial number are serialized by the shard lock that
// guards it; updates for different serial numbers run in parallel.
// Readers get copies and never observe a partial update.
type Registry struct {
	devices cmap.ConcurrentMap[uint64, *entry]
	limit   int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMeasurementLimit sets how many measurements are kept per device.
func WithMeasurementLimit(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.limit = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		devices: cmap.NewWithCustomShardingFunction[uint64, *entry](shardSerial),
		limit:   DefaultMeasurementLimit,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func shardSerial(serial uint64) uint32 {
	serial ^= serial >> 33
	serial *= 0xff51afd7ed558ccd
	serial ^= serial >> 33
	return uint32(serial)
}

// update runs fn on a copy of the entry for serial and publishes the copy
// if fn succeeds. With create set, a missing entry is built by mk. Every
// published copy carries the next revision number.
func (r *Registry) update(serial uint64, mk func() *entry, fn func(e *entry) error) (created bool, err error) {
	r.devices.Upsert(serial, nil, func(exist bool, cur, _ *entry) *entry {
		var next *entry
		switch {
		case exist && cur != nil:
			next = cur.copy()
		case mk != nil:
			next = mk()
			created = true
		default:
			err = ErrUnknownDevice
			return nil
		}
		next.dev.Record().Revision++
		if err = fn(next); err != nil {
			created = false
			return cur
		}
		return next
	})
	if err != nil {
		// Drop the placeholder left by a failed update of a missing serial.
		r.devices.RemoveCb(serial, func(_ uint64, v *entry, exists bool) bool {
			return exists && v == nil
		})
	}
	return created, err
}

// ApplyHeartBeat merges hb into the device with the same serial number,
// creating it if needed. Firmware, status, mesh address and last-active
// time are overwritten; uptime only when the frame carries one. The kind
// of an existing device never changes. It returns a copy of the result.
func (r *Registry) ApplyHeartBeat(hb wire.HeartBeat, at time.Time) (Device, bool) {
	var out Device
	created, _ := r.update(hb.Serial,
		func() *entry { return &entry{dev: New(hb.Serial, hb.DevType)} },
		func(e *entry) error {
			in := e.dev.Record()
			fw := hb.Firmware
			in.Firmware = &fw
			in.Status = hb.Status
			in.Rloc16 = hb.Rloc16
			in.LastSeen = at
			if hb.HasUptime() {
				up := hb.Uptime
				in.UptimeSecs = &up
			}
			out = e.dev.clone()
			return nil
		})
	return out, created
}

// Observe records a device seen by some means other than its own heartbeat,
// such as the border router reading its local stack. Firmware and uptime
// are left alone.
func (r *Registry) Observe(serial uint64, t codes.DevType, rloc16 uint16, status codes.DevStatus, at time.Time) (Device, bool) {
	var out Device
	created, _ := r.update(serial,
		func() *entry { return &entry{dev: New(serial, t)} },
		func(e *entry) error {
			in := e.dev.Record()
			in.Rloc16 = rloc16
			in.Status = status
			in.LastSeen = at
			out = e.dev.clone()
			return nil
		})
	return out, created
}

// ApplyMeasurement appends m to the device's measurement list and updates
// the matching sensor field.
func (r *Registry) ApplyMeasurement(serial uint64, m wire.Measurement, at time.Time) (Device, error) {
	var out Device
	_, err := r.update(serial, nil, func(e *entry) error {
		if m.Timestamp == nil {
			ts := at
			m.Timestamp = &ts
		}
		list := make([]wire.Measurement, 0, min(len(e.measurements)+1, r.limit))
		if drop := len(e.measurements) + 1 - r.limit; drop > 0 {
			list = append(list, e.measurements[drop:]...)
		} else {
			list = append(list, e.measurements...)
		}
		e.measurements = append(list, m)

		in := e.dev.Record()
		in.LastSeen = at
		if m.Type == codes.MeasureUptimeCounter && m.Value1 >= 0 {
			up := uint32(m.Value1)
			in.UptimeSecs = &up
		}
		e.dev.applyReading(m, at)
		out = e.dev.clone()
		return nil
	})
	return out, err
}

// ReplaceNeighbors swaps in a new neighbor table for the device.
func (r *Registry) ReplaceNeighbors(serial uint64, ns []wire.Neighbor) error {
	table := slices.Clone(ns)
	_, err := r.update(serial, nil, func(e *entry) error {
		e.neighbors = table
		return nil
	})
	return err
}

// ReplaceConnected swaps in the peripherals reported by the device.
func (r *Registry) ReplaceConnected(serial uint64, cs []wire.ConnectedDevice) error {
	list := slices.Clone(cs)
	_, err := r.update(serial, nil, func(e *entry) error {
		e.dev.Record().Connected = list
		return nil
	})
	return err
}

// ApplySettings merges reported settings. For each type and channel the
// value with the latest update time wins.
func (r *Registry) ApplySettings(serial uint64, ss []wire.Setting) error {
	_, err := r.update(serial, nil, func(e *entry) error {
		merged := slices.Clone(e.settings)
		for _, s := range ss {
			i := slices.IndexFunc(merged, func(o wire.Setting) bool {
				return o.Type == s.Type && o.Channel == s.Channel
			})
			switch {
			case i < 0:
				merged = append(merged, s)
			case s.Updated >= merged[i].Updated:
				merged[i] = s
			}
		}
		slices.SortFunc(merged, wire.CompareSettings)
		e.settings = merged
		return nil
	})
	return err
}

// SetName assigns the user facing name and description.
func (r *Registry) SetName(serial uint64, name, description string) (Device, error) {
	var out Device
	_, err := r.update(serial, nil, func(e *entry) error {
		in := e.dev.Record()
		in.Name = name
		in.Description = description
		out = e.dev.clone()
		return nil
	})
	return out, err
}

// SetFirmwareTag records the build tag of the firmware running on the
// device. Heartbeats never touch it; an empty tag clears it.
func (r *Registry) SetFirmwareTag(serial uint64, tag string) (Device, error) {
	var out Device
	_, err := r.update(serial, nil, func(e *entry) error {
		e.dev.Record().Tag = tag
		out = e.dev.clone()
		return nil
	})
	return out, err
}

// Load inserts devices restored from storage, replacing any entry with the
// same serial number.
func (r *Registry) Load(devs []Device) {
	for _, d := range devs {
		r.devices.Set(d.Identity(), &entry{dev: d.clone()})
	}
}

// Get returns a copy of the device.
func (r *Registry) Get(serial uint64) (Device, bool) {
	e, ok := r.devices.Get(serial)
	if !ok || e == nil {
		return nil, false
	}
	return e.dev.clone(), true
}

// List returns copies of all devices ordered by serial number.
func (r *Registry) List() []Device {
	items := r.devices.Items()
	out := make([]Device, 0, len(items))
	for _, e := range items {
		if e != nil {
			out = append(out, e.dev.clone())
		}
	}
	slices.SortFunc(out, func(a, b Device) int {
		return cmp.Compare(a.Identity(), b.Identity())
	})
	return out
}

// Len returns the number of devices.
func (r *Registry) Len() int {
	n := 0
	for _, e := range r.devices.Items() {
		if e != nil {
			n++
		}
	}
	return n
}

// Remove deletes the device and reports whether it existed.
func (r *Registry) Remove(serial uint64) bool {
	return r.devices.RemoveCb(serial, func(_ uint64, v *entry, exists bool) bool {
		return exists && v != nil
	})
}

// Measurements returns the device's recent measurements, oldest first.
func (r *Registry) Measurements(serial uint64) ([]wire.Measurement, error) {
	e, err := r.entry(serial)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.measurements), nil
}

// Neighbors returns the neighbor table last reported for the device.
func (r *Registry) Neighbors(serial uint64) ([]wire.Neighbor, error) {
	e, err := r.entry(serial)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.neighbors), nil
}

// Settings returns the known settings ordered by update time, type and channel.
func (r *Registry) Settings(serial uint64) ([]wire.Setting, error) {
	e, err := r.entry(serial)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.settings), nil
}

func (r *Registry) entry(serial uint64) (*entry, error) {
	e, ok := r.devices.Get(serial)
	if !ok || e == nil {
		return nil, ErrUnknownDevice
	}
	return e, nil
}
