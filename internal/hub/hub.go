// Package hub ties the device registry to persistence, the local mesh stack
// and the event bus. Transports hand it raw frames; it decodes, merges,
// saves and announces them.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"thread-go-home/internal/codes"
	"thread-go-home/internal/device"
	"thread-go-home/internal/mesh"
	"thread-go-home/internal/store"
	"thread-go-home/internal/wire"
)

// ErrNoTransport is returned by PushSetting when nothing can deliver it.
var ErrNoTransport = errors.New("no transport for settings")

// DefaultPollInterval is how often Start refreshes the mesh state.
const DefaultPollInterval = 30 * time.Second

// SettingWriter delivers a setting change to a device.
type SettingWriter interface {
	WriteSetting(ctx context.Context, serial uint64, s wire.Setting) error
}

// Hub handles every frame received from the mesh.
type Hub struct {
	registry *device.Registry
	store    store.Store
	stack    mesh.Stack
	events   *EventBus
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	mu      sync.Mutex
	writers []SettingWriter
	state   *mesh.State
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithPollInterval sets how often Start queries the mesh stack.
func WithPollInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithRegistry uses an existing registry instead of a new one.
func WithRegistry(r *device.Registry) Option {
	return func(h *Hub) { h.registry = r }
}

// New creates a hub. A nil stack is treated as mesh.Disabled.
func New(st store.Store, stack mesh.Stack, events *EventBus, logger *slog.Logger, opts ...Option) *Hub {
	if stack == nil {
		stack = mesh.Disabled{}
	}
	h := &Hub{
		registry: device.NewRegistry(),
		store:    st,
		stack:    stack,
		events:   events,
		logger:   logger.With("component", "hub"),
		now:      time.Now,
		interval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Load restores persisted devices into the registry.
func (h *Hub) Load() error {
	devs, err := h.store.ListDevices()
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	h.registry.Load(devs)
	h.logger.Info("devices loaded", "count", len(devs))
	return nil
}

// Registry returns the device registry.
func (h *Hub) Registry() *device.Registry {
	return h.registry
}

// Events returns the event bus.
func (h *Hub) Events() *EventBus {
	return h.events
}

// Now returns the hub's current time.
func (h *Hub) Now() time.Time {
	return h.now()
}

// AddSettingWriter registers a transport for PushSetting.
func (h *Hub) AddSettingWriter(w SettingWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writers = append(h.writers, w)
}

// HandleHeartBeat ingests a legacy heartbeat frame, which carries its own
// serial number.
func (h *Hub) HandleHeartBeat(payload []byte) error {
	hb, err := wire.DecodeHeartBeat(payload)
	if err != nil {
		return err
	}
	h.applyHeartBeat(hb)
	return nil
}

// HandleHeartBeatKeyed ingests a heartbeat whose serial number came from
// the transport.
func (h *Hub) HandleHeartBeatKeyed(serial uint64, payload []byte) error {
	hb, err := wire.DecodeHeartBeatKeyed(payload, serial)
	if err != nil {
		return err
	}
	h.applyHeartBeat(hb)
	return nil
}

func (h *Hub) applyHeartBeat(hb wire.HeartBeat) {
	dev, created := h.registry.ApplyHeartBeat(hb, h.now())
	h.persist(dev)
	if created {
		h.logger.Info("device joined", "serial", dev.DisplayName(), "kind", dev.Kind(), "type", hb.DevType)
		h.events.Emit(Event{Type: EventDeviceJoined, Serial: hb.Serial, Data: map[string]any{
			"kind":    string(dev.Kind()),
			"devType": hb.DevType.String(),
		}})
	}
	data := map[string]any{
		"status":   hb.Status.String(),
		"rloc16":   hb.Rloc16,
		"firmware": hb.Firmware,
	}
	if hb.HasUptime() {
		data["uptime"] = hb.Uptime
	}
	h.events.Emit(Event{Type: EventHeartBeat, Serial: hb.Serial, Data: data})
}

// HandleMeasurement ingests one measurement frame.
func (h *Hub) HandleMeasurement(serial uint64, payload []byte) error {
	m, err := wire.DecodeMeasurement(payload)
	if err != nil {
		return err
	}
	dev, err := h.registry.ApplyMeasurement(serial, m, h.now())
	if err != nil {
		return fmt.Errorf("measurement for %016X: %w", serial, err)
	}
	h.persist(dev)
	h.events.Emit(Event{Type: EventMeasurement, Serial: serial, Data: map[string]any{
		"type":    m.Type.String(),
		"channel": m.Channel.Code(),
		"value":   m.Float(),
	}})
	return nil
}

// HandleNeighbors replaces the device's neighbor table.
func (h *Hub) HandleNeighbors(serial uint64, payload []byte) error {
	ns, err := wire.DecodeNeighbors(payload)
	if err != nil {
		return err
	}
	if err := h.registry.ReplaceNeighbors(serial, ns); err != nil {
		return fmt.Errorf("neighbors for %016X: %w", serial, err)
	}
	h.events.Emit(Event{Type: EventNeighborsUpdated, Serial: serial, Data: map[string]any{"count": len(ns)}})
	return nil
}

// HandleConnected replaces the peripherals attached to the device.
func (h *Hub) HandleConnected(serial uint64, payload []byte) error {
	cs, err := wire.DecodeConnectedDevices(payload)
	if err != nil {
		return err
	}
	if err := h.registry.ReplaceConnected(serial, cs); err != nil {
		return fmt.Errorf("connected devices for %016X: %w", serial, err)
	}
	if dev, ok := h.registry.Get(serial); ok {
		h.persist(dev)
	}
	h.events.Emit(Event{Type: EventConnectedUpdated, Serial: serial, Data: map[string]any{"count": len(cs)}})
	return nil
}

// HandleSettings merges the settings a device reported.
func (h *Hub) HandleSettings(serial uint64, payload []byte) error {
	ss, err := wire.DecodeSettings(payload)
	if err != nil {
		return err
	}
	if err := h.registry.ApplySettings(serial, ss); err != nil {
		return fmt.Errorf("settings for %016X: %w", serial, err)
	}
	h.events.Emit(Event{Type: EventSettingsReported, Serial: serial, Data: map[string]any{"count": len(ss)}})
	return nil
}

// PushSetting sends a setting change to the device through every
// registered transport. It succeeds if at least one accepted it.
func (h *Hub) PushSetting(ctx context.Context, serial uint64, s wire.Setting) error {
	if _, ok := h.registry.Get(serial); !ok {
		return fmt.Errorf("device %016X: %w", serial, device.ErrUnknownDevice)
	}
	if s.Updated == 0 {
		s.Updated = int32(h.now().Unix())
	}

	h.mu.Lock()
	writers := append([]SettingWriter(nil), h.writers...)
	h.mu.Unlock()
	if len(writers) == 0 {
		return ErrNoTransport
	}

	var errs []error
	for _, w := range writers {
		if err := w.WriteSetting(ctx, serial, s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(writers) {
		return fmt.Errorf("push setting to %016X: %w", serial, errors.Join(errs...))
	}
	h.events.Emit(Event{Type: EventSettingRequested, Serial: serial, Data: map[string]any{
		"type":    s.Type.String(),
		"channel": s.Channel,
		"value":   s.Value,
	}})
	return nil
}

// SetName assigns the user facing name and description and saves them.
func (h *Hub) SetName(serial uint64, name, description string) (device.Device, error) {
	dev, err := h.registry.SetName(serial, name, description)
	if err != nil {
		return nil, fmt.Errorf("device %016X: %w", serial, err)
	}
	h.persist(dev)
	h.events.Emit(Event{Type: EventDeviceUpdated, Serial: serial, Data: map[string]any{"name": name}})
	return dev, nil
}

// SetFirmwareTag records the firmware build tag and saves it.
func (h *Hub) SetFirmwareTag(serial uint64, tag string) (device.Device, error) {
	dev, err := h.registry.SetFirmwareTag(serial, tag)
	if err != nil {
		return nil, fmt.Errorf("device %016X: %w", serial, err)
	}
	h.persist(dev)
	h.events.Emit(Event{Type: EventDeviceUpdated, Serial: serial, Data: map[string]any{"firmwareTag": tag}})
	return dev, nil
}

// Remove forgets a device. It returns device.ErrUnknownDevice if it was
// never seen.
func (h *Hub) Remove(serial uint64) error {
	if !h.registry.Remove(serial) {
		return fmt.Errorf("device %016X: %w", serial, device.ErrUnknownDevice)
	}
	if err := h.store.DeleteDevice(serial); err != nil {
		return fmt.Errorf("delete device %016X: %w", serial, err)
	}
	h.logger.Info("device removed", "serial", fmt.Sprintf("%016X", serial))
	h.events.Emit(Event{Type: EventDeviceRemoved, Serial: serial})
	return nil
}

// persist saves a registry snapshot. Saves for one serial may finish out
// of order; the store keeps the snapshot with the highest revision.
func (h *Hub) persist(dev device.Device) {
	if dev == nil {
		return
	}
	if err := h.store.SaveDevice(dev); err != nil {
		h.logger.Error("save device", "serial", dev.DisplayName(), "err", err)
	}
}

// NetworkConfig returns the stored network configuration.
func (h *Hub) NetworkConfig() (*mesh.NetConfig, error) {
	return h.store.GetNetworkConfig()
}

// SetNetworkConfig stores cfg, stamping it with the current time if it has
// no update time.
func (h *Hub) SetNetworkConfig(cfg *mesh.NetConfig) error {
	if cfg.Updated == nil {
		now := h.now().UTC()
		cfg.Updated = &now
	}
	if err := h.store.SaveNetworkConfig(cfg); err != nil {
		return fmt.Errorf("save network config: %w", err)
	}
	return nil
}

// Joiner returns the stored joiner credentials.
func (h *Hub) Joiner() (mesh.JoinerData, error) {
	return h.store.GetJoiner()
}

// SetJoiner validates and saves the joiner credentials.
func (h *Hub) SetJoiner(j mesh.JoinerData) error {
	if err := j.Validate(); err != nil {
		return err
	}
	if err := h.store.SaveJoiner(j); err != nil {
		return fmt.Errorf("save joiner: %w", err)
	}
	h.logger.Info("joiner updated", "eui64", j.EUI64 != nil, "pskd", j.PSKd != nil)
	return nil
}

// MeshState returns the last state read by RefreshMesh, or nil.
func (h *Hub) MeshState() *mesh.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// RefreshMesh reads the local stack and records the border router itself
// as a device with its current neighbor table.
func (h *Hub) RefreshMesh(ctx context.Context) (*mesh.State, error) {
	if !h.stack.Available() {
		return nil, mesh.ErrUnavailable
	}
	st, err := h.stack.Query(ctx)
	if err != nil {
		return nil, err
	}

	status := codes.StatusOffline
	if st.Role.Connected() {
		status = codes.StatusRunningOk
	}
	dev, created := h.registry.Observe(st.HWID, codes.DevTypeBorderRouter, st.Rloc16, status, h.now())
	if err := h.registry.ReplaceNeighbors(st.HWID, st.Neighbors); err != nil {
		return nil, err
	}
	h.persist(dev)
	if created {
		h.events.Emit(Event{Type: EventDeviceJoined, Serial: st.HWID, Data: map[string]any{
			"kind":    string(dev.Kind()),
			"devType": codes.DevTypeBorderRouter.String(),
		}})
	}

	h.mu.Lock()
	h.state = st
	h.mu.Unlock()

	h.events.Emit(Event{Type: EventNetworkState, Serial: st.HWID, Data: map[string]any{
		"role":      string(st.Role),
		"rloc16":    st.Rloc16,
		"neighbors": len(st.Neighbors),
	}})
	return st, nil
}

// Start polls the mesh stack until Stop is called or ctx ends.
// It does nothing when the stack is unavailable at start.
func (h *Hub) Start(ctx context.Context) {
	if !h.stack.Available() {
		h.logger.Info("mesh stack unavailable, polling disabled")
		return
	}
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			if _, err := h.RefreshMesh(ctx); err != nil && ctx.Err() == nil {
				h.logger.Warn("mesh refresh", "err", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends polling and waits for the poll loop to exit.
func (h *Hub) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
