package radio

import (
	"encoding/binary"
	"fmt"
)

// FrameKind selects how a frame's payload is decoded.
type FrameKind uint8

const (
	KindHeartBeatLegacy FrameKind = 0x01
	KindHeartBeatKeyed  FrameKind = 0x02
	KindMeasurement     FrameKind = 0x03
	KindNeighbors       FrameKind = 0x04
	KindConnected       FrameKind = 0x05
	KindSettings        FrameKind = 0x06
	// KindSettingSet is sent to a device to change one setting.
	KindSettingSet FrameKind = 0x07
)

func (k FrameKind) String() string {
	switch k {
	case KindHeartBeatLegacy:
		return "heartbeat-legacy"
	case KindHeartBeatKeyed:
		return "heartbeat"
	case KindMeasurement:
		return "measurement"
	case KindNeighbors:
		return "neighbors"
	case KindConnected:
		return "connected"
	case KindSettings:
		return "settings"
	case KindSettingSet:
		return "setting-set"
	}
	return fmt.Sprintf("kind(0x%02X)", uint8(k))
}

// Frame is one decoded radio frame. Legacy heartbeats carry the serial in
// the payload, so Serial is zero for them.
type Frame struct {
	Kind    FrameKind
	Serial  uint64
	Payload []byte
}

// ParseFrame splits the kind byte and, for every kind but the legacy
// heartbeat, the little-endian serial prefix.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < 1 {
		return Frame{}, fmt.Errorf("radio: empty frame")
	}
	f := Frame{Kind: FrameKind(b[0])}
	if f.Kind == KindHeartBeatLegacy {
		f.Payload = b[1:]
		return f, nil
	}
	if len(b) < 9 {
		return Frame{}, fmt.Errorf("radio: %s frame too short (%d bytes)", f.Kind, len(b))
	}
	f.Serial = binary.LittleEndian.Uint64(b[1:9])
	f.Payload = b[9:]
	return f, nil
}

// Bytes is the inverse of ParseFrame.
func (f Frame) Bytes() []byte {
	if f.Kind == KindHeartBeatLegacy {
		return append([]byte{byte(f.Kind)}, f.Payload...)
	}
	out := make([]byte, 9, 9+len(f.Payload))
	out[0] = byte(f.Kind)
	binary.LittleEndian.PutUint64(out[1:9], f.Serial)
	return append(out, f.Payload...)
}

// Handler receives decoded frames. *hub.Hub implements it.
type Handler interface {
	HandleHeartBeat(payload []byte) error
	HandleHeartBeatKeyed(serial uint64, payload []byte) error
	HandleMeasurement(serial uint64, payload []byte) error
	HandleNeighbors(serial uint64, payload []byte) error
	HandleConnected(serial uint64, payload []byte) error
	HandleSettings(serial uint64, payload []byte) error
}

// Dispatch hands f to the handler method for its kind.
func Dispatch(h Handler, f Frame) error {
	switch f.Kind {
	case KindHeartBeatLegacy:
		return h.HandleHeartBeat(f.Payload)
	case KindHeartBeatKeyed:
		return h.HandleHeartBeatKeyed(f.Serial, f.Payload)
	case KindMeasurement:
		return h.HandleMeasurement(f.Serial, f.Payload)
	case KindNeighbors:
		return h.HandleNeighbors(f.Serial, f.Payload)
	case KindConnected:
		return h.HandleConnected(f.Serial, f.Payload)
	case KindSettings:
		return h.HandleSettings(f.Serial, f.Payload)
	}
	return fmt.Errorf("radio: unexpected %s frame", f.Kind)
}
