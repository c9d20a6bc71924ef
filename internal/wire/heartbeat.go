package wire

import (
	"encoding/binary"
	"fmt"

	"thread-go-home/internal/codes"
)

const (
	HeartBeatLegacySize = 16
	HeartBeatKeyedSize  = 14
)

// HeartBeatVariant records which wire layout a heartbeat was decoded from.
type HeartBeatVariant uint8

const (
	// HeartBeatLegacy frames carry their own serial number and no uptime.
	HeartBeatLegacy HeartBeatVariant = iota
	// HeartBeatKeyed frames get the serial number from the transport.
	HeartBeatKeyed
)

// HeartBeat is the periodic liveness report of a device.
type HeartBeat struct {
	Serial   uint64          `json:"id,string"`
	Firmware uint32          `json:"firmware"`
	DevType  codes.DevType   `json:"type"`
	Rloc16   uint16          `json:"rloc16"`
	Status   codes.DevStatus `json:"status"`
	Uptime   uint32          `json:"uptime"`
	InfoBits uint16          `json:"infobits"`

	Variant HeartBeatVariant `json:"-"`
}

func (HeartBeat) Kind() string { return "HeartBeat" }

// HasUptime reports whether the frame layout carries an uptime counter.
func (hb HeartBeat) HasUptime() bool { return hb.Variant == HeartBeatKeyed }

func (hb HeartBeat) String() string {
	return fmt.Sprintf("HeartBeat SN:%x, FW: %#010x, Type: %s, Status: %s, Rloc: %#06x, Uptime: %d",
		hb.Serial, hb.Firmware, hb.DevType, hb.Status, hb.Rloc16, hb.Uptime)
}

// DecodeHeartBeat decodes the legacy 16-byte frame:
// serial u64, firmware u32, status u8, device type u8, rloc16 u16.
func DecodeHeartBeat(b []byte) (HeartBeat, error) {
	if err := checkExact("heartbeat", b, HeartBeatLegacySize); err != nil {
		return HeartBeat{}, err
	}
	return HeartBeat{
		Serial:   binary.LittleEndian.Uint64(b[0:8]),
		Firmware: binary.LittleEndian.Uint32(b[8:12]),
		Status:   codes.DevStatusFromCode(b[12]),
		DevType:  codes.DevTypeFromCode(b[13]),
		Rloc16:   binary.LittleEndian.Uint16(b[14:16]),
		Variant:  HeartBeatLegacy,
	}, nil
}

// DecodeHeartBeatKeyed decodes the 14-byte frame:
// firmware u32, uptime u32, rloc16 u16, info bits u16, status u8, device type u8.
// The serial number comes from the transport that delivered the frame.
func DecodeHeartBeatKeyed(b []byte, serial uint64) (HeartBeat, error) {
	if err := checkExact("keyed heartbeat", b, HeartBeatKeyedSize); err != nil {
		return HeartBeat{}, err
	}
	return HeartBeat{
		Serial:   serial,
		Firmware: binary.LittleEndian.Uint32(b[0:4]),
		Uptime:   binary.LittleEndian.Uint32(b[4:8]),
		Rloc16:   binary.LittleEndian.Uint16(b[8:10]),
		InfoBits: binary.LittleEndian.Uint16(b[10:12]),
		Status:   codes.DevStatusFromCode(b[12]),
		DevType:  codes.DevTypeFromCode(b[13]),
		Variant:  HeartBeatKeyed,
	}, nil
}

// EncodeLegacy produces the 16-byte frame decoded by DecodeHeartBeat.
func (hb HeartBeat) EncodeLegacy() []byte {
	b := make([]byte, HeartBeatLegacySize)
	binary.LittleEndian.PutUint64(b[0:8], hb.Serial)
	binary.LittleEndian.PutUint32(b[8:12], hb.Firmware)
	b[12] = hb.Status.Code()
	b[13] = hb.DevType.Code()
	binary.LittleEndian.PutUint16(b[14:16], hb.Rloc16)
	return b
}

// EncodeKeyed produces the 14-byte frame decoded by DecodeHeartBeatKeyed.
func (hb HeartBeat) EncodeKeyed() []byte {
	b := make([]byte, HeartBeatKeyedSize)
	binary.LittleEndian.PutUint32(b[0:4], hb.Firmware)
	binary.LittleEndian.PutUint32(b[4:8], hb.Uptime)
	binary.LittleEndian.PutUint16(b[8:10], hb.Rloc16)
	binary.LittleEndian.PutUint16(b[10:12], hb.InfoBits)
	b[12] = hb.Status.Code()
	b[13] = hb.DevType.Code()
	return b
}
