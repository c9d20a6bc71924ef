package wire

import (
	"encoding/binary"

	"thread-go-home/internal/codes"
)

const ConnectedDeviceSize = 4

// ConnectedDevice is a peripheral attached to a parent device, such as a
// driver channel of an LED panel.
type ConnectedDevice struct {
	Type  codes.ConnectedType `json:"type"`
	Index uint16              `json:"index"`
}

func (ConnectedDevice) Kind() string { return "DevicesConnected" }

// DecodeConnectedDevices decodes records of type u16 followed by index u16.
func DecodeConnectedDevices(b []byte) ([]ConnectedDevice, error) {
	return decodeRecords("connected devices", b, ConnectedDeviceSize, func(r []byte) ConnectedDevice {
		return ConnectedDevice{
			Type:  codes.ConnectedTypeFromCode(int32(binary.LittleEndian.Uint16(r[0:2]))),
			Index: binary.LittleEndian.Uint16(r[2:4]),
		}
	})
}

// EncodeConnectedDevices produces the frame decoded by DecodeConnectedDevices.
// Type codes outside 0..65535 are written as 0.
func EncodeConnectedDevices(ds []ConnectedDevice) []byte {
	b := make([]byte, len(ds)*ConnectedDeviceSize)
	for i, d := range ds {
		code := d.Type.Code()
		if code < 0 || code > 0xFFFF {
			code = 0
		}
		off := i * ConnectedDeviceSize
		binary.LittleEndian.PutUint16(b[off:off+2], uint16(code))
		binary.LittleEndian.PutUint16(b[off+2:off+4], d.Index)
	}
	return b
}
