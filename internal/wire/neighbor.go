package wire

import (
	"encoding/binary"
	"fmt"
)

const NeighborSize = 8

// Neighbor flag bits.
const (
	flagRadioAlwaysOn    = 1 << 0
	flagChild            = 1 << 1
	flagFullThreadDevice = 1 << 2
	flagFullNetworkData  = 1 << 3
)

// Neighbor is one entry of a router's neighbor table.
type Neighbor struct {
	Rloc16           uint16 `json:"rloc16"`
	LastRSSI         int8   `json:"rssi"`
	LinkQuality      uint8  `json:"mLinkQuality"`
	AverageRSSI      int8   `json:"mAverageRssi"`
	RadioAlwaysOn    bool   `json:"rxOnIdle"`
	IsChild          bool   `json:"child"`
	FullThreadDevice bool   `json:"ftd"`
	FullNetworkData  bool   `json:"fnd"`
}

func (Neighbor) Kind() string { return "Neighbor" }

func (n Neighbor) String() string {
	return fmt.Sprintf("Neighbor Rloc: %#06x, Rssi: %d, LinkQuality: %d, Child: %t, SED: %t, FTD: %t, FND: %t",
		n.Rloc16, n.AverageRSSI, n.LinkQuality, n.IsChild, !n.RadioAlwaysOn, n.FullThreadDevice, n.FullNetworkData)
}

// Flags packs the four booleans into the wire bit field.
func (n Neighbor) Flags() uint8 {
	var f uint8
	if n.RadioAlwaysOn {
		f |= flagRadioAlwaysOn
	}
	if n.IsChild {
		f |= flagChild
	}
	if n.FullThreadDevice {
		f |= flagFullThreadDevice
	}
	if n.FullNetworkData {
		f |= flagFullNetworkData
	}
	return f
}

// DecodeNeighbor decodes a single 8-byte record:
// rloc16 u16, link quality u8, last rssi i8, average rssi i8, flags u8, 2 bytes padding.
func DecodeNeighbor(b []byte) (Neighbor, error) {
	if err := checkExact("neighbor", b, NeighborSize); err != nil {
		return Neighbor{}, err
	}
	return decodeNeighbor(b), nil
}

// DecodeNeighbors decodes a neighbor table frame.
func DecodeNeighbors(b []byte) ([]Neighbor, error) {
	return decodeRecords("neighbor table", b, NeighborSize, decodeNeighbor)
}

func decodeNeighbor(b []byte) Neighbor {
	flags := b[5]
	return Neighbor{
		Rloc16:           binary.LittleEndian.Uint16(b[0:2]),
		LinkQuality:      b[2],
		LastRSSI:         int8(b[3]),
		AverageRSSI:      int8(b[4]),
		RadioAlwaysOn:    flags&flagRadioAlwaysOn != 0,
		IsChild:          flags&flagChild != 0,
		FullThreadDevice: flags&flagFullThreadDevice != 0,
		FullNetworkData:  flags&flagFullNetworkData != 0,
	}
}

// Encode produces the 8-byte record decoded by DecodeNeighbor.
func (n Neighbor) Encode() []byte {
	b := make([]byte, NeighborSize)
	binary.LittleEndian.PutUint16(b[0:2], n.Rloc16)
	b[2] = n.LinkQuality
	b[3] = byte(n.LastRSSI)
	b[4] = byte(n.AverageRSSI)
	b[5] = n.Flags()
	return b
}

// EncodeNeighbors concatenates the records of a neighbor table.
func EncodeNeighbors(ns []Neighbor) []byte {
	b := make([]byte, 0, len(ns)*NeighborSize)
	for _, n := range ns {
		b = append(b, n.Encode()...)
	}
	return b
}
