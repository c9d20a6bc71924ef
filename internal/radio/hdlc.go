package radio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	hdlcFlag   = 0x7E
	hdlcEscape = 0x7D
	hdlcXor    = 0x20
)

// ErrBadFCS is returned for a frame whose check sequence does not match.
var ErrBadFCS = errors.New("hdlc: bad frame check sequence")

// CRC-16/CCITT as used by HDLC (reflected 0x1021, init and final 0xFFFF).
var fcsTable [256]uint16

func init() {
	const poly = 0x8408
	for i := range fcsTable {
		crc := uint16(i)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		fcsTable[i] = crc
	}
}

func fcs16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = (crc >> 8) ^ fcsTable[(crc^uint16(b))&0xFF]
	}
	return crc ^ 0xFFFF
}

// hdlcEncode wraps data with flags, escaping and a little-endian FCS.
func hdlcEncode(data []byte) []byte {
	var fcs [2]byte
	binary.LittleEndian.PutUint16(fcs[:], fcs16(data))

	out := make([]byte, 0, len(data)+8)
	out = append(out, hdlcFlag)
	for _, b := range append(data[:len(data):len(data)], fcs[:]...) {
		if b == hdlcFlag || b == hdlcEscape {
			out = append(out, hdlcEscape, b^hdlcXor)
			continue
		}
		out = append(out, b)
	}
	return append(out, hdlcFlag)
}

// hdlcDecode unescapes the bytes between two flags and checks the FCS.
func hdlcDecode(inner []byte) ([]byte, error) {
	buf := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		b := inner[i]
		if b == hdlcEscape {
			i++
			if i == len(inner) {
				return nil, fmt.Errorf("hdlc: dangling escape")
			}
			b = inner[i] ^ hdlcXor
		}
		buf = append(buf, b)
	}
	if len(buf) < 2 {
		return nil, fmt.Errorf("hdlc: frame too short (%d bytes)", len(buf))
	}
	data, fcs := buf[:len(buf)-2], binary.LittleEndian.Uint16(buf[len(buf)-2:])
	if fcs16(data) != fcs {
		return nil, ErrBadFCS
	}
	return data, nil
}

// readHDLCFrame returns the escaped bytes up to the next flag, skipping
// empty frames. Noise before the first flag comes back as a frame and fails
// the FCS check.
func readHDLCFrame(r *bufio.Reader) ([]byte, error) {
	for {
		chunk, err := r.ReadBytes(hdlcFlag)
		if err != nil {
			return nil, err
		}
		if len(chunk) > 1 {
			return chunk[:len(chunk)-1], nil
		}
	}
}
