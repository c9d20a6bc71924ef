package wire

import (
	"cmp"
	"encoding/binary"
	"math"

	"thread-go-home/internal/codes"
)

const SettingSize = 12

// Setting is a device parameter value. Updated is a unix timestamp set by
// whoever last changed the value.
type Setting struct {
	Updated int32             `json:"updated"`
	Type    codes.SettingType `json:"typeId"`
	Channel int32             `json:"channel"`
	Value   int32             `json:"value"`
}

func (Setting) Kind() string { return "Settings" }

// CompareSettings orders settings by update time, type and channel.
// The value does not take part, so two writes of the same slot compare equal.
func CompareSettings(a, b Setting) int {
	if c := cmp.Compare(a.Updated, b.Updated); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	return cmp.Compare(a.Channel, b.Channel)
}

// DecodeSetting decodes type i16, channel i16, value i32, updated i32.
func DecodeSetting(b []byte) (Setting, error) {
	if err := checkExact("setting", b, SettingSize); err != nil {
		return Setting{}, err
	}
	return decodeSetting(b), nil
}

// DecodeSettings decodes a frame of consecutive setting records.
func DecodeSettings(b []byte) ([]Setting, error) {
	return decodeRecords("settings", b, SettingSize, decodeSetting)
}

func decodeSetting(b []byte) Setting {
	return Setting{
		Type:    codes.SettingTypeFromCode(int32(int16(binary.LittleEndian.Uint16(b[0:2])))),
		Channel: int32(int16(binary.LittleEndian.Uint16(b[2:4]))),
		Value:   int32(binary.LittleEndian.Uint32(b[4:8])),
		Updated: int32(binary.LittleEndian.Uint32(b[8:12])),
	}
}

// Encode produces the 12-byte device frame. Type and channel values that do
// not fit 16 bits are sent as 0.
func (s Setting) Encode() []byte {
	b := make([]byte, SettingSize)
	binary.LittleEndian.PutUint16(b[0:2], uint16(clampInt16(s.Type.Code())))
	binary.LittleEndian.PutUint16(b[2:4], uint16(clampInt16(s.Channel)))
	binary.LittleEndian.PutUint32(b[4:8], uint32(s.Value))
	binary.LittleEndian.PutUint32(b[8:12], uint32(s.Updated))
	return b
}

func clampInt16(v int32) int16 {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0
	}
	return int16(v)
}
