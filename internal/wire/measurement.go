package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	"thread-go-home/internal/codes"
)

const MeasurementSize = 12

// Measurement is one sensor report. Value1 and Value2 are either an
// integer/micro-unit pair or two independent values, depending on Type.
type Measurement struct {
	Channel   codes.SensorChannel   `json:"channel"`
	Type      codes.MeasurementType `json:"type"`
	Value1    int32                 `json:"value1"`
	Value2    int32                 `json:"value2"`
	Timestamp *time.Time            `json:"timestamp,omitempty"`
}

func (Measurement) Kind() string { return "Measurement" }

// Float combines the pair as value1 + value2 * 1e-6.
func (m Measurement) Float() float64 {
	return float64(m.Value1) + float64(m.Value2)*1e-6
}

func (m Measurement) String() string {
	return fmt.Sprintf("Measurement ch:%d %s %d/%d", m.Channel.Code(), m.Type, m.Value1, m.Value2)
}

// DecodeMeasurement decodes channel u8, type u8, two reserved bytes, value1 i32, value2 i32.
func DecodeMeasurement(b []byte) (Measurement, error) {
	if err := checkExact("measurement", b, MeasurementSize); err != nil {
		return Measurement{}, err
	}
	return Measurement{
		Channel: codes.SensorChannelFromCode(b[0]),
		Type:    codes.MeasurementTypeFromCode(b[1]),
		Value1:  int32(binary.LittleEndian.Uint32(b[4:8])),
		Value2:  int32(binary.LittleEndian.Uint32(b[8:12])),
	}, nil
}

// Encode produces the 12-byte device frame.
func (m Measurement) Encode() []byte {
	b := make([]byte, MeasurementSize)
	b[0] = m.Channel.Code()
	b[1] = m.Type.Code()
	binary.LittleEndian.PutUint32(b[4:8], uint32(m.Value1))
	binary.LittleEndian.PutUint32(b[8:12], uint32(m.Value2))
	return b
}
