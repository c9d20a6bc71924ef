// Package wire decodes the fixed-layout binary frames sent by mesh devices.
//
// All multi-byte fields are little-endian. Decoders never return partial
// results: a buffer of the wrong length yields a *FrameSizeError.
package wire

import (
	"errors"
	"fmt"
)

// ErrFrameSize is matched by every *FrameSizeError.
var ErrFrameSize = errors.New("frame size mismatch")

// FrameSizeError reports a buffer whose length does not fit the frame layout.
type FrameSizeError struct {
	Frame  string
	Got    int
	Want   int  // exact size, or record size when Record is set
	Record bool // the frame is an array of Want-sized records
}

func (e *FrameSizeError) Error() string {
	if e.Record {
		return fmt.Sprintf("%s frame: %d bytes is not a multiple of the %d-byte record", e.Frame, e.Got, e.Want)
	}
	return fmt.Sprintf("%s frame: got %d bytes, want %d", e.Frame, e.Got, e.Want)
}

func (e *FrameSizeError) Is(target error) bool { return target == ErrFrameSize }

func checkExact(frame string, b []byte, want int) error {
	if len(b) != want {
		return &FrameSizeError{Frame: frame, Got: len(b), Want: want}
	}
	return nil
}

func checkRecords(frame string, b []byte, rec int) error {
	if len(b)%rec != 0 {
		return &FrameSizeError{Frame: frame, Got: len(b), Want: rec, Record: true}
	}
	return nil
}

// decodeRecords splits b into rec-sized records and decodes each one.
func decodeRecords[T any](frame string, b []byte, rec int, dec func([]byte) T) ([]T, error) {
	if err := checkRecords(frame, b, rec); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(b)/rec)
	for off := 0; off < len(b); off += rec {
		out = append(out, dec(b[off:off+rec]))
	}
	return out, nil
}
