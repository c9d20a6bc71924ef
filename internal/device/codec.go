package device

import (
	"encoding/json"
	"fmt"
)

type tagged struct {
	Kind   Kind            `json:"kind"`
	Device json.RawMessage `json:"device"`
}

// Marshal encodes a device together with its kind so Unmarshal can
// restore the same variant.
func Marshal(d Device) ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tagged{Kind: d.Kind(), Device: body})
}

// Unmarshal decodes data written by Marshal.
func Unmarshal(data []byte) (Device, error) {
	var t tagged
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	d := newOfKind(t.Kind)
	if d == nil {
		return nil, fmt.Errorf("unknown device kind %q", t.Kind)
	}
	if err := json.Unmarshal(t.Device, d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.Kind, err)
	}
	return d, nil
}
