package mesh

import (
	"encoding/json"
	"fmt"
)

// JoinerData names a device allowed to join the network and the PSKd it
// authenticates with. Either part may be missing.
type JoinerData struct {
	EUI64 *uint64 `json:"euid64"`
	PSKd  *string `json:"pskd"`
}

func (JoinerData) Kind() string { return "JoinerData" }

// NewJoiner builds joiner data from optional parts.
func NewJoiner(eui64 *uint64, pskd *string) JoinerData {
	j := JoinerData{}
	if eui64 != nil {
		v := *eui64
		j.EUI64 = &v
	}
	if pskd != nil {
		v := *pskd
		j.PSKd = &v
	}
	return j
}

// ParseJoiner decodes joiner data. Input that is not a valid joiner object
// yields empty joiner data.
func ParseJoiner(data []byte) JoinerData {
	var j JoinerData
	if err := json.Unmarshal(data, &j); err != nil {
		return JoinerData{}
	}
	return j
}

// JSON encodes the joiner data, with missing parts as null.
func (j JoinerData) JSON() string {
	data, err := json.Marshal(j)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (j JoinerData) Empty() bool { return j.EUI64 == nil && j.PSKd == nil }

// Validate checks the PSKd against the Thread commissioning rules: 6 to 32
// characters of uppercase letters and digits, without I, O, Q and Z.
func (j JoinerData) Validate() error {
	if j.PSKd == nil {
		return nil
	}
	p := *j.PSKd
	if len(p) < 6 || len(p) > 32 {
		return fmt.Errorf("pskd must be 6 to 32 characters, got %d", len(p))
	}
	for _, c := range p {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z' && c != 'I' && c != 'O' && c != 'Q' && c != 'Z':
		default:
			return fmt.Errorf("pskd has invalid character %q", c)
		}
	}
	return nil
}
