package mesh

import "time"

// NetConfig is the stored Thread network configuration. TLV holds the
// active operational dataset and is base64 encoded in JSON.
type NetConfig struct {
	Updated     *time.Time `json:"updated,omitempty"`
	NetworkName string     `json:"networkName"`
	TLV         []byte     `json:"tlv,omitempty"`
}

func (NetConfig) Kind() string { return "OtNetConfig" }

func (c NetConfig) HasTLV() bool { return len(c.TLV) > 0 }

func (c NetConfig) HasName() bool { return c.NetworkName != "" }

// Timestamp returns the update time, or the zero time if never set.
func (c NetConfig) Timestamp() time.Time {
	if c.Updated == nil {
		return time.Time{}
	}
	return *c.Updated
}
