package device

import (
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"

	"thread-go-home/internal/codes"
	"thread-go-home/internal/wire"
)

// View is the API representation of a device at a point in time.
type View struct {
	ID          string                 `json:"id"`
	DeviceKind  Kind                   `json:"deviceKind"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Type        codes.DevType          `json:"type"`
	TypeName    string                 `json:"typeName"`
	TypeLabel   string                 `json:"typeLabel"`
	Rloc16      uint16                 `json:"rloc16"`
	Status      codes.DevStatus        `json:"status"`
	StatusName  string                 `json:"statusName"`
	LastActive  time.Time              `json:"lastActive"`
	Uptime      *uint32                `json:"uptime,omitempty"`
	Firmware    string                 `json:"firmware,omitempty"`
	FirmwareTag string                 `json:"firmwareTag,omitempty"`
	Readings    map[string]float64     `json:"readings,omitempty"`
	Connected   []wire.ConnectedDevice `json:"connected,omitempty"`
}

func (View) Kind() string { return "Device" }

// NewView renders d with its status evaluated at now.
func NewView(d Device, now time.Time) View {
	in := d.Record()
	status := d.EffectiveStatus(now)
	v := View{
		ID:          strconv.FormatUint(in.Serial, 10),
		DeviceKind:  d.Kind(),
		Name:        d.DisplayName(),
		Description: in.Description,
		Type:        in.DevType,
		TypeName:    d.DeviceTypeName(),
		TypeLabel:   in.DevType.Label(),
		Rloc16:      in.Rloc16,
		Status:      status,
		StatusName:  status.String(),
		LastActive:  in.LastSeen,
		Connected:   in.ConnectedDevices(),
	}
	if secs, ok := d.Uptime(); ok {
		u := uint32(secs / time.Second)
		v.Uptime = &u
	}
	if fw, ok := d.FirmwareVersion(); ok {
		v.Firmware = FirmwareString(fw)
	}
	if tag, ok := d.FirmwareTag(); ok {
		v.FirmwareTag = tag
	}
	if r := d.Readings(); len(r) > 0 {
		v.Readings = r
	}
	return v
}

// FirmwareString renders version bytes a.b.c.d as "a.b.c+d".
func FirmwareString(v [4]byte) string {
	return semver.New(uint64(v[0]), uint64(v[1]), uint64(v[2]), "", strconv.Itoa(int(v[3]))).String()
}
