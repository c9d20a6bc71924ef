package codes

// DevStatus is the device status code reported in heartbeats.
type DevStatus uint8

const (
	StatusUnknown     DevStatus = 0
	StatusError       DevStatus = 1
	StatusRunningOk   DevStatus = 2
	StatusDownloading DevStatus = 3
	StatusFlashing    DevStatus = 4
	StatusRebooting   DevStatus = 5
	StatusOffline     DevStatus = 6
)

var statuses = newTable(map[DevStatus]string{
	StatusError:       "Error",
	StatusRunningOk:   "RunningOk",
	StatusDownloading: "Downloading",
	StatusFlashing:    "Flashing",
	StatusRebooting:   "Rebooting",
	StatusOffline:     "Offline",
})

func DevStatusFromCode(c uint8) DevStatus { return DevStatus(c) }

func (s DevStatus) Code() uint8 { return uint8(s) }

func (s DevStatus) Known() bool {
	_, ok := statuses.name(s)
	return ok
}

func (s DevStatus) String() string {
	if n, ok := statuses.name(s); ok {
		return n
	}
	if s == StatusUnknown {
		return "Unknown"
	}
	return unnamed("Unknown", int64(s))
}

// ParseDevStatus accepts the names produced by String; anything else is StatusUnknown.
func ParseDevStatus(name string) DevStatus {
	return statuses.parse(name, StatusUnknown)
}
