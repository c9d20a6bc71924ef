package store

import (
	"errors"

	"thread-go-home/internal/device"
	"thread-go-home/internal/mesh"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	// SaveDevice writes dev unless the stored copy has a higher revision.
	SaveDevice(dev device.Device) error
	GetDevice(serial uint64) (device.Device, error)
	DeleteDevice(serial uint64) error
	ListDevices() ([]device.Device, error)

	// Network configuration
	SaveNetworkConfig(cfg *mesh.NetConfig) error
	GetNetworkConfig() (*mesh.NetConfig, error)
	SaveJoiner(j mesh.JoinerData) error
	GetJoiner() (mesh.JoinerData, error)

	// Close the store
	Close() error
}
