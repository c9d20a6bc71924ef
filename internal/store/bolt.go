package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"thread-go-home/internal/device"
	"thread-go-home/internal/mesh"
)

var (
	bucketDevices = []byte("devices")
	bucketNetwork = []byte("network")
	keyNetConfig  = []byte("config")
	keyJoiner     = []byte("joiner")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDevices, bucketNetwork} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// deviceKey is the serial as 16 hex digits so keys iterate in serial order.
func deviceKey(serial uint64) []byte {
	return []byte(fmt.Sprintf("%016x", serial))
}

func (s *BoltStore) SaveDevice(dev device.Device) error {
	data, err := device.Marshal(dev)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		key := deviceKey(dev.Identity())
		if old := b.Get(key); old != nil {
			// Saves can race; an older snapshot must not replace a newer one.
			if cur, err := device.Unmarshal(old); err == nil && cur.Record().Revision > dev.Record().Revision {
				return nil
			}
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) GetDevice(serial uint64) (device.Device, error) {
	var dev device.Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		data := b.Get(deviceKey(serial))
		if data == nil {
			return fmt.Errorf("device %016X: %w", serial, ErrNotFound)
		}
		var err error
		dev, err = device.Unmarshal(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (s *BoltStore) DeleteDevice(serial uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		return b.Delete(deviceKey(serial))
	})
}

func (s *BoltStore) ListDevices() ([]device.Device, error) {
	var devices []device.Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return nil // no bucket = no devices
		}
		devices = make([]device.Device, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			dev, err := device.Unmarshal(v)
			if err != nil {
				return fmt.Errorf("device %s: %w", k, err)
			}
			if want, _ := strconv.ParseUint(string(k), 16, 64); want != dev.Identity() {
				return fmt.Errorf("device %s: stored under the wrong key", k)
			}
			devices = append(devices, dev)
			return nil
		})
	})
	return devices, err
}

func (s *BoltStore) SaveNetworkConfig(cfg *mesh.NetConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNetwork)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNetwork)
		}
		return b.Put(keyNetConfig, data)
	})
}

func (s *BoltStore) GetNetworkConfig() (*mesh.NetConfig, error) {
	var cfg mesh.NetConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNetwork)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNetwork)
		}
		data := b.Get(keyNetConfig)
		if data == nil {
			return fmt.Errorf("network config: %w", ErrNotFound)
		}
		return json.Unmarshal(data, &cfg)
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *BoltStore) SaveJoiner(j mesh.JoinerData) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNetwork)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNetwork)
		}
		return b.Put(keyJoiner, []byte(j.JSON()))
	})
}

// GetJoiner returns ErrNotFound if no joiner was saved. A corrupt record
// reads as empty joiner data.
func (s *BoltStore) GetJoiner() (mesh.JoinerData, error) {
	var j mesh.JoinerData
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNetwork)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketNetwork)
		}
		data := b.Get(keyJoiner)
		if data == nil {
			return fmt.Errorf("joiner: %w", ErrNotFound)
		}
		j = mesh.ParseJoiner(data)
		return nil
	})
	return j, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
