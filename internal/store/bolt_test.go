package store

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"thread-go-home/internal/codes"
	"thread-go-home/internal/device"
	"thread-go-home/internal/mesh"
	"thread-go-home/internal/wire"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetDevice(t *testing.T) {
	s := newTestStore(t)

	fw := uint32(0x01020304)
	dev := device.New(0x0123456789ABCDEF, codes.DevTypeHortiLed)
	in := dev.Record()
	in.Name = "Bench 3"
	in.Rloc16 = 0x5C01
	in.Status = codes.StatusRunningOk
	in.Firmware = &fw
	in.LastSeen = time.Now().Truncate(time.Millisecond).UTC()
	in.Connected = []wire.ConnectedDevice{{Type: codes.ConnectedHortiLed1, Index: 0}}

	if err := s.SaveDevice(dev); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDevice(0x0123456789ABCDEF)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind() != device.KindLedPanel {
		t.Errorf("kind = %s, want %s", got.Kind(), device.KindLedPanel)
	}
	g := got.Record()
	if g.Name != "Bench 3" {
		t.Errorf("name = %q", g.Name)
	}
	if g.Rloc16 != 0x5C01 {
		t.Errorf("rloc16 = 0x%04X", g.Rloc16)
	}
	if g.Firmware == nil || *g.Firmware != fw {
		t.Errorf("firmware = %v", g.Firmware)
	}
	if !g.LastSeen.Equal(in.LastSeen) {
		t.Errorf("last seen = %v, want %v", g.LastSeen, in.LastSeen)
	}
	if len(g.Connected) != 1 || g.Connected[0].Type != codes.ConnectedHortiLed1 {
		t.Errorf("connected = %+v", g.Connected)
	}
}

func TestDeleteDevice(t *testing.T) {
	s := newTestStore(t)

	dev := device.New(7, codes.DevTypeHortiPlantSensor)
	if err := s.SaveDevice(dev); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDevice(7); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetDevice(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	s := newTestStore(t)

	devs := []device.Device{
		device.New(0xFFFF000000000001, codes.DevTypeTeLys),
		device.New(2, codes.DevTypeWeatherStation),
		device.New(0x10, codes.DevTypeFromCode(42)),
	}
	for _, d := range devs {
		if err := s.SaveDevice(d); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("list count = %d, want 3", len(list))
	}

	// Keys are fixed width hex so the list comes back in serial order.
	want := []struct {
		serial uint64
		kind   device.Kind
	}{
		{2, device.KindEnvSensor},
		{0x10, device.KindRouter},
		{0xFFFF000000000001, device.KindTeLys},
	}
	for i, w := range want {
		if list[i].Identity() != w.serial || list[i].Kind() != w.kind {
			t.Errorf("list[%d] = %016X/%s, want %016X/%s", i, list[i].Identity(), list[i].Kind(), w.serial, w.kind)
		}
	}
}

func TestGetDeviceNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDevice(0xFFFFFFFFFFFFFFFF)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveDeviceKeepsNewerRevision(t *testing.T) {
	s := newTestStore(t)

	newer := device.New(99, codes.DevTypeHortiLed)
	newer.Record().Revision = 5
	newer.Record().Description = "north wall"
	if err := s.SaveDevice(newer); err != nil {
		t.Fatal(err)
	}

	older := device.New(99, codes.DevTypeHortiLed)
	older.Record().Revision = 4
	older.Record().Description = "stale"
	if err := s.SaveDevice(older); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetDevice(99)
	if err != nil {
		t.Fatal(err)
	}
	if got.Record().Description != "north wall" || got.Record().Revision != 5 {
		t.Errorf("stored %q rev %d, want north wall rev 5", got.Record().Description, got.Record().Revision)
	}

	older.Record().Revision = 6
	if err := s.SaveDevice(older); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetDevice(99)
	if got.Record().Description != "stale" {
		t.Errorf("description = %q, want stale", got.Record().Description)
	}
}

func TestSaveAndGetNetworkConfig(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetNetworkConfig(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	cfg := &mesh.NetConfig{
		Updated:     &ts,
		NetworkName: "greenhouse",
		TLV:         []byte{0x0E, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00},
	}
	if err := s.SaveNetworkConfig(cfg); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetNetworkConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got.NetworkName != "greenhouse" {
		t.Errorf("network name = %q", got.NetworkName)
	}
	if !bytes.Equal(got.TLV, cfg.TLV) {
		t.Errorf("tlv = %x, want %x", got.TLV, cfg.TLV)
	}
	if got.Updated == nil || !got.Updated.Equal(ts) {
		t.Errorf("updated = %v", got.Updated)
	}
}

func TestSaveAndGetJoiner(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetJoiner(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	eui := uint64(0x00124B0001020304)
	pskd := "J01NME"
	if err := s.SaveJoiner(mesh.NewJoiner(&eui, &pskd)); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetJoiner()
	if err != nil {
		t.Fatal(err)
	}
	if got.EUI64 == nil || *got.EUI64 != eui || got.PSKd == nil || *got.PSKd != pskd {
		t.Errorf("joiner = %s", got.JSON())
	}

	if err := s.SaveJoiner(mesh.NewJoiner(nil, &pskd)); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetJoiner()
	if got.EUI64 != nil {
		t.Errorf("eui64 kept after overwrite: %s", got.JSON())
	}
}
