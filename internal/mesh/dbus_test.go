//go:build !no_dbus

package mesh

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func neighborRow(rloc uint16, lq, avg, last byte, rxOn, ftd, fnd, child bool) []any {
	return []any{
		uint64(0x1122334455667788), uint32(12), rloc, uint32(100), uint32(200),
		lq, avg, last, uint16(0), uint16(0), uint16(4),
		rxOn, ftd, fnd, child,
	}
}

func TestParseNeighborTable(t *testing.T) {
	raw := [][]any{
		neighborRow(0x0400, 3, byte(0xC0), byte(0xBF), true, true, false, false), // -64, -65
		neighborRow(0x0401, 1, byte(0xA6), byte(0xA6), false, false, false, true),
	}
	ns, err := parseNeighborTable(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(ns) != 2 {
		t.Fatalf("got %d neighbors", len(ns))
	}
	n := ns[0]
	if n.Rloc16 != 0x0400 || n.LinkQuality != 3 || n.AverageRSSI != -64 || n.LastRSSI != -65 {
		t.Errorf("neighbor 0 = %+v", n)
	}
	if !n.RadioAlwaysOn || !n.FullThreadDevice || n.FullNetworkData || n.IsChild {
		t.Errorf("neighbor 0 flags = %+v", n)
	}
	if !ns[1].IsChild || ns[1].RadioAlwaysOn {
		t.Errorf("neighbor 1 flags = %+v", ns[1])
	}

	// The same rows as a flat []any.
	flat := []any{raw[0], raw[1]}
	if got, err := parseNeighborTable(flat); err != nil || len(got) != 2 {
		t.Errorf("flat rows: %v, %v", got, err)
	}
}

func TestParseNeighborTableErrors(t *testing.T) {
	bad := []any{
		"nope",
		[][]any{{uint16(1)}},
		[][]any{neighborRow(1, 1, 1, 1, true, true, true, true)[:14]},
		[]any{42},
	}
	for _, b := range bad {
		if _, err := parseNeighborTable(b); err == nil {
			t.Errorf("accepted %v", b)
		}
	}

	row := neighborRow(1, 1, 1, 1, true, true, true, true)
	row[2] = uint32(1)
	if _, err := parseNeighborTable([][]any{row}); err == nil {
		t.Error("accepted wrong rloc16 type")
	}
}

func TestDBusQueryNeedsMachineID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewDBusStack("wpan0", filepath.Join(t.TempDir(), "machine-id"), logger)
	defer s.Close()

	st, err := s.Query(context.Background())
	if st != nil || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Query() = %v, %v", st, err)
	}
	if !strings.Contains(err.Error(), "machine id") {
		t.Errorf("error = %v", err)
	}
}
