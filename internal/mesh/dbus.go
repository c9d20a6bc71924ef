//go:build !no_dbus

package mesh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"thread-go-home/internal/wire"
)

const (
	borderRouterIface = "io.openthread.BorderRouter"
	propertiesGet     = "org.freedesktop.DBus.Properties.Get"
)

// DBusStack reads the OpenThread border router agent over the system bus.
type DBusStack struct {
	iface         string
	machineIDPath string
	logger        *slog.Logger

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewDBusStack creates a stack for the agent serving the given Thread
// interface, usually "wpan0". The bus is connected on first use.
func NewDBusStack(iface, machineIDPath string, logger *slog.Logger) *DBusStack {
	return &DBusStack{
		iface:         iface,
		machineIDPath: machineIDPath,
		logger:        logger.With("component", "mesh"),
	}
}

func (s *DBusStack) connect() (*dbus.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && s.conn.Connected() {
		return s.conn, nil
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.conn = conn
	s.logger.Debug("system bus connected", "iface", s.iface)
	return conn, nil
}

func (s *DBusStack) Available() bool {
	_, err := s.connect()
	return err == nil
}

// Query fails with ErrUnavailable when the machine id cannot be read, since
// the border router cannot be identified without it.
func (s *DBusStack) Query(ctx context.Context) (*State, error) {
	hwid, err := MachineID(s.machineIDPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	conn, err := s.connect()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(borderRouterIface+"."+s.iface, dbus.ObjectPath("/io/openthread/BorderRouter/"+s.iface))
	get := func(name string) (dbus.Variant, error) {
		var v dbus.Variant
		err := obj.CallWithContext(ctx, propertiesGet, 0, borderRouterIface, name).Store(&v)
		if err != nil {
			return v, fmt.Errorf("%w: get %s: %v", ErrUnavailable, name, err)
		}
		return v, nil
	}

	st := State{HWID: hwid}
	v, err := get("Rloc16")
	if err != nil {
		return nil, err
	}
	if err := v.Store(&st.Rloc16); err != nil {
		return nil, fmt.Errorf("rloc16: %w", err)
	}

	v, err = get("DeviceRole")
	if err != nil {
		return nil, err
	}
	var role string
	if err := v.Store(&role); err != nil {
		return nil, fmt.Errorf("device role: %w", err)
	}
	if st.Role, err = ParseRole(role); err != nil {
		return nil, err
	}

	v, err = get("NeighborTable")
	if err != nil {
		return nil, err
	}
	st.Neighbors, err = parseNeighborTable(v.Value())
	if err != nil {
		return nil, err
	}

	return &st, nil
}

// Close releases the bus connection.
func (s *DBusStack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// parseNeighborTable decodes the agent's (tuquuyyyqqqbbbb) neighbor
// records: ext address, age, rloc16, link and MLE frame counters, link
// quality, average rssi, last rssi, error rates, version and four flags.
func parseNeighborTable(raw any) ([]wire.Neighbor, error) {
	var rows [][]any
	switch t := raw.(type) {
	case [][]any:
		rows = t
	case []any:
		for _, r := range t {
			row, ok := r.([]any)
			if !ok {
				return nil, fmt.Errorf("neighbor table: unexpected row %T", r)
			}
			rows = append(rows, row)
		}
	default:
		return nil, fmt.Errorf("neighbor table: unexpected type %T", raw)
	}

	out := make([]wire.Neighbor, 0, len(rows))
	for _, row := range rows {
		if len(row) < 15 {
			return nil, fmt.Errorf("neighbor table: row has %d fields", len(row))
		}
		var n wire.Neighbor
		var ok [8]bool
		n.Rloc16, ok[0] = row[2].(uint16)
		n.LinkQuality, ok[1] = row[5].(byte)
		var avg, last byte
		avg, ok[2] = row[6].(byte)
		last, ok[3] = row[7].(byte)
		n.AverageRSSI, n.LastRSSI = int8(avg), int8(last)
		n.RadioAlwaysOn, ok[4] = row[11].(bool)
		n.FullThreadDevice, ok[5] = row[12].(bool)
		n.FullNetworkData, ok[6] = row[13].(bool)
		n.IsChild, ok[7] = row[14].(bool)
		for i, good := range ok {
			if !good {
				return nil, fmt.Errorf("neighbor table: field %d has the wrong type", i)
			}
		}
		out = append(out, n)
	}
	return out, nil
}
