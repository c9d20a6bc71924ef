//go:build no_dbus

package mesh

import (
	"context"
	"log/slog"
)

// DBusStack is compiled out; every query reports ErrUnavailable.
type DBusStack struct{}

func NewDBusStack(iface, machineIDPath string, logger *slog.Logger) *DBusStack {
	logger.Info("mesh stack support not compiled in")
	return &DBusStack{}
}

func (*DBusStack) Available() bool { return false }

func (*DBusStack) Query(context.Context) (*State, error) { return nil, ErrUnavailable }

func (*DBusStack) Close() error { return nil }
