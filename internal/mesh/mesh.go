// Package mesh queries the local Thread stack for the border router's own
// view of the network.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"thread-go-home/internal/wire"
)

// ErrUnavailable is returned when the mesh stack cannot be queried, either
// because the integration is disabled or the local IPC call failed.
var ErrUnavailable = errors.New("mesh stack unavailable")

// Stack is the local mesh stack.
type Stack interface {
	// Available reports whether queries can currently be made.
	Available() bool
	// Query reads the current address, role and neighbor table.
	Query(ctx context.Context) (*State, error)
}

// State is one snapshot of the border router's mesh state.
type State struct {
	Rloc16    uint16          `json:"rloc16"`
	Role      Role            `json:"role"`
	HWID      uint64          `json:"hwid,string"`
	Neighbors []wire.Neighbor `json:"neighbors"`
}

func (State) Kind() string { return "MeshState" }

// Role is the device role reported by the stack.
type Role string

const (
	RoleDisabled Role = "disabled"
	RoleDetached Role = "detached"
	RoleChild    Role = "child"
	RoleRouter   Role = "router"
	RoleLeader   Role = "leader"
)

// ParseRole accepts the role strings used by the stack.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleDisabled, RoleDetached, RoleChild, RoleRouter, RoleLeader:
		return r, nil
	}
	return "", fmt.Errorf("unknown device role %q", s)
}

// Connected reports whether the role means the node is attached to a network.
func (r Role) Connected() bool {
	switch r {
	case RoleChild, RoleRouter, RoleLeader:
		return true
	}
	return false
}

// Disabled is a Stack that is never available.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Query(context.Context) (*State, error) { return nil, ErrUnavailable }

// MachineID reads the host id from path and keeps its low 64 bits.
func MachineID(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read machine id: %w", err)
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 16 {
		s = s[len(s)-16:]
	}
	id, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse machine id: %w", err)
	}
	return id, nil
}
