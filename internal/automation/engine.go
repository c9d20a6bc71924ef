//go:build !no_automation

// Package automation runs user Lua hooks against hub events.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"thread-go-home/internal/hub"
)

// DefaultRunTimeout bounds one-shot script runs.
const DefaultRunTimeout = 5 * time.Second

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// luaEventHandler is a Lua callback registered with on().
type luaEventHandler struct {
	eventType string // "*" matches every type
	serial    uint64 // 0 matches every device
	fn        *lua.LFunction
}

// scriptVM is the Lua state of one running script. All access to state
// goes through commands, drained by a single goroutine.
type scriptVM struct {
	id       string
	state    *lua.LState
	commands chan func(*lua.LState)
	handlers []luaEventHandler
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex // protects handlers

	// logf overrides the engine logger for log(); used by one-shot runs.
	logf func(msg string)
}

// Engine manages Lua VMs and dispatches hub events to scripts.
type Engine struct {
	hub        *hub.Hub
	manager    *Manager
	logger     *slog.Logger
	now        func() time.Time
	runTimeout time.Duration

	mu    sync.Mutex
	vms   map[string]*scriptVM
	wg    sync.WaitGroup
	unsub func()
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRunTimeout bounds RunLuaCode and RunScript.
func WithRunTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.runTimeout = d
		}
	}
}

// NewEngine creates an automation engine bound to h.
func NewEngine(h *hub.Hub, mgr *Manager, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		hub:        h,
		manager:    mgr,
		logger:     logger.With("component", "automation"),
		now:        h.Now,
		runTimeout: DefaultRunTimeout,
		vms:        make(map[string]*scriptVM),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start subscribes to the event bus and loads all enabled scripts.
func (e *Engine) Start() {
	e.unsub = e.hub.Events().OnAll(e.dispatchEvent)

	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}
	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}
	e.logger.Info("automation engine started", "scripts", e.Running())
}

// Stop unsubscribes from the event bus, stops every VM and waits for them
// to exit.
func (e *Engine) Stop() {
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}

	e.mu.Lock()
	vms := e.vms
	e.vms = make(map[string]*scriptVM)
	e.mu.Unlock()

	for _, vm := range vms {
		vm.cancel()
	}
	e.wg.Wait()
	e.logger.Info("automation engine stopped")
}

// Running returns the number of running scripts.
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.vms)
}

// ReloadScript stops the script's VM, if any, and starts it again when the
// script is enabled.
func (e *Engine) ReloadScript(id string) error {
	e.stopScript(id)

	s, err := e.manager.Get(id)
	if err != nil {
		return fmt.Errorf("get script: %w", err)
	}
	if !s.Meta.Enabled {
		return nil
	}
	return e.startScript(s)
}

// StopScript stops a running script.
func (e *Engine) StopScript(id string) {
	e.stopScript(id)
}

// RunScript executes a saved script once in a temporary VM.
func (e *Engine) RunScript(id string) *RunResult {
	start := time.Now()
	s, err := e.manager.Get(id)
	if err != nil {
		return &RunResult{OK: false, Error: err.Error(), Logs: []string{}, Duration: time.Since(start).String()}
	}
	return e.RunLuaCode(s.LuaCode)
}

// RunLuaCode executes code once in a temporary sandboxed VM, then calls
// each handler it registered with a synthetic event. Output of log() is
// captured in the result.
func (e *Engine) RunLuaCode(code string) *RunResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), e.runTimeout)
	defer cancel()

	L := newSandbox()
	defer L.Close()
	L.SetContext(ctx)

	logs := []string{}
	var logMu sync.Mutex
	vm := &scriptVM{
		id:       "_run",
		state:    L,
		commands: make(chan func(*lua.LState), 64),
		ctx:      ctx,
		cancel:   cancel,
		logf: func(msg string) {
			logMu.Lock()
			logs = append(logs, msg)
			logMu.Unlock()
		},
	}
	registerDeviceModule(L, vm, e)
	registerSystemModule(L, e)

	result := func(err error) *RunResult {
		logMu.Lock()
		defer logMu.Unlock()
		r := &RunResult{OK: err == nil, Logs: append([]string(nil), logs...), Duration: time.Since(start).String()}
		if err != nil {
			r.Error = luaError(err, e.runTimeout)
		}
		return r
	}

	if err := L.DoString(code); err != nil {
		e.logger.Warn("run script", "err", err)
		return result(err)
	}

	vm.mu.Lock()
	handlers := append([]luaEventHandler(nil), vm.handlers...)
	vm.mu.Unlock()

	for _, h := range handlers {
		ev := L.NewTable()
		ev.RawSetString("type", lua.LString(h.eventType))
		if h.serial != 0 {
			ev.RawSetString("serial", lua.LString(formatSerial(h.serial)))
		}
		if err := L.CallByParam(lua.P{Fn: h.fn, NRet: 0, Protect: true}, ev); err != nil {
			e.logger.Warn("run script handler", "event", h.eventType, "err", err)
			return result(err)
		}
	}
	return result(nil)
}

func luaError(err error, timeout time.Duration) string {
	msg := err.Error()
	if strings.Contains(msg, context.DeadlineExceeded.Error()) {
		return fmt.Sprintf("timeout (%s)", timeout)
	}
	return msg
}

// newSandbox returns a Lua state without file, process or module access.
func newSandbox() *lua.LState {
	L := lua.NewState()
	for _, name := range []string{"os", "io", "loadfile", "dofile", "require", "load", "loadstring", "debug", "package"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func (e *Engine) stopScript(id string) {
	e.mu.Lock()
	vm, ok := e.vms[id]
	delete(e.vms, id)
	e.mu.Unlock()

	if ok {
		vm.cancel()
		e.logger.Info("script stopped", "id", id)
	}
}

func (e *Engine) startScript(s *Script) error {
	ctx, cancel := context.WithCancel(context.Background())
	L := newSandbox()
	L.SetContext(ctx)

	vm := &scriptVM{
		id:       s.ID,
		state:    L,
		commands: make(chan func(*lua.LState), 64),
		ctx:      ctx,
		cancel:   cancel,
	}
	registerDeviceModule(L, vm, e)
	registerSystemModule(L, e)

	if err := L.DoString(s.LuaCode); err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("execute script %s: %w", s.ID, err)
	}

	e.mu.Lock()
	old := e.vms[s.ID]
	e.vms[s.ID] = vm
	e.mu.Unlock()
	if old != nil {
		old.cancel()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer L.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case fn := <-vm.commands:
				fn(L)
			}
		}
	}()

	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name)
	return nil
}

// dispatchEvent queues matching Lua handlers on their VMs. It never blocks:
// events for a VM whose queue is full are dropped.
func (e *Engine) dispatchEvent(event hub.Event) {
	e.mu.Lock()
	vms := maps.Clone(e.vms)
	e.mu.Unlock()

	for _, vm := range vms {
		vm.mu.Lock()
		handlers := append([]luaEventHandler(nil), vm.handlers...)
		vm.mu.Unlock()

		for _, h := range handlers {
			if !matchesHandler(h, event) {
				continue
			}
			if vm.ctx.Err() != nil {
				break
			}
			fn := h.fn
			select {
			case vm.commands <- func(L *lua.LState) { e.callHandler(L, vm, fn, event) }:
			default:
				e.logger.Warn("script command channel full, dropping event", "id", vm.id, "event", event.Type)
			}
		}
	}
}

func matchesHandler(h luaEventHandler, event hub.Event) bool {
	if h.eventType != "*" && h.eventType != event.Type {
		return false
	}
	return h.serial == 0 || h.serial == event.Serial
}

func (e *Engine) callHandler(L *lua.LState, vm *scriptVM, fn *lua.LFunction, event hub.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("lua handler panic", "id", vm.id, "err", r)
		}
	}()

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, eventTable(L, event)); err != nil {
		if vm.ctx.Err() == nil {
			e.logger.Error("lua handler error", "id", vm.id, "event", event.Type, "err", err)
		}
	}
}

// eventTable converts event to {type, serial, <data fields>}. Serials are
// hex strings since Lua numbers cannot hold every 64-bit value.
func eventTable(L *lua.LState, event hub.Event) *lua.LTable {
	t := L.NewTable()
	for k, v := range event.Data {
		t.RawSetString(k, goToLua(L, v))
	}
	t.RawSetString("type", lua.LString(event.Type))
	if event.Serial != 0 {
		t.RawSetString("serial", lua.LString(formatSerial(event.Serial)))
	}
	return t
}

func formatSerial(serial uint64) string {
	return fmt.Sprintf("%016X", serial)
}

// goToLua converts a Go value to a Lua value.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case fmt.Stringer:
		return lua.LString(val.String())
	case map[string]any:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, goToLua(L, vv))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}
