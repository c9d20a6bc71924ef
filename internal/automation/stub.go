//go:build no_automation

// Package automation is compiled out; every call is a no-op.
package automation

import (
	"errors"
	"log/slog"
	"time"

	"thread-go-home/internal/hub"
)

// ErrScriptNotFound is returned for an id with no script file.
var ErrScriptNotFound = errors.New("script not found")

var errDisabled = errors.New("automation disabled")

// DefaultRunTimeout bounds one-shot script runs.
const DefaultRunTimeout = 5 * time.Second

// ScriptMeta holds user-editable metadata for a script.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script is a single hook script stored on disk.
type Script struct {
	ID       string     `json:"id"`
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"`
	FilePath string     `json:"-"`
}

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// Manager is a no-op stub when automation is disabled.
type Manager struct{}

// NewManager returns a nil manager when automation is disabled.
func NewManager(_ string, _ *slog.Logger) (*Manager, error) { return nil, nil }

func (m *Manager) Dir() string { return "" }

func (m *Manager) List() ([]*Script, error) { return nil, nil }

func (m *Manager) Get(id string) (*Script, error) { return nil, ErrScriptNotFound }

func (m *Manager) Save(s *Script) (*Script, error) { return nil, errDisabled }

func (m *Manager) Delete(_ string) error { return errDisabled }

// Engine is a no-op stub when automation is disabled.
type Engine struct{}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithRunTimeout(time.Duration) EngineOption { return func(*Engine) {} }

func NewEngine(_ *hub.Hub, _ *Manager, _ *slog.Logger, _ ...EngineOption) *Engine {
	return &Engine{}
}

func (e *Engine) Start() {}

func (e *Engine) Stop() {}

func (e *Engine) Running() int { return 0 }

func (e *Engine) ReloadScript(_ string) error { return nil }

func (e *Engine) StopScript(_ string) {}

func (e *Engine) RunScript(_ string) *RunResult {
	return &RunResult{OK: false, Error: errDisabled.Error(), Logs: []string{}}
}

func (e *Engine) RunLuaCode(_ string) *RunResult {
	return &RunResult{OK: false, Error: errDisabled.Error(), Logs: []string{}}
}
