//go:build !no_automation

package main

import (
	"log/slog"

	"thread-go-home/internal/automation"
	"thread-go-home/internal/hub"
	"thread-go-home/internal/web"
)

type autoStopper struct {
	engine *automation.Engine
}

func (a *autoStopper) Stop() {
	if a.engine != nil {
		a.engine.Stop()
	}
}

func initAutomation(h *hub.Hub, cfg *Config, logger *slog.Logger) (*autoStopper, []web.ServerOption) {
	scriptMgr, err := automation.NewManager(cfg.Automation.ScriptsDir, logger)
	if err != nil {
		logger.Error("create script manager", "err", err)
		return &autoStopper{}, nil
	}

	var opts []automation.EngineOption
	if cfg.Automation.RunTimeout > 0 {
		opts = append(opts, automation.WithRunTimeout(cfg.Automation.RunTimeout))
	}
	engine := automation.NewEngine(h, scriptMgr, logger, opts...)
	engine.Start()

	return &autoStopper{engine: engine}, []web.ServerOption{
		web.WithAutomation(engine, scriptMgr),
	}
}
