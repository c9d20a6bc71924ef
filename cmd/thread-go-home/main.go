package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"thread-go-home/internal/hub"
	"thread-go-home/internal/mesh"
	"thread-go-home/internal/radio"
	"thread-go-home/internal/store"
	"thread-go-home/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		Discovery   bool   `yaml:"discovery"`
	} `yaml:"mqtt"`
	Serial struct {
		Port string `yaml:"port"` // empty disables the radio
		Baud int    `yaml:"baud"`
	} `yaml:"serial"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Mesh struct {
		Enabled       bool          `yaml:"enabled"`
		Interface     string        `yaml:"interface"`
		MachineIDPath string        `yaml:"machine_id_path"`
		PollInterval  time.Duration `yaml:"poll_interval"`
	} `yaml:"mesh"`
	Automation struct {
		ScriptsDir string        `yaml:"scripts_dir"`
		RunTimeout time.Duration `yaml:"run_timeout"`
	} `yaml:"automation"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// defaultConfig returns the values used for every key the file leaves out.
func defaultConfig() *Config {
	var cfg Config
	cfg.MQTT.TopicPrefix = "thread"
	cfg.MQTT.Discovery = true
	cfg.Serial.Baud = 115200
	cfg.Web.Listen = "127.0.0.1:8080"
	cfg.Store.Path = "thread-home.db"
	cfg.Mesh.Enabled = true
	cfg.Mesh.Interface = "wpan0"
	cfg.Mesh.MachineIDPath = "/etc/machine-id"
	cfg.Mesh.PollInterval = hub.DefaultPollInterval
	cfg.Automation.ScriptsDir = "scripts"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

func (c *Config) validate() error {
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
			return fmt.Errorf("mqtt.topic_prefix must be a non-empty topic without wildcards")
		}
	}
	if c.Serial.Port != "" && c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Web.Listen == "" {
		return fmt.Errorf("web.listen is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Mesh.Enabled && c.Mesh.PollInterval <= 0 {
		return fmt.Errorf("mesh.poll_interval must be positive")
	}
	if c.Automation.RunTimeout < 0 {
		return fmt.Errorf("automation.run_timeout must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("thread-go-home starting", "version", version)

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	stack, closeStack := createStack(cfg, logger)
	defer closeStack()

	events := hub.NewEventBus(logger)
	h := hub.New(db, stack, events, logger, hub.WithPollInterval(cfg.Mesh.PollInterval))
	if err := h.Load(); err != nil {
		logger.Error("load devices", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)

	// Serial radio is optional; MQTT can be the only transport.
	var rd *radio.Radio
	if cfg.Serial.Port != "" {
		rd, err = radio.Open(radio.Config{Port: cfg.Serial.Port, Baud: cfg.Serial.Baud}, h, logger)
		if err != nil {
			logger.Error("open radio", "port", cfg.Serial.Port, "err", err)
			h.Stop()
			os.Exit(1)
		}
		h.AddSettingWriter(rd)
	}

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(h, cfg, logger)

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(h, cfg, logger)

	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithVersion(version))
	webOpts = append(webOpts, autoWebOpts...)

	webServer := web.NewServer(h, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	if rd != nil {
		if err := rd.Close(); err != nil {
			logger.Error("close radio", "err", err)
		}
	}
	h.Stop()

	logger.Info("goodbye")
}

// createStack returns the mesh stack and a func releasing it.
func createStack(cfg *Config, logger *slog.Logger) (mesh.Stack, func()) {
	if !cfg.Mesh.Enabled {
		logger.Info("mesh stack disabled")
		return mesh.Disabled{}, func() {}
	}
	s := mesh.NewDBusStack(cfg.Mesh.Interface, cfg.Mesh.MachineIDPath, logger)
	return s, func() {
		if err := s.Close(); err != nil {
			logger.Warn("close mesh stack", "err", err)
		}
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

// parseConfig decodes data over the defaults, so keys absent from the file
// keep their default values.
func parseConfig(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
