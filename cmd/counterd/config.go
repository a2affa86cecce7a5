package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envPrefix prefixes every environment override, e.g. TICKCOUNTER_LOGGING_LEVEL.
const envPrefix = "TICKCOUNTER_"

// Config is the top-level YAML configuration for the counter daemon.
//
// Layering (later wins): DefaultConfig -> config file -> environment -> flags.
// Validate is called once on the result so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Counter initial state (also the reset target)
	Counter CounterConfig `yaml:"counter" envPrefix:"COUNTER_"`

	// Engine queue sizing
	Engine EngineFileConfig `yaml:"engine" envPrefix:"ENGINE_"`

	// IPC configuration (counterctl talks to this socket)
	IPC IPCConfig `yaml:"ipc" envPrefix:"IPC_"`

	// WebSocket UI surface
	WebSocket WebSocketConfig `yaml:"websocket" envPrefix:"WEBSOCKET_"`

	// Keyboard input devices
	Input InputConfig `yaml:"input" envPrefix:"INPUT_"`

	// Logging
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`
}

type CounterConfig struct {
	Count       int  `yaml:"count" env:"COUNT"`
	IsTicking   bool `yaml:"is_ticking" env:"IS_TICKING"`
	TickSpeedMS int  `yaml:"tick_speed_ms" env:"TICK_SPEED_MS"`
	CountDiff   int  `yaml:"count_diff" env:"COUNT_DIFF"`
	CountUp     bool `yaml:"count_up" env:"COUNT_UP"`

	// SetToOffset is added to count to produce the set-to field text on reset.
	SetToOffset int `yaml:"set_to_offset" env:"SET_TO_OFFSET"`
}

type EngineFileConfig struct {
	EventBuf      int `yaml:"event_buf" env:"EVENT_BUF"`
	SubscriberBuf int `yaml:"subscriber_buf" env:"SUBSCRIBER_BUF"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path" env:"SOCKET_PATH"`
}

type WebSocketConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	Listen       string `yaml:"listen" env:"LISTEN"`
	Path         string `yaml:"path" env:"PATH"`
	SendBuf      int    `yaml:"send_buf,omitempty" env:"SEND_BUF"`
	BroadcastBuf int    `yaml:"broadcast_buf,omitempty" env:"BROADCAST_BUF"`
}

type InputConfig struct {
	// Devices lists Linux input event devices; empty disables keyboard control.
	Devices []string `yaml:"devices,omitempty" env:"DEVICES" envSeparator:","`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults.
func DefaultConfig() Config {
	initial := DefaultInitialState()
	return Config{
		Counter: CounterConfig{
			Count:       initial.Count,
			IsTicking:   initial.IsTicking,
			TickSpeedMS: initial.TickSpeed,
			CountDiff:   initial.CountDiff,
			CountUp:     initial.CountUp,
			SetToOffset: defaultSetToOffset,
		},
		Engine: EngineFileConfig{
			EventBuf:      defaultEventBuf,
			SubscriberBuf: defaultSubscriberBuf,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocketPath,
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
			Listen:  defaultWSListenAddr,
			Path:    defaultWSPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Notes:
//   - The file must be valid YAML.
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML bytes on top of DefaultConfig.
func ParseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: defaults only.
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments may follow the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// ApplyEnv overlays TICKCOUNTER_* environment variables onto cfg.
// Variables that are not set leave the corresponding field untouched.
func ApplyEnv(cfg *Config) error {
	return applyEnvFrom(cfg, nil)
}

// applyEnvFrom is ApplyEnv with an explicit environment (nil uses the process env).
func applyEnvFrom(cfg *Config, environ map[string]string) error {
	if cfg == nil {
		return nil
	}
	opts := env.Options{Prefix: envPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FlagOverrides carries explicitly-set flags. Each override is applied only if
// its pointer is non-nil, even when the value is a zero value.
type FlagOverrides struct {
	LogLevel      *string
	IPCSocketPath *string

	WSEnabled *bool
	WSListen  *string

	InputDevice *string

	TickSpeedMS *int
	CountDiff   *int
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.WSEnabled != nil {
		cfg.WebSocket.Enabled = *o.WSEnabled
	}
	if o.WSListen != nil {
		cfg.WebSocket.Listen = *o.WSListen
	}
	if o.InputDevice != nil {
		if *o.InputDevice == "" {
			cfg.Input.Devices = nil
		} else {
			cfg.Input.Devices = []string{*o.InputDevice}
		}
	}
	if o.TickSpeedMS != nil {
		cfg.Counter.TickSpeedMS = *o.TickSpeedMS
	}
	if o.CountDiff != nil {
		cfg.Counter.CountDiff = *o.CountDiff
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + env + overrides are applied.
//
// Only the configured initial state is range-checked; values arriving at runtime
// through control events are folded as-is.
func (c *Config) Validate() error {
	// Counter
	if c.Counter.TickSpeedMS <= 0 {
		return errors.New("counter.tick_speed_ms must be > 0")
	}
	if c.Counter.CountDiff < 0 {
		return errors.New("counter.count_diff must be >= 0")
	}

	// Engine
	if c.Engine.EventBuf <= 0 {
		return errors.New("engine.event_buf must be > 0")
	}
	if c.Engine.SubscriberBuf <= 0 {
		return errors.New("engine.subscriber_buf must be > 0")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// WebSocket
	if c.WebSocket.Enabled {
		if c.WebSocket.Listen == "" {
			return errors.New("websocket.enabled is true but websocket.listen is empty")
		}
		if c.WebSocket.Path == "" || c.WebSocket.Path[0] != '/' {
			return errors.New("websocket.path must start with '/'")
		}
		if c.WebSocket.SendBuf < 0 || c.WebSocket.BroadcastBuf < 0 {
			return errors.New("websocket buffers must be >= 0")
		}
	}

	// Input
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ToEngineConfig converts the file config into the engine's parameters.
func (c *Config) ToEngineConfig() EngineConfig {
	return EngineConfig{
		Initial: CounterState{
			Count:     c.Counter.Count,
			IsTicking: c.Counter.IsTicking,
			TickSpeed: c.Counter.TickSpeedMS,
			CountDiff: c.Counter.CountDiff,
			CountUp:   c.Counter.CountUp,
		},
		SetToOffset:   c.Counter.SetToOffset,
		SubscriberBuf: c.Engine.SubscriberBuf,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
