// Package config holds the stagelink configuration: the studio endpoint
// the bridge connects to, plus logging and console options. Configuration
// is loaded from a JSON file and overlaid with STAGELINK_* environment
// variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Endpoint identifies the studio websocket to connect to. Changing either
// field tears down the current connection and re-establishes a new one.
type Endpoint struct {
	Host string `env:"STAGELINK_HOST" json:"host"`
	Port int    `env:"STAGELINK_PORT" json:"port"`
}

// URL returns the websocket URL for this endpoint.
func (e Endpoint) URL() string {
	return fmt.Sprintf("ws://%s:%d/", e.Host, e.Port)
}

// Validate checks that the endpoint is usable.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("endpoint host must not be empty")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("endpoint port %d out of range 1-65535", e.Port)
	}
	return nil
}

type LogConfig struct {
	Level string `env:"STAGELINK_LOG_LEVEL" json:"level"`
}

type BridgeConfig struct {
	// InvokeTimeoutSeconds bounds how long a remote method call may stay
	// pending before its callback is failed. 0 selects the default.
	InvokeTimeoutSeconds int `env:"STAGELINK_INVOKE_TIMEOUT" json:"invoke_timeout_seconds"`
}

// InvokeTimeout returns the configured timeout as a duration; zero means
// "use the bridge default".
func (b BridgeConfig) InvokeTimeout() time.Duration {
	if b.InvokeTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.InvokeTimeoutSeconds) * time.Second
}

type ConsoleConfig struct {
	Enabled bool `env:"STAGELINK_CONSOLE" json:"enabled"`
}

type Config struct {
	Studio  Endpoint      `json:"studio"`
	Bridge  BridgeConfig  `json:"bridge,omitzero"`
	Log     LogConfig     `json:"log,omitzero"`
	Console ConsoleConfig `json:"console,omitzero"`
}

func DefaultConfig() *Config {
	return &Config{
		Studio: Endpoint{
			Host: "127.0.0.1",
			Port: 13376,
		},
		Log: LogConfig{
			Level: "info",
		},
		Console: ConsoleConfig{
			Enabled: true,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, cfg.Studio.Validate()
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Studio.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
