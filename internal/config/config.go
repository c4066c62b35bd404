// Package config holds the manager process configuration: where to
// listen, how callers authenticate, and how to reach the gateway CLI.
// Domain state lives in the state store, not here.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/clawman/internal/state"
)

type Config struct {
	Manager ManagerConfig `json:"manager"`
	Gateway GatewayConfig `json:"gateway"`
}

type ManagerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// Token is required in the x-openclaw-token header on every
	// endpoint except the OAuth callback.
	Token   string `json:"token"`
	DataDir string `json:"dataDir"`
}

type GatewayConfig struct {
	// Bin is the OpenClaw CLI used for gateway lifecycle commands.
	Bin string `json:"bin"`
}

// Default returns a Config with sensible defaults. The manager binds
// loopback only: it is a local control plane, not a network service.
func Default() *Config {
	return &Config{
		Manager: ManagerConfig{
			Host:    "127.0.0.1",
			Port:    3210,
			DataDir: state.ResolveDataDir(),
		},
		Gateway: GatewayConfig{
			Bin: "openclaw",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A
// missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("OPENCLAW_MANAGER_HOST", &c.Manager.Host)
	envStr("OPENCLAW_MANAGER_TOKEN", &c.Manager.Token)
	envStr(state.DataDirEnv, &c.Manager.DataDir)
	envStr("OPENCLAW_GATEWAY_BIN", &c.Gateway.Bin)

	if v := os.Getenv("OPENCLAW_MANAGER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Manager.Port = port
		}
	}
}

// ListenAddr returns the host:port the manager binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Manager.Host, c.Manager.Port)
}
