// Copyright (c) 2026 Jeremy Hahn
// Copyright (c) 2026 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"os"

	"github.com/jeremyhahn/go-passkey/internal/config"
)

// defaultConfigPath is used when neither --config nor PASSKEY_CONFIG
// are set.
const defaultConfigPath = "/etc/passkey/config.yaml"

// Config holds CLI-level settings shared by all commands
type Config struct {
	ConfigFile   string
	OutputFormat string
	Verbose      bool
}

// NewConfig creates a CLI config with defaults
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
	}
}

// configPath resolves the server config file location from the flag,
// the environment, or the default.
func (c *Config) configPath() string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	if env := os.Getenv("PASSKEY_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}

// loadServerConfig loads the server configuration for commands that
// need it, falling back to defaults when no file exists.
func (c *Config) loadServerConfig() (*config.Config, error) {
	path := c.configPath()
	printVerbose("Loading configuration from %s", path)
	return config.LoadOrDefault(path)
}
