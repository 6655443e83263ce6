// Package config loads run-time VM settings (trace, slow, the default
// example to run) from an optional TOML file, so a demo machine doesn't
// need the flags spelled out on every invocation.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the settings the CLI falls back to when a flag is not
// passed explicitly. Zero value is a valid, fully-disabled config.
type Config struct {
	Trace   bool   `toml:"trace"`
	Slow    bool   `toml:"slow"`
	Example string `toml:"example"`
	DSN     string `toml:"dsn"`
}

// Load reads path if it exists, returning a zero Config (not an error) if
// the file is simply absent — a config file is always optional.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
