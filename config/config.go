// Package config loads netctl's optional TOML settings file, covering
// process-wide defaults that aren't part of the command language
// itself (the netns directory, the eventsocket path, poll timeouts).
package config

import (
	"github.com/BurntSushi/toml"

	"github.com/EsteSystems/netctl/netns"
)

// DefaultPath is where netctl looks for its settings file absent an
// explicit --config flag.
const DefaultPath = "/etc/netctl/netctl.toml"

// Config is the top-level settings shape, persisted as TOML.
type Config struct {
	Netns       NetnsConfig       `toml:"netns"`
	Eventsocket EventsocketConfig `toml:"eventsocket"`
}

// NetnsConfig controls where named namespaces are listed/created.
type NetnsConfig struct {
	// Dir overrides the default /var/run/netns bind-mount directory.
	Dir string `toml:"dir"`
}

// EventsocketConfig controls the monitor-event republishing socket.
type EventsocketConfig struct {
	// Path is the unix-domain socket file setting. It is decoded but not
	// read by any command: netctl-eventsocket takes its socket path from
	// its -netctl.eventsocket flag.
	Path string `toml:"path"`
	// PollTimeoutMs is a millisecond poll timeout setting (-1 for
	// indefinitely). It is decoded but not read by any command:
	// nlmonitor.Monitor.Run always polls with a 1-second timeout.
	PollTimeoutMs int `toml:"poll_timeout_ms"`
}

// Default returns the settings netctl uses when no config file is
// present.
func Default() *Config {
	return &Config{
		Netns:       NetnsConfig{Dir: netns.DefaultDir},
		Eventsocket: EventsocketConfig{Path: "", PollTimeoutMs: -1},
	}
}

// Load reads and decodes a TOML settings file, starting from Default
// so a partial file only overrides the fields it sets.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
