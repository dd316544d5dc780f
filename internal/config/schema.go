package config

import (
	"time"

	"github.com/gyaneshwarpardhi/bandtree/internal/catalog"
)

// Config is the top-level YAML structure.
type Config struct {
	Version string         `yaml:"version"`
	Server  ServerConf     `yaml:"server"`
	Editor  EditorConf     `yaml:"editor"`
	Bands   []catalog.Band `yaml:"bands"`
}

// ServerConf holds HTTP listener settings.
type ServerConf struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms"`
	IdleTimeoutMs  int    `yaml:"idle_timeout_ms"`
}

// EditorConf holds tunable editing-session settings.
type EditorConf struct {
	DebounceMs       int    `yaml:"debounce_ms"`        // quiet period before a question draft commits
	QueueDepth       int    `yaml:"queue_depth"`        // pending commands per tree
	CommandTimeoutMs int    `yaml:"command_timeout_ms"` // wait for a command's result
	MaxTrees         int    `yaml:"max_trees"`
	RootQuestion     string `yaml:"root_question"` // question seeded on new roots
	BlankLabel       string `yaml:"blank_label"`   // projection label for blank questions
}

func (e EditorConf) Debounce() time.Duration {
	return time.Duration(e.DebounceMs) * time.Millisecond
}

func (e EditorConf) CommandTimeout() time.Duration {
	return time.Duration(e.CommandTimeoutMs) * time.Millisecond
}

// DefaultBands is the catalog used when no config file supplies one.
var DefaultBands = []catalog.Band{
	{ID: "band-1", Name: "Band A"},
	{ID: "band-2", Name: "Band B"},
	{ID: "band-3", Name: "Band C"},
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{Version: "v1"}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeoutMs == 0 {
		cfg.Server.ReadTimeoutMs = 10000
	}
	if cfg.Server.WriteTimeoutMs == 0 {
		cfg.Server.WriteTimeoutMs = 30000
	}
	if cfg.Server.IdleTimeoutMs == 0 {
		cfg.Server.IdleTimeoutMs = 60000
	}
	if cfg.Editor.DebounceMs == 0 {
		cfg.Editor.DebounceMs = 400
	}
	if cfg.Editor.QueueDepth == 0 {
		cfg.Editor.QueueDepth = 64
	}
	if cfg.Editor.CommandTimeoutMs == 0 {
		cfg.Editor.CommandTimeoutMs = 2000
	}
	if cfg.Editor.MaxTrees == 0 {
		cfg.Editor.MaxTrees = 1000
	}
	if cfg.Editor.RootQuestion == "" {
		cfg.Editor.RootQuestion = "Untitled"
	}
	if cfg.Editor.BlankLabel == "" {
		cfg.Editor.BlankLabel = " "
	}
	if cfg.Bands == nil {
		cfg.Bands = append([]catalog.Band(nil), DefaultBands...)
	}
}
