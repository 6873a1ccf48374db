// Package config loads the stepwise configuration file.
//
// The file is TOML:
//
//	[engine]
//	strategy = "parallel"   # serial | parallel | distributed
//	workers = 8             # 0 selects GOMAXPROCS
//	nodes = 1               # distributed only
//	chunk_size = 128
//	buffer_size = 256
//
//	[store]
//	path = "runs.db"        # empty disables persistence
//
//	[log]
//	level = "info"          # debug | info | warn | error
//
// Keys absent from the file keep their defaults. Unknown keys are an error.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
)

// Strategy names.
const (
	StrategySerial      = "serial"
	StrategyParallel    = "parallel"
	StrategyDistributed = "distributed"
)

// Config is the full configuration.
type Config struct {
	Engine EngineConfig
	Store  StoreConfig
	Log    LogConfig
}

// EngineConfig selects and sizes the execution strategy.
type EngineConfig struct {
	Strategy   string
	Workers    int
	Nodes      int
	ChunkSize  int
	BufferSize int
}

// StoreConfig locates the run database.
type StoreConfig struct {
	Path string
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Strategy:   StrategySerial,
			Nodes:      1,
			ChunkSize:  128,
			BufferSize: 256,
		},
		Log: LogConfig{Level: "info"},
	}
}

type fileConfig struct {
	Engine struct {
		Strategy   string `toml:"strategy"`
		Workers    int    `toml:"workers"`
		Nodes      int    `toml:"nodes"`
		ChunkSize  int    `toml:"chunk_size"`
		BufferSize int    `toml:"buffer_size"`
	} `toml:"engine"`
	Store struct {
		Path string `toml:"path"`
	} `toml:"store"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(raw, meta)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(raw, meta)
}

func apply(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg := Default()
	if meta.IsDefined("engine", "strategy") {
		cfg.Engine.Strategy = strings.ToLower(strings.TrimSpace(raw.Engine.Strategy))
	}
	if meta.IsDefined("engine", "workers") {
		cfg.Engine.Workers = raw.Engine.Workers
	}
	if meta.IsDefined("engine", "nodes") {
		cfg.Engine.Nodes = raw.Engine.Nodes
	}
	if meta.IsDefined("engine", "chunk_size") {
		cfg.Engine.ChunkSize = raw.Engine.ChunkSize
	}
	if meta.IsDefined("engine", "buffer_size") {
		cfg.Engine.BufferSize = raw.Engine.BufferSize
	}
	if meta.IsDefined("store", "path") {
		cfg.Store.Path = strings.TrimSpace(raw.Store.Path)
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. All problems are reported together.
func (c Config) Validate() error {
	var errs []error
	switch c.Engine.Strategy {
	case StrategySerial, StrategyParallel, StrategyDistributed:
	default:
		errs = append(errs, fmt.Errorf("engine.strategy: unknown strategy %q", c.Engine.Strategy))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers: must not be negative, got %d", c.Engine.Workers))
	}
	if c.Engine.Nodes < 1 {
		errs = append(errs, fmt.Errorf("engine.nodes: must be at least 1, got %d", c.Engine.Nodes))
	}
	if c.Engine.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("engine.chunk_size: must be positive, got %d", c.Engine.ChunkSize))
	}
	if c.Engine.BufferSize < 1 {
		errs = append(errs, fmt.Errorf("engine.buffer_size: must be positive, got %d", c.Engine.BufferSize))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}
