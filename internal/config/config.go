// Package config loads application settings from an optional YAML
// file, applies defaults, and lets environment variables override
// individual fields. All persisted state lives under DataDir.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/errors"
)

// Config is the complete application configuration.
type Config struct {
	// DataDir holds all persisted state: the chunk store, the sync
	// registry, the lock file, and logs. Default: ~/.quarry.
	DataDir string `yaml:"data_dir"`

	Store     StoreConfig     `yaml:"store"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
	Watch     WatchConfig     `yaml:"watch"`
}

// StoreConfig configures the vector store.
type StoreConfig struct {
	// Dimension is the embedding dimension; it must match the
	// embedding backend's output.
	Dimension int `yaml:"dimension"`

	// DisableANN switches unfiltered searches from the in-memory
	// graph to exact scans.
	DisableANN bool `yaml:"disable_ann"`
}

// ChunkingConfig bounds chunk sizes.
type ChunkingConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Backend   string `yaml:"backend"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	CacheSize int    `yaml:"cache_size"`
}

// LoggingConfig configures the structured log output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
	Stderr    bool   `yaml:"stderr"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce is how long to wait after the last filesystem event
	// before triggering a sync.
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DataDir: filepath.Join(home, ".quarry"),
		Store: StoreConfig{
			Dimension: embed.DefaultDimension,
		},
		Chunking: ChunkingConfig{
			MaxChars:     chunk.DefaultMaxChars,
			OverlapChars: chunk.DefaultOverlapChars,
		},
		Embedding: EmbeddingConfig{
			Backend:   "static",
			Dimension: embed.DefaultDimension,
			CacheSize: embed.DefaultCacheSize,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 5,
			MaxFiles:  3,
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// Load reads configuration from path, layered over the defaults and
// under the environment overrides. An empty path, or a missing file
// at the given location, just means defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, errors.New(errors.ErrCodeConfigInvalid,
					fmt.Sprintf("read config file %s", path), err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("parse config file %s", path), err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Chunking.MaxChars <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "chunking.max_chars must be positive", nil)
	}
	if c.Chunking.OverlapChars < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "chunking.overlap_chars must not be negative", nil)
	}
	if c.Store.Dimension <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "store.dimension must be positive", nil)
	}
	if c.Embedding.Dimension != c.Store.Dimension {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("embedding.dimension (%d) must match store.dimension (%d)",
				c.Embedding.Dimension, c.Store.Dimension), nil)
	}
	return nil
}

// applyEnvOverrides lets QUARRY_* environment variables override
// individual fields, highest priority.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUARRY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("QUARRY_EMBEDDING_BACKEND"); v != "" {
		cfg.Embedding.Backend = v
	}
	if v := os.Getenv("QUARRY_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("QUARRY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUARRY_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Store.Dimension = n
			cfg.Embedding.Dimension = n
		}
	}
}

// StoreDir is the vector store's directory.
func (c Config) StoreDir() string {
	return filepath.Join(c.DataDir, "store")
}

// RegistryPath is the sync registry database file.
func (c Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "registry.db")
}

// LockPath is the sync single-writer lock file.
func (c Config) LockPath() string {
	return filepath.Join(c.DataDir, "sync.lock")
}

// LogPath is the structured log file.
func (c Config) LogPath() string {
	return filepath.Join(c.DataDir, "logs", "quarry.log")
}
