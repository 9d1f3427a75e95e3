// Package config handles WarpGraph's environment-variable configuration.
//
// Every setting is read with a sensible default, so LoadFromEnv can be
// called in a test or a CLI without any environment variables set.
// Variables are prefixed WARPGRAPH_; see each field's doc comment for its
// exact name.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every environment-tunable setting, grouped by the
// subsystem each group configures.
type Config struct {
	Store      StoreConfig
	Checkpoint CheckpointConfig
	Cache      CacheConfig
	Logging    LoggingConfig
}

// StoreConfig controls the object-store backend.
type StoreConfig struct {
	// DataDir is the Badger data directory (WARPGRAPH_STORE_DATA_DIR).
	DataDir string
	// InMemory selects the ephemeral in-memory store instead of Badger,
	// mainly for tests (WARPGRAPH_STORE_IN_MEMORY).
	InMemory bool
	// SyncWrites forces fsync on every write (WARPGRAPH_STORE_SYNC_WRITES).
	SyncWrites bool
	// BlobCacheSize sizes the Badger store's read-through blob cache; see
	// objectstore.BadgerOptions.BlobCacheSize (WARPGRAPH_STORE_BLOB_CACHE_SIZE).
	BlobCacheSize int64
	// RefsRoot is the ref namespace root (WARPGRAPH_STORE_REFS_ROOT).
	RefsRoot string
}

// CheckpointConfig controls checkpoint publication cadence.
type CheckpointConfig struct {
	// OpInterval is the number of ops accumulated between automatic
	// checkpoints (WARPGRAPH_CHECKPOINT_OP_INTERVAL). 0 disables
	// automatic checkpointing.
	OpInterval int
}

// CacheConfig controls the seek cache.
type CacheConfig struct {
	// MaxEntries bounds the seek cache's size
	// (WARPGRAPH_CACHE_SEEK_MAX_ENTRIES).
	MaxEntries int
	// TTL is how long a seek-cache entry stays valid
	// (WARPGRAPH_CACHE_SEEK_TTL).
	TTL time.Duration
}

// LoggingConfig controls the stdlib logger's verbosity.
type LoggingConfig struct {
	// Verbose enables debug-level log lines (WARPGRAPH_LOG_VERBOSE).
	Verbose bool
}

// LoadFromEnv loads a Config from environment variables, defaulting any
// variable that is unset or unparsable.
func LoadFromEnv() *Config {
	c := &Config{}

	c.Store.DataDir = getEnv("WARPGRAPH_STORE_DATA_DIR", "./data")
	c.Store.InMemory = getEnvBool("WARPGRAPH_STORE_IN_MEMORY", false)
	c.Store.SyncWrites = getEnvBool("WARPGRAPH_STORE_SYNC_WRITES", true)
	c.Store.BlobCacheSize = getEnvInt64("WARPGRAPH_STORE_BLOB_CACHE_SIZE", 10_000)
	c.Store.RefsRoot = getEnv("WARPGRAPH_STORE_REFS_ROOT", "warp")

	c.Checkpoint.OpInterval = getEnvInt("WARPGRAPH_CHECKPOINT_OP_INTERVAL", 1000)

	c.Cache.MaxEntries = getEnvInt("WARPGRAPH_CACHE_SEEK_MAX_ENTRIES", 256)
	c.Cache.TTL = getEnvDuration("WARPGRAPH_CACHE_SEEK_TTL", 5*time.Minute)

	c.Logging.Verbose = getEnvBool("WARPGRAPH_LOG_VERBOSE", false)

	return c
}

// fileOverlay is the YAML shape LoadFromFile accepts — a subset of Config
// fields an operator may want to pin in a checked-in file rather than the
// environment, following apoc's own yaml.Unmarshal config pattern.
type fileOverlay struct {
	Store struct {
		DataDir  string `yaml:"data_dir"`
		RefsRoot string `yaml:"refs_root"`
	} `yaml:"store"`
	Checkpoint struct {
		OpInterval int `yaml:"op_interval"`
	} `yaml:"checkpoint"`
	Cache struct {
		MaxEntries int           `yaml:"max_entries"`
		TTL        time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
}

// LoadFromFile overlays YAML settings at path onto c, leaving any field
// the file omits (or sets to its zero value) untouched. Every field the
// file does set overwrites what c already holds, including values that
// LoadFromEnv read from the environment.
func LoadFromFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if overlay.Store.DataDir != "" {
		c.Store.DataDir = overlay.Store.DataDir
	}
	if overlay.Store.RefsRoot != "" {
		c.Store.RefsRoot = overlay.Store.RefsRoot
	}
	if overlay.Checkpoint.OpInterval != 0 {
		c.Checkpoint.OpInterval = overlay.Checkpoint.OpInterval
	}
	if overlay.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = overlay.Cache.MaxEntries
	}
	if overlay.Cache.TTL != 0 {
		c.Cache.TTL = overlay.Cache.TTL
	}
	return nil
}

// Validate checks the settings that can produce a broken runtime if left
// unchecked.
func (c *Config) Validate() error {
	if !c.Store.InMemory && c.Store.DataDir == "" {
		return fmt.Errorf("config: store data dir is required when not in-memory")
	}
	if c.Store.BlobCacheSize < 0 {
		return fmt.Errorf("config: store blob cache size must not be negative")
	}
	if c.Checkpoint.OpInterval < 0 {
		return fmt.Errorf("config: checkpoint op interval must not be negative")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("config: cache max entries must be positive")
	}
	if strings.TrimSpace(c.Store.RefsRoot) == "" {
		return fmt.Errorf("config: store refs root must not be empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
