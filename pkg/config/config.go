// Package config loads the small set of environment-driven knobs the demo
// CLI and any embedding caller need to start a core instance: buffer pool
// sizing, the LRU-K history depth, the deadlock detector's polling
// interval, and where data files live. It mirrors the env-driven startup
// used elsewhere in this stack, with github.com/joho/godotenv support so a
// local .env file works the same as exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"coredb/pkg/dberr"
)

const (
	envBufferPoolSize            = "COREDB_BUFFER_POOL_SIZE"
	envReplacerK                 = "COREDB_REPLACER_K"
	envDeadlockDetectionInterval = "COREDB_DEADLOCK_INTERVAL"
	envDataDir                   = "COREDB_DATA_DIR"
)

const (
	defaultBufferPoolSize            = 256
	defaultReplacerK                 = 2
	defaultDeadlockDetectionInterval = 500 * time.Millisecond
	defaultDataDir                   = "./data"
)

// Config holds every environment-tunable setting the core reads at
// startup.
type Config struct {
	BufferPoolSize            int
	ReplacerK                 int
	DeadlockDetectionInterval time.Duration
	DataDir                   string
}

// Load reads a .env file if one is present in the working directory (a
// missing file is not an error), then resolves Config from environment
// variables, falling back to defaults for anything unset.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, dberr.Wrap(err, "CONFIG_ENV_FILE_UNREADABLE", "Load", "config")
	}

	cfg := Config{
		BufferPoolSize:            defaultBufferPoolSize,
		ReplacerK:                 defaultReplacerK,
		DeadlockDetectionInterval: defaultDeadlockDetectionInterval,
		DataDir:                   defaultDataDir,
	}

	var err error
	if cfg.BufferPoolSize, err = intEnv(envBufferPoolSize, cfg.BufferPoolSize); err != nil {
		return Config{}, err
	}
	if cfg.ReplacerK, err = intEnv(envReplacerK, cfg.ReplacerK); err != nil {
		return Config{}, err
	}
	if cfg.DeadlockDetectionInterval, err = durationEnv(envDeadlockDetectionInterval, cfg.DeadlockDetectionInterval); err != nil {
		return Config{}, err
	}
	if dir := os.Getenv(envDataDir); dir != "" {
		cfg.DataDir = dir
	}

	return cfg, nil
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dberr.Wrap(err, "CONFIG_INVALID_INT", fmt.Sprintf("parse %s", name), "config")
	}
	return v, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, dberr.Wrap(err, "CONFIG_INVALID_DURATION", fmt.Sprintf("parse %s", name), "config")
	}
	return v, nil
}
