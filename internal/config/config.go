// Package config resolves catalogctl settings.
//
// Sources are layered, later ones winning:
//
//	defaults -> YAML file -> .env file -> process environment -> flags
//
// Flags are applied by the cli package after Load returns.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvDBPath        = "CATALOG_DB_PATH"
	EnvJournalPath   = "CATALOG_JOURNAL_PATH"
	EnvStrict        = "CATALOG_STRICT"
	EnvRetentionDays = "BACKUP_RETENTION_DAYS"
	EnvLockStale     = "LOCK_STALE_SECONDS"
	EnvLogLevel      = "LOG_LEVEL"
	EnvMetricsFile   = "CATALOG_METRICS_FILE"
)

// JournalOff disables the ingest journal when used as JournalPath.
const JournalOff = "off"

// DefaultEnvFile is read when present in the working directory.
const DefaultEnvFile = ".env"

// Config holds resolved settings.
type Config struct {
	DBPath           string `yaml:"db_path"`
	JournalPath      string `yaml:"journal_path"`
	RetentionDays    int    `yaml:"retention_days"`
	LockStaleSeconds int    `yaml:"lock_stale_seconds"`
	LogLevel         string `yaml:"log_level"`
	Strict           bool   `yaml:"strict"`
	MetricsFile      string `yaml:"metrics_file"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:           filepath.Join("data", "products.json"),
		RetentionDays:    7,
		LockStaleSeconds: 30,
		LogLevel:         "info",
	}
}

// Load resolves settings from configPath and envFile on top of Default.
// An empty configPath skips the YAML layer; a configPath that does not exist
// is an error. A missing envFile is ignored.
func Load(configPath, envFile string) (Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDBPath); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup(EnvJournalPath); ok {
		c.JournalPath = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvMetricsFile); ok {
		c.MetricsFile = v
	}
	if v, ok := lookup(EnvStrict); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStrict, err)
		}
		c.Strict = b
	}
	for key, dst := range map[string]*int{
		EnvRetentionDays: &c.RetentionDays,
		EnvLockStale:     &c.LockStaleSeconds,
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path must not be empty")
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive, got %d", c.RetentionDays)
	}
	if c.LockStaleSeconds <= 0 {
		return fmt.Errorf("lock_stale_seconds must be positive, got %d", c.LockStaleSeconds)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Retention returns the backup retention window.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LockStaleAfter returns the lock staleness threshold.
func (c Config) LockStaleAfter() time.Duration {
	return time.Duration(c.LockStaleSeconds) * time.Second
}

// Journal returns the journal database path, or "" when disabled. An unset
// JournalPath places ingest.db beside the document.
func (c Config) Journal() string {
	switch strings.ToLower(strings.TrimSpace(c.JournalPath)) {
	case "":
		return filepath.Join(filepath.Dir(c.DBPath), "ingest.db")
	case JournalOff:
		return ""
	default:
		return c.JournalPath
	}
}

// SlogLevel returns LogLevel as a slog.Level.
func (c Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
