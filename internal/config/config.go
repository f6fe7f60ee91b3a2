// Package config loads the converter's settings: defaults, then an optional
// YAML file, then FITBIT2OSCAR_* environment variables, validated once at
// startup so a bad setting fails before any file is touched.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
)

type Config struct {
	Input  InputConfig  `yaml:"input"`
	Output OutputConfig `yaml:"output"`
	Ledger LedgerConfig `yaml:"ledger"`
	Log    LogConfig    `yaml:"log"`
}

type InputConfig struct {
	// Path is the export root. Usually given on the command line; the
	// config file form suits repeated conversions of a synced directory.
	Path   string `yaml:"path"`
	Source string `yaml:"source"`

	// DateFormat is the Health Sync filename granularity: DAILY, WEEKLY,
	// or MONTHLY. Ignored by other sources.
	DateFormat string `yaml:"date_format"`
}

type OutputConfig struct {
	Path string `yaml:"path"`
}

type LedgerConfig struct {
	// Enabled turns on the run ledger: conversion history plus skipping
	// of input files already converted in an earlier run.
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	LevelName string `yaml:"level"`
}

// Level maps the configured name to a slog level. Validate has already
// rejected unknown names.
func (l LogConfig) Level() slog.Level {
	switch strings.ToLower(l.LevelName) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the settings used when no config file is given.
func Default() *Config {
	return &Config{
		Input:  InputConfig{Source: "takeout", DateFormat: "DAILY"},
		Output: OutputConfig{Path: "export"},
		Ledger: LedgerConfig{Enabled: true, Path: defaultLedgerPath()},
		Log:    LogConfig{LevelName: "info"},
	}
}

// defaultLedgerPath places the ledger in the user cache directory, falling
// back to a dotted directory in the working directory.
func defaultLedgerPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "fitbit2oscar", "ledger.db")
	}
	return filepath.Join(".fitbit2oscar", "ledger.db")
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates. Env vars use the prefix
// FITBIT2OSCAR_ and underscore-separated paths:
//
//	FITBIT2OSCAR_INPUT_PATH, FITBIT2OSCAR_INPUT_SOURCE,
//	FITBIT2OSCAR_INPUT_DATE_FORMAT, FITBIT2OSCAR_OUTPUT_PATH,
//	FITBIT2OSCAR_LEDGER_ENABLED, FITBIT2OSCAR_LEDGER_PATH,
//	FITBIT2OSCAR_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Inputf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Configf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load when path is set and the default settings (still
// env-overridable and validated) when it is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FITBIT2OSCAR_INPUT_PATH"); v != "" {
		cfg.Input.Path = v
	}
	if v := os.Getenv("FITBIT2OSCAR_INPUT_SOURCE"); v != "" {
		cfg.Input.Source = v
	}
	if v := os.Getenv("FITBIT2OSCAR_INPUT_DATE_FORMAT"); v != "" {
		cfg.Input.DateFormat = v
	}
	if v := os.Getenv("FITBIT2OSCAR_OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("FITBIT2OSCAR_LEDGER_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Ledger.Enabled = enabled
		}
	}
	if v := os.Getenv("FITBIT2OSCAR_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	if v := os.Getenv("FITBIT2OSCAR_LOG_LEVEL"); v != "" {
		cfg.Log.LevelName = v
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Log.LevelName) {
	case "debug", "info", "warn", "error":
	default:
		return errs.Configf("log.level %q (use debug, info, warn, or error)", c.Log.LevelName)
	}
	switch strings.ToUpper(c.Input.DateFormat) {
	case "DAILY", "WEEKLY", "MONTHLY":
	default:
		return errs.Configf("input.date_format %q (use DAILY, WEEKLY, or MONTHLY)", c.Input.DateFormat)
	}
	if c.Input.Source == "" {
		return errs.Configf("input.source is required")
	}
	if c.Output.Path == "" {
		return errs.Configf("output.path is required")
	}
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return errs.Configf("ledger.path is required when the ledger is enabled")
	}
	return nil
}
