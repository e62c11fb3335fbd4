// Package config loads importer settings from a YAML file, .env files and
// CLASS_IMPORTER_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"class-importer/internal/logging"
	"class-importer/internal/plan"
)

// EnvPrefix prefixes every environment override, e.g. CLASS_IMPORTER_STORAGE_PATH.
const EnvPrefix = "CLASS_IMPORTER"

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageBolt   = "bolt"
	StorageMemory = "memory"
)

// Mismatch policies.
const (
	MismatchAsk     = "ask"
	MismatchProceed = "proceed"
	MismatchAbort   = "abort"
)

// Config holds all configuration settings
type Config struct {
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Import  ImportConfig  `mapstructure:"import" yaml:"import"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type StorageConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // "sqlite", "bolt", "memory"
	Path string `mapstructure:"path" yaml:"path"`
}

type ImportConfig struct {
	DedicatedNamespace bool   `mapstructure:"dedicated_namespace" yaml:"dedicated_namespace"`
	RootNamespace      string `mapstructure:"root_namespace" yaml:"root_namespace"`
	// PointerSize overrides the program's pointer size when non-zero.
	PointerSize uint64 `mapstructure:"pointer_size" yaml:"pointer_size"`
	OnMismatch  string `mapstructure:"on_mismatch" yaml:"on_mismatch"` // "ask", "proceed", "abort"
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	opts := plan.DefaultOptions()

	return &Config{
		Storage: StorageConfig{
			Type: StorageSQLite,
			Path: filepath.Join(homeDir, ".class-importer", "program.db"),
		},
		Import: ImportConfig{
			DedicatedNamespace: opts.UseDedicatedNamespace,
			RootNamespace:      opts.RootNamespace,
			OnMismatch:         MismatchAsk,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, or the first config.yaml found in the
// standard locations when path is empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("import.dedicated_namespace", cfg.Import.DedicatedNamespace)
	v.SetDefault("import.root_namespace", cfg.Import.RootNamespace)
	v.SetDefault("import.pointer_size", cfg.Import.PointerSize)
	v.SetDefault("import.on_mismatch", cfg.Import.OnMismatch)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.json", cfg.Log.JSON)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".class-importer")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".class-importer"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.Path = expandPath(cfg.Storage.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFiles loads .env files; variables already set win.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".class-importer", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageSQLite, StorageBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for %s storage", c.Storage.Type)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage.type %q (want sqlite, bolt or memory)", c.Storage.Type)
	}

	switch c.Import.OnMismatch {
	case MismatchAsk, MismatchProceed, MismatchAbort:
	default:
		return fmt.Errorf("unknown import.on_mismatch %q (want ask, proceed or abort)", c.Import.OnMismatch)
	}

	switch c.Import.PointerSize {
	case 0, 2, 4, 8:
	default:
		return fmt.Errorf("unsupported import.pointer_size %d", c.Import.PointerSize)
	}

	return nil
}

// PlanOptions returns the planner options selected by the import section.
func (c *Config) PlanOptions() plan.Options {
	opts := plan.DefaultOptions()
	opts.UseDedicatedNamespace = c.Import.DedicatedNamespace
	opts.PointerSize = c.Import.PointerSize

	if c.Import.RootNamespace != "" {
		opts.RootNamespace = c.Import.RootNamespace
	}

	return opts
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, JSON: c.Log.JSON}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(homeDir, path[1:])
}
