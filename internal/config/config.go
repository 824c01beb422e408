package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config holds the retrolaminate server configuration.
type Config struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Log             LogConfig     `yaml:"log"`
	Storage         StorageConfig `yaml:"storage"`
	Gemini          GeminiConfig  `yaml:"gemini"`
	Editor          EditorConfig  `yaml:"editor"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// StorageConfig selects where session images are kept.
type StorageConfig struct {
	Driver     string `yaml:"driver"` // memory | sqlite
	DBPath     string `yaml:"db_path"`
	BlobDir    string `yaml:"blob_dir"`
	KeepAssets bool   `yaml:"keep_assets"`
}

type GeminiConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type EditorConfig struct {
	Instruction     string `yaml:"instruction"`
	HistoryCapacity int    `yaml:"history_capacity"`
	MaxUploadMB     int    `yaml:"max_upload_mb"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Listen:          ":8080",
		ShutdownTimeout: 5 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Driver:  StorageMemory,
			DBPath:  "./retrolaminate.db",
			BlobDir: "./blobs",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash-image",
		},
		Editor: EditorConfig{
			MaxUploadMB: 20,
		},
	}
}

// Load returns the defaults merged with the YAML file at path, if any, and
// then with the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. GEMINI_API_KEY wins
// over API_KEY.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("API_KEY"); ok && v != "" {
		c.Gemini.APIKey = v
	}
	if v, ok := lookup("GEMINI_API_KEY"); ok && v != "" {
		c.Gemini.APIKey = v
	}
	if v, ok := lookup("SQLITE_DB_PATH"); ok && v != "" {
		c.Storage.DBPath = v
	}

	strs := map[string]*string{
		"RETROLAMINATE_LISTEN":         &c.Listen,
		"RETROLAMINATE_LOG_LEVEL":      &c.Log.Level,
		"RETROLAMINATE_LOG_FORMAT":     &c.Log.Format,
		"RETROLAMINATE_STORAGE_DRIVER": &c.Storage.Driver,
		"RETROLAMINATE_BLOB_DIR":       &c.Storage.BlobDir,
		"RETROLAMINATE_GEMINI_MODEL":   &c.Gemini.Model,
		"RETROLAMINATE_INSTRUCTION":    &c.Editor.Instruction,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("RETROLAMINATE_GEMINI_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RETROLAMINATE_GEMINI_TIMEOUT: %w", err)
		}
		c.Gemini.Timeout = d
	}

	if v, ok := lookup("RETROLAMINATE_HISTORY_CAPACITY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RETROLAMINATE_HISTORY_CAPACITY: %w", err)
		}
		c.Editor.HistoryCapacity = n
	}

	if v, ok := lookup("RETROLAMINATE_KEEP_ASSETS"); ok && v != "" {
		keep, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RETROLAMINATE_KEEP_ASSETS: %w", err)
		}
		c.Storage.KeepAssets = keep
	}

	return nil
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini api key is required (set GEMINI_API_KEY)")
	}
	if c.Gemini.Timeout < 0 {
		return fmt.Errorf("gemini timeout must be >= 0")
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage db_path is required for the sqlite driver")
		}
		if c.Storage.BlobDir == "" {
			return fmt.Errorf("storage blob_dir is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q (use memory or sqlite)", c.Storage.Driver)
	}
	if c.Editor.HistoryCapacity != 0 && c.Editor.HistoryCapacity < 2 {
		return fmt.Errorf("editor history_capacity must be 0 or at least 2")
	}
	if c.Editor.MaxUploadMB <= 0 {
		return fmt.Errorf("editor max_upload_mb must be > 0")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q (use console or json)", c.Log.Format)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.Editor.MaxUploadMB) * 1024 * 1024 }
