package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Data    DataConfig
	Export  ExportConfig
	Capture CaptureConfig
	Log     LogConfig
}

// DataConfig holds storage locations.
type DataConfig struct {
	Dir          string // root for the database and scan folders
	DatabasePath string
	ScansDir     string
}

// ExportConfig holds default export format toggles.
type ExportConfig struct {
	Model  bool
	Data   bool
	Report bool
}

// CaptureConfig holds capture engine settings.
type CaptureConfig struct {
	MultiRoom bool
	ModelCmd  string // external converter invoked per room; empty disables model export
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string
	Development bool
}

// Load reads configuration from file and env. Env var overrides use prefix ROOMSCAN_.
func Load() (Config, error) {
	v := viper.New()

	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "roomscan")

	// default values
	v.SetDefault("data.dir", dataDir)
	v.SetDefault("data.database_path", "")
	v.SetDefault("data.scans_dir", "")
	v.SetDefault("export.model", true)
	v.SetDefault("export.data", true)
	v.SetDefault("export.report", true)
	v.SetDefault("capture.multi_room", false)
	v.SetDefault("capture.model_cmd", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("ROOMSCAN_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "roomscan"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("ROOMSCAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// paths not set explicitly hang off the data dir
	if c.Data.DatabasePath == "" {
		c.Data.DatabasePath = filepath.Join(c.Data.Dir, "roomscan.db")
	}
	if c.Data.ScansDir == "" {
		c.Data.ScansDir = filepath.Join(c.Data.Dir, "scans")
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("ROOMSCAN_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "roomscan", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("data.dir", cfg.Data.Dir)
	v.Set("data.database_path", cfg.Data.DatabasePath)
	v.Set("data.scans_dir", cfg.Data.ScansDir)
	v.Set("export.model", cfg.Export.Model)
	v.Set("export.data", cfg.Export.Data)
	v.Set("export.report", cfg.Export.Report)
	v.Set("capture.multi_room", cfg.Capture.MultiRoom)
	v.Set("capture.model_cmd", cfg.Capture.ModelCmd)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.development", cfg.Log.Development)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
