// Package config loads the daemon's static configuration using viper.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// GlobalConfig is the top-level static configuration. Maps to the `flux:`
// root key in YAML.
type GlobalConfig struct {
	BaseFolder            string    `mapstructure:"base_folder"`
	OutputChannelCapacity int       `mapstructure:"output_channel_capacity"`
	InboundQueueCapacity  int       `mapstructure:"inbound_queue_capacity"`
	TelemetryBatchSize    int       `mapstructure:"telemetry_batch_size"`
	Log                   LogConfig `mapstructure:"log"`
}

// LogConfig controls the global slog handler.
type LogConfig struct {
	Level  string           `mapstructure:"level"`  // debug / info / warn / error
	Format string           `mapstructure:"format"` // json / text
	File   FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures optional file log output with rotation.
type FileOutputConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
	// Path may be given in YAML; when file output is enabled and Path is
	// unset, validate derives it from BaseFolder.
	Path string `mapstructure:"path"`
}

type configRoot struct {
	Flux GlobalConfig `mapstructure:"flux"`
}

// Load reads path (YAML), applies defaults, overlays FLUX_-prefixed
// environment variables, and validates the result.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg := root.Flux

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("flux.base_folder", "/var/lib/flux/pipelines")
	v.SetDefault("flux.output_channel_capacity", 256)
	v.SetDefault("flux.inbound_queue_capacity", 1000)
	v.SetDefault("flux.telemetry_batch_size", 256)
	v.SetDefault("flux.log.level", "info")
	v.SetDefault("flux.log.format", "json")
	v.SetDefault("flux.log.file.enabled", false)
	v.SetDefault("flux.log.file.max_size_mb", 100)
	v.SetDefault("flux.log.file.max_age_days", 30)
	v.SetDefault("flux.log.file.max_backups", 5)
	v.SetDefault("flux.log.file.compress", true)
}

func (cfg *GlobalConfig) validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level %q (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format %q (must be json/text)", cfg.Log.Format)
	}
	if cfg.BaseFolder == "" {
		return fmt.Errorf("base_folder must not be empty")
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		cfg.Log.File.Path = defaultLogPath(cfg.BaseFolder)
	}
	return nil
}

func defaultLogPath(baseFolder string) string {
	return baseFolder + string(os.PathSeparator) + "flux.log"
}
