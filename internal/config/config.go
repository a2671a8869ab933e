// Package config loads harvester configuration from file and
// environment. Every key can be overridden with a HARVESTER_-prefixed
// environment variable, dots replaced by underscores.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Database DatabaseConfig `mapstructure:"database"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// StorageConfig selects and configures the dataset blob backend.
type StorageConfig struct {
	// Backend is "gcs" or "local".
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	Dir     string `mapstructure:"dir"`
}

// HarvestConfig tunes a run. Zero values defer to per-source defaults.
type HarvestConfig struct {
	CheckpointEvery   int           `mapstructure:"checkpoint_every"`
	MaxPerRun         int           `mapstructure:"max_per_run"`
	BackupRetention   int           `mapstructure:"backup_retention"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SitemapTimeout    time.Duration `mapstructure:"sitemap_timeout"`
}

// DatabaseConfig configures the optional run ledger.
type DatabaseConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig configures the optional dataset-refresh notification.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig configures the operational HTTP endpoint.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from the given file (optional) and the
// environment, applies defaults, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("harvester")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/harvester")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("storage.backend", "gcs")
	v.SetDefault("harvest.checkpoint_every", 25)
	v.SetDefault("harvest.backup_retention", 30)
	v.SetDefault("harvest.user_agent", "auction-harvester/1.0")
	v.SetDefault("harvest.navigation_timeout", 45*time.Second)
	v.SetDefault("harvest.sitemap_timeout", 30*time.Second)
	v.SetDefault("database.table", "harvest_runs")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	case "local":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the local backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (want gcs or local)", c.Storage.Backend)
	}
	if c.Harvest.CheckpointEvery < 0 {
		return fmt.Errorf("harvest.checkpoint_every must be >= 0")
	}
	if c.Harvest.BackupRetention < 0 {
		return fmt.Errorf("harvest.backup_retention must be >= 0")
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when a topic is set")
	}
	return nil
}
