package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Backend connection
	BackendURL    string `mapstructure:"backend_url"`
	BackendAPIKey string `mapstructure:"backend_api_key"`

	// Browsing
	PageSize       int           `mapstructure:"page_size"`
	DebounceWindow time.Duration `mapstructure:"debounce_window"`

	// Bulk operations
	BulkMaxIDs int `mapstructure:"bulk_max_ids"`

	// Export
	ExportPollInterval  time.Duration `mapstructure:"export_poll_interval"`
	ExportDisplayWindow time.Duration `mapstructure:"export_display_window"`
	DownloadDir         string        `mapstructure:"download_dir"`

	// Cache settings
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// Timeouts
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// Filter presets
	PresetsPath string `mapstructure:"presets_path"`

	// Background tag refresh
	EnableTagRefresh bool   `mapstructure:"enable_tag_refresh"`
	TagRefreshCron   string `mapstructure:"tag_refresh_cron"` // Cron expression, default "*/15 * * * *"
}

// Load loads configuration from file and environment
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	// Read environment variables
	v.SetEnvPrefix("PHOTOFLOW")
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDerivedDefaults(&cfg, v)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend_url", "http://localhost:8000")

	// Browsing defaults
	v.SetDefault("page_size", 50)
	v.SetDefault("debounce_window", 500*time.Millisecond)

	// Bulk defaults
	v.SetDefault("bulk_max_ids", 100)

	// Export defaults
	v.SetDefault("export_poll_interval", time.Second)
	v.SetDefault("export_display_window", 3*time.Second)
	v.SetDefault("download_dir", ".")

	// Cache defaults
	v.SetDefault("cache_ttl", 5*time.Minute)

	// Timeout defaults
	v.SetDefault("request_timeout", 30*time.Second)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	// Preset defaults
	v.SetDefault("presets_path", "data/filter_presets.json")

	// Tag refresh defaults
	v.SetDefault("enable_tag_refresh", false)
	v.SetDefault("tag_refresh_cron", "*/15 * * * *")
}

func applyDerivedDefaults(cfg *Config, v *viper.Viper) {
	if cfg.BackendURL == "" {
		cfg.BackendURL = v.GetString("backend_url")
		if cfg.BackendURL == "" {
			cfg.BackendURL = "http://localhost:8000"
		}
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = v.GetInt("page_size")
		if cfg.PageSize <= 0 {
			cfg.PageSize = 50
		}
	}

	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = v.GetDuration("debounce_window")
		if cfg.DebounceWindow <= 0 {
			cfg.DebounceWindow = 500 * time.Millisecond
		}
	}

	if cfg.BulkMaxIDs <= 0 {
		cfg.BulkMaxIDs = v.GetInt("bulk_max_ids")
		if cfg.BulkMaxIDs <= 0 {
			cfg.BulkMaxIDs = 100
		}
	}

	if cfg.ExportPollInterval <= 0 {
		cfg.ExportPollInterval = v.GetDuration("export_poll_interval")
		if cfg.ExportPollInterval <= 0 {
			cfg.ExportPollInterval = time.Second
		}
	}

	if cfg.ExportDisplayWindow <= 0 {
		cfg.ExportDisplayWindow = v.GetDuration("export_display_window")
		if cfg.ExportDisplayWindow <= 0 {
			cfg.ExportDisplayWindow = 3 * time.Second
		}
	}

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = v.GetString("download_dir")
		if cfg.DownloadDir == "" {
			cfg.DownloadDir = "."
		}
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = v.GetDuration("cache_ttl")
		if cfg.CacheTTL <= 0 {
			cfg.CacheTTL = 5 * time.Minute
		}
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = v.GetDuration("request_timeout")
		if cfg.RequestTimeout <= 0 {
			cfg.RequestTimeout = 30 * time.Second
		}
	}

	if cfg.PresetsPath == "" {
		cfg.PresetsPath = v.GetString("presets_path")
		if cfg.PresetsPath == "" {
			cfg.PresetsPath = "data/filter_presets.json"
		}
	}

	if cfg.TagRefreshCron == "" {
		cfg.TagRefreshCron = v.GetString("tag_refresh_cron")
		if cfg.TagRefreshCron == "" {
			cfg.TagRefreshCron = "*/15 * * * *"
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}

	if c.BulkMaxIDs <= 0 {
		return fmt.Errorf("bulk_max_ids must be positive")
	}

	return nil
}
