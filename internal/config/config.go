package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Facility struct {
		// ID of the facility this deployment serves.
		ID int64 `yaml:"id" validate:"gt=0"`
	} `yaml:"facility"`

	Session struct {
		TTLMinutes int `yaml:"ttl_minutes" validate:"gte=0"`
	} `yaml:"session"`

	Intent struct {
		// ConfidenceThreshold routes low-confidence intents to generic
		// conversation handling. Single source of the 0.7 default.
		ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	} `yaml:"intent"`

	Availability struct {
		GranularityMinutes int `yaml:"granularity_minutes" validate:"gte=0"`
		// SearchDays bounds the widened date range after a miss or conflict.
		SearchDays int `yaml:"search_days" validate:"gte=0"`
	} `yaml:"availability"`

	Booking struct {
		MinAdvanceMinutes int `yaml:"min_advance_minutes" validate:"gte=0"`
		MaxAdvanceDays    int `yaml:"max_advance_days" validate:"gte=0"`
	} `yaml:"booking"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		StoragePath   string `yaml:"storage_path"`
		IntervalHours int    `yaml:"interval_hours" validate:"gte=0"`
		RetentionDays int    `yaml:"retention_days" validate:"gte=0"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Managers []int64 `yaml:"managers"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err = validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/citabot.db"
	}
	if c.Facility.ID == 0 {
		c.Facility.ID = 1
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = 30
	}
	if c.Intent.ConfidenceThreshold == 0 {
		c.Intent.ConfidenceThreshold = 0.7
	}
	if c.Availability.GranularityMinutes == 0 {
		c.Availability.GranularityMinutes = 15
	}
	if c.Availability.SearchDays == 0 {
		c.Availability.SearchDays = 7
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 30
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Backup.IntervalHours == 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 14
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BookingMinAdvance() time.Duration {
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

func (c *Config) BookingMaxAdvance() time.Duration {
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}
