package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port          int     `yaml:"port"`
		APIKey        string  `yaml:"api_key"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		RateBurst     int     `yaml:"rate_burst"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address    string `yaml:"address"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		StoragePath   string `yaml:"storage_path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Booking struct {
		MinSlotMinutes       int `yaml:"min_slot_minutes"`
		MaxSlotMinutes       int `yaml:"max_slot_minutes"`
		MaxGenerateDays      int `yaml:"max_generate_days"`
		HorizonDays          int `yaml:"horizon_days"`
		RetentionDays        int `yaml:"retention_days"`
		RefreshIntervalHours int `yaml:"refresh_interval_hours"`
	} `yaml:"booking"`
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

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RatePerSecond <= 0 {
		c.Server.RatePerSecond = 50
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 100
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/garagebook.db"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Booking.MinSlotMinutes <= 0 {
		c.Booking.MinSlotMinutes = 10
	}
	if c.Booking.MaxSlotMinutes <= 0 {
		c.Booking.MaxSlotMinutes = 240
	}
	if c.Booking.MaxGenerateDays <= 0 {
		c.Booking.MaxGenerateDays = 90
	}
	if c.Booking.HorizonDays <= 0 {
		c.Booking.HorizonDays = 30
	}
	if c.Booking.RetentionDays <= 0 {
		c.Booking.RetentionDays = 31
	}
	if c.Booking.RefreshIntervalHours <= 0 {
		c.Booking.RefreshIntervalHours = 24
	}
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.TTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Booking.RefreshIntervalHours) * time.Hour
}

func (c *Config) BackupInterval() time.Duration {
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
