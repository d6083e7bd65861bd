// Package config loads application configuration from a YAML file with
// environment-variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/showscout/outreach/internal/drafter"
	"github.com/showscout/outreach/internal/scheduler"
)

// Config holds all configuration for the outreach service.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Database  DatabaseConfig    `yaml:"database"`
	Redis     RedisConfig       `yaml:"redis"`
	SES       SESConfig         `yaml:"ses"`
	Scheduler SchedulerConfig   `yaml:"scheduler"`
	Outreach  OutreachConfig    `yaml:"outreach"`
	Discovery DiscoveryConfig   `yaml:"discovery"`
	Templates drafter.Templates `yaml:"templates"`
}

// ServerConfig holds the ops HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the Redis connection settings. Redis backs the daily
// send counter and job locks; leave Addr empty to fall back to in-process
// counting and PG advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds the AWS SES sending credentials.
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	FromAddress    string `yaml:"from_address"`
	FromName       string `yaml:"from_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-send timeout.
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SchedulerConfig holds cron schedules and send concurrency.
type SchedulerConfig struct {
	Cron        scheduler.CronSpecs `yaml:"cron"`
	SendWorkers int                 `yaml:"send_workers"`
}

// OutreachConfig holds the sending rules and lifecycle timers.
type OutreachConfig struct {
	DailyCap            int `yaml:"daily_cap"`
	MaxFollowUps        int `yaml:"max_follow_ups"`
	FollowUpDelayDays   int `yaml:"follow_up_delay_days"`
	EscalationDelayDays int `yaml:"escalation_delay_days"`
	CloseNoResponseDays int `yaml:"close_no_response_days"`
}

// DiscoveryConfig holds directory API credentials.
type DiscoveryConfig struct {
	PodcastIndexKey    string `yaml:"podcastindex_key"`
	PodcastIndexSecret string `yaml:"podcastindex_secret"`
	ListenNotesKey     string `yaml:"listennotes_key"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8085
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.Scheduler.Cron.EvaluateLifecycle == "" {
		cfg.Scheduler.Cron = scheduler.DefaultCronSpecs()
	}
	if cfg.Scheduler.SendWorkers == 0 {
		cfg.Scheduler.SendWorkers = 4
	}
	if cfg.Outreach.DailyCap == 0 {
		cfg.Outreach.DailyCap = 10
	}
	if cfg.Outreach.MaxFollowUps == 0 {
		cfg.Outreach.MaxFollowUps = 1
	}
	if cfg.Outreach.FollowUpDelayDays == 0 {
		cfg.Outreach.FollowUpDelayDays = 7
	}
	if cfg.Outreach.EscalationDelayDays == 0 {
		cfg.Outreach.EscalationDelayDays = 7
	}
	if cfg.Outreach.CloseNoResponseDays == 0 {
		cfg.Outreach.CloseNoResponseDays = 14
	}

	return &cfg, nil
}

// LoadFromEnv loads the YAML config and then overlays credentials from the
// environment (a .env file is honored when present). Environment always
// wins for secrets so config files can stay credential-free.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if key := os.Getenv("AWS_SES_ACCESS_KEY"); key != "" {
		cfg.SES.AccessKey = key
	}
	if secret := os.Getenv("AWS_SES_SECRET_KEY"); secret != "" {
		cfg.SES.SecretKey = secret
	}
	if from := os.Getenv("SES_FROM_ADDRESS"); from != "" {
		cfg.SES.FromAddress = from
	}
	if key := os.Getenv("PODCASTINDEX_API_KEY"); key != "" {
		cfg.Discovery.PodcastIndexKey = key
	}
	if secret := os.Getenv("PODCASTINDEX_API_SECRET"); secret != "" {
		cfg.Discovery.PodcastIndexSecret = secret
	}
	if key := os.Getenv("LISTENNOTES_API_KEY"); key != "" {
		cfg.Discovery.ListenNotesKey = key
	}

	return cfg, nil
}

// Validate checks the settings a running service cannot do without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.SES.FromAddress == "" {
		return fmt.Errorf("ses.from_address is required")
	}
	if c.Templates.PitchSubject == "" || c.Templates.PitchBody == "" {
		return fmt.Errorf("templates.pitch_subject and templates.pitch_body are required")
	}
	return nil
}
