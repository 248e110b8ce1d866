package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Reports  ReportsConfig  `yaml:"reports"`
	Session  SessionConfig  `yaml:"session"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Suggest  SuggestConfig  `yaml:"suggest"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string    `yaml:"listen_addr"`
	TLS        TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ReportsConfig configures the last-run report store.
type ReportsConfig struct {
	Path string `yaml:"path"`
}

type SessionConfig struct {
	// Secret encrypts the session cookie. Must be set.
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// SMTPConfig controls how outbound mail is submitted. The submission
// host is looked up from the sender address's provider; unknown
// providers fall back to the default host/port.
type SMTPConfig struct {
	DefaultHost    string                `yaml:"default_host"`
	DefaultPort    int                   `yaml:"default_port"`
	Providers      map[string]HostConfig `yaml:"providers"`
	ConnectTimeout time.Duration         `yaml:"connect_timeout"`
}

type HostConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DispatchConfig holds the retry and timeout tuning for send runs.
type DispatchConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
}

// SuggestConfig configures the subject-line suggestion service.
type SuggestConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/zapsend/app.db"
	}
	if cfg.Reports.Path == "" {
		cfg.Reports.Path = "/var/lib/zapsend/reports.db"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 7 * 24 * time.Hour
	}
	if cfg.SMTP.DefaultHost == "" {
		cfg.SMTP.DefaultHost = "smtp.office365.com"
	}
	if cfg.SMTP.DefaultPort == 0 {
		cfg.SMTP.DefaultPort = 587
	}
	if cfg.SMTP.ConnectTimeout == 0 {
		cfg.SMTP.ConnectTimeout = 15 * time.Second
	}
	if cfg.SMTP.Providers == nil {
		cfg.SMTP.Providers = map[string]HostConfig{
			"gmail":   {Host: "smtp.gmail.com", Port: 587},
			"outlook": {Host: "smtp.office365.com", Port: 587},
			"hotmail": {Host: "smtp.office365.com", Port: 587},
			"live":    {Host: "smtp.office365.com", Port: 587},
		}
	}
	if cfg.Dispatch.MaxRetries == 0 {
		cfg.Dispatch.MaxRetries = 2
	}
	if cfg.Dispatch.RetryBackoff == 0 {
		cfg.Dispatch.RetryBackoff = time.Second
	}
	if cfg.Dispatch.SendTimeout == 0 {
		cfg.Dispatch.SendTimeout = 25 * time.Second
	}
	if cfg.Suggest.BaseURL == "" {
		cfg.Suggest.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Suggest.Model == "" {
		cfg.Suggest.Model = "gemini-2.0-flash"
	}
	if cfg.Suggest.Timeout == 0 {
		cfg.Suggest.Timeout = 30 * time.Second
	}
	if cfg.Suggest.APIKey == "" {
		cfg.Suggest.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls requires cert_file and key_file")
		}
	}
	if cfg.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries must not be negative")
	}
	if cfg.Suggest.Enabled && cfg.Suggest.APIKey == "" {
		return fmt.Errorf("suggest.api_key (or GEMINI_API_KEY) is required when suggest is enabled")
	}
	return nil
}
