package config

import (
	"fmt"
	"os"

	"student-risk-monitor/internal/model"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the risk monitor service.
type Config struct {
	Server  ServerConfig             `yaml:"server"`
	SMTP    SMTPConfig               `yaml:"smtp"`
	Logging LoggingConfig            `yaml:"logging"`
	Rules   []model.NotificationRule `yaml:"rules"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// SMTPConfig carries the email transport details. The password is never
// read from the file; it comes from the SMTP_PASSWORD environment variable.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and validates a YAML configuration file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file %s: %v", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	return &cfg, nil
}

// Validate fills defaults and rejects values the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.SMTP.Port <= 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required when smtp.host is set")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Validate() //nolint:errcheck
	return cfg
}

// SMTPPassword reads the transport secret from the environment.
func SMTPPassword() string {
	return os.Getenv("SMTP_PASSWORD")
}
