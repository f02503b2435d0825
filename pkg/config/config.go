package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/funpik/adminconsole/pkg/environment"
	"github.com/funpik/adminconsole/pkg/media"
	"github.com/funpik/adminconsole/pkg/shared/kvs"
	"github.com/funpik/adminconsole/pkg/shared/logging"
)

// Config represents the application configuration
type Config struct {
	Environment EnvironmentConfig `yaml:"environment" json:"environment"`
	Storage     kvs.Config        `yaml:"storage" json:"storage"`
	Auth        AuthConfig        `yaml:"auth" json:"auth"`
	Session     SessionConfig     `yaml:"session" json:"session"`
	Media       media.Config      `yaml:"media" json:"media"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// EnvironmentConfig contains the backend hosts
type EnvironmentConfig struct {
	Hosts environment.Hosts `yaml:"hosts" json:"hosts"`
}

// AuthConfig contains backend client settings
type AuthConfig struct {
	Timeout      string `yaml:"timeout" json:"timeout"`             // Per-request timeout (default: "30s")
	HashPassword bool   `yaml:"hash_password" json:"hash_password"` // Send SHA-256 of the password instead of the password
}

// GetTimeout returns the request timeout as a time.Duration
func (a AuthConfig) GetTimeout() (time.Duration, error) {
	if a.Timeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(a.Timeout)
}

// SessionConfig contains session controller settings
type SessionConfig struct {
	VerifyTimeout string `yaml:"verify_timeout" json:"verify_timeout"` // Startup verify limit (default: "10s")
	FailClosed    bool   `yaml:"fail_closed" json:"fail_closed"`       // Log out on any verify failure
}

// GetVerifyTimeout returns the verify timeout as a time.Duration
func (s SessionConfig) GetVerifyTimeout() (time.Duration, error) {
	if s.VerifyTimeout == "" {
		return 10 * time.Second, nil
	}
	return time.ParseDuration(s.VerifyTimeout)
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string        `yaml:"level" json:"level"`
	Color bool          `yaml:"color" json:"color"`
	File  LogFileConfig `yaml:"file" json:"file"`
}

// LogFileConfig contains rotated log file settings. Path empty disables
// file logging.
type LogFileConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Rotation converts the settings for the logging factory
func (f LogFileConfig) Rotation() *logging.FileRotationConfig {
	if f.Path == "" {
		return nil
	}
	return &logging.FileRotationConfig{
		Path:       f.Path,
		MaxSizeMB:  f.MaxSizeMB,
		MaxBackups: f.MaxBackups,
		MaxAge:     f.MaxAge,
		Compress:   f.Compress,
	}
}

// Default returns the configuration used when no file exists
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Environment.Hosts.Validate(); err != nil {
		return ErrHostsRequired
	}

	switch c.Storage.Type {
	case "", "leveldb", "memory":
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return ErrRedisAddrRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStorageType, c.Storage.Type)
	}

	if _, err := c.Auth.GetTimeout(); err != nil {
		return fmt.Errorf("%w: auth.timeout: %v", ErrInvalidDuration, err)
	}
	if _, err := c.Session.GetVerifyTimeout(); err != nil {
		return fmt.Errorf("%w: session.verify_timeout: %v", ErrInvalidDuration, err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.Logging.Level)
	}

	if c.Media.Bucket != "" && c.Media.Region == "" {
		return ErrMediaRegionRequired
	}

	return nil
}
