package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funpik/adminconsole/pkg/environment"
	sharedconfig "github.com/funpik/adminconsole/pkg/shared/config"
)

// Loader is an interface for loading configuration
type Loader interface {
	Load() (*Config, error)
}

// FileLoader loads configuration from a YAML or JSON file
type FileLoader struct {
	path string
}

// NewFileLoader creates a new FileLoader
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Path returns the file this loader reads
func (l *FileLoader) Path() string {
	return l.path
}

// Load reads and parses the configuration file
// Supports both YAML (.yaml, .yml) and JSON (.json) formats
// ${VAR} and ${VAR:-default} references are expanded before parsing
func (l *FileLoader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, l.path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	data = sharedconfig.ExpandEnvBytes(data)

	var cfg Config
	ext := strings.ToLower(filepath.Ext(l.path))

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional fields
func applyDefaults(cfg *Config) {
	if cfg.Environment.Hosts.Development == "" {
		cfg.Environment.Hosts.Development = environment.DefaultHosts.Development
	}

	if cfg.Environment.Hosts.Production == "" {
		cfg.Environment.Hosts.Production = environment.DefaultHosts.Production
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "leveldb"
	}

	if cfg.Auth.Timeout == "" {
		cfg.Auth.Timeout = "30s"
	}

	if cfg.Session.VerifyTimeout == "" {
		cfg.Session.VerifyTimeout = "10s"
	}

	if cfg.Media.Bucket != "" && cfg.Media.Region == "" {
		cfg.Media.Region = "ap-northeast-2"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
