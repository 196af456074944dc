// Package config loads client configuration from defaults, an optional config.yaml, an
// optional .env file and PHARMAGUARD_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pharmaguard-client/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. PHARMAGUARD_SERVICE_BASE_URL.
const EnvPrefix = "PHARMAGUARD"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

var _ domain.ConfigManager = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithConfigFile reads path instead of searching for config.yaml.
func WithConfigFile(path string) Option {
	return func(m *Manager) {
		m.configFile = path
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// DataDir is the per-user directory holding the archive and optional config.
func DataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".pharmaguard"
	}
	return filepath.Join(homeDir, ".pharmaguard")
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// A missing .env is normal; variables already set in the environment win.
	_ = godotenv.Load()

	v := viper.New()
	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath(DataDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Analysis service
	v.SetDefault("service.base_url", "http://localhost:5000")
	v.SetDefault("service.analyze_path", "/api/analyze")
	v.SetDefault("service.timeout", "120s")
	v.SetDefault("service.rate_limit", 2)
	v.SetDefault("service.user_agent", "pharmaguard-client/1.0")

	// Circuit breaker
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.failure_threshold", 3)

	v.SetDefault("export.dir", ".")

	// History archive
	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.path", filepath.Join(DataDir(), "history.db"))
	v.SetDefault("archive.cache_size", 128)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServiceConfig returns analysis service configuration
func (m *Manager) GetServiceConfig() *domain.ServiceConfig {
	return &m.config.Service
}

// GetBreakerConfig returns circuit breaker configuration
func (m *Manager) GetBreakerConfig() *domain.BreakerConfig {
	return &m.config.Breaker
}

// ConfigFileUsed returns the config file that was read, or "" when none was found.
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	u, err := url.Parse(config.Service.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid service base URL: %q", config.Service.BaseURL)
	}
	if config.Service.Timeout < 0 {
		return fmt.Errorf("service timeout must not be negative: %s", config.Service.Timeout)
	}
	if config.Service.RateLimit <= 0 {
		return fmt.Errorf("service rate limit must be positive: %v", config.Service.RateLimit)
	}

	if config.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("breaker failure threshold must be positive")
	}

	if config.Archive.Enabled {
		if config.Archive.Path == "" {
			return fmt.Errorf("archive path is required when the archive is enabled")
		}
		if config.Archive.CacheSize <= 0 {
			return fmt.Errorf("archive cache size must be positive: %d", config.Archive.CacheSize)
		}
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "text" {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}
