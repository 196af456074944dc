package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Export  ExportConfig  `mapstructure:"export"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServiceConfig represents the analysis service endpoint configuration
type ServiceConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	AnalyzePath string        `mapstructure:"analyze_path"`
	Timeout     time.Duration `mapstructure:"timeout"`    // 0 disables the deadline
	RateLimit   float64       `mapstructure:"rate_limit"` // requests per second
	UserAgent   string        `mapstructure:"user_agent"`
}

// BreakerConfig represents circuit breaker settings for the analysis service
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// ExportConfig represents local report export configuration
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// ArchiveConfig represents the local analysis history store
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	CacheSize int    `mapstructure:"cache_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
