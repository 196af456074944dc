package domain

import (
	"context"
)

// Analyzer submits one analysis request to the remote service. Implementations issue
// exactly one attempt and classify failures as ServiceError, TransportError or
// MalformedResponseError.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*Outcome, error)
}

// Recorder receives every succeeded outcome of a session.
type Recorder interface {
	Record(ctx context.Context, sessionID string, state RequestState) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServiceConfig() *ServiceConfig
	GetBreakerConfig() *BreakerConfig
	ConfigFileUsed() string
	Reload() error
	Validate() error
}
