package analysis

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/internal/logging"
)

// ResilientClient wraps an Analyzer with a circuit breaker. It never retries: once the
// breaker trips, submissions fail fast with a TransportError until the cool-down elapses.
type ResilientClient struct {
	analyzer domain.Analyzer
	breaker  *gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

// NewResilientClient creates a circuit-breaking wrapper around analyzer.
func NewResilientClient(analyzer domain.Analyzer, config domain.BreakerConfig, logger *logrus.Logger) *ResilientClient {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 3
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}

	threshold := config.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analysis-service",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker changed state")
		},
	})

	return &ResilientClient{
		analyzer: analyzer,
		breaker:  breaker,
		logger:   logger,
	}
}

// Analyze forwards to the wrapped analyzer through the breaker.
func (r *ResilientClient) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.Outcome, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.analyzer.Analyze(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.TransportError{Op: "analysis service unavailable", Err: err}
		}
		return nil, err
	}
	return result.(*domain.Outcome), nil
}

// State returns the breaker state.
func (r *ResilientClient) State() gobreaker.State {
	return r.breaker.State()
}

// countsAsHealthy treats user-side problems (validation, unreadable files, 4xx,
// cancellation) as healthy so only connectivity failures and server errors trip the breaker.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var serviceErr *domain.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.StatusCode < http.StatusInternalServerError
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return true
	}
	var fileErr *domain.FileReadError
	if errors.As(err, &fileErr) {
		return true
	}
	return errors.Is(err, context.Canceled)
}
