// Package archive keeps a local history of succeeded analyses so reports can be listed,
// shown again and re-exported without another request to the analysis service.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/pharmaguard-client/internal/domain"
)

// ErrNotFound is returned by Get for an unknown report id.
var ErrNotFound = errors.New("report not found")

// Report is one archived analysis.
type Report struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	RequestID   string          `json:"request_id"`
	Drug        string          `json:"drug"`       // Primary result's drug
	RiskLabel   string          `json:"risk_label"` // Primary result's label
	ResultCount int             `json:"result_count"`
	Body        json.RawMessage `json:"result"` // Exact service response
	CreatedAt   time.Time       `json:"created_at"`
}

// Outcome decodes the archived body.
func (r *Report) Outcome() (*domain.Outcome, error) {
	return domain.DecodeOutcome(r.Body)
}

// ReportExport is the document written by ExportJSON.
type ReportExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Reports    []*Report `json:"reports"`
}

// Store defines the archive operations.
type Store interface {
	domain.Recorder

	// Save stores a report, assigning ID and CreatedAt when empty.
	Save(ctx context.Context, report *Report) error

	// Get returns the report with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Report, error)

	// List returns reports newest first.
	List(ctx context.Context, limit, offset int) ([]*Report, error)

	Count(ctx context.Context) (int64, error)

	Delete(ctx context.Context, id string) error

	// ExportJSON writes every report as one indented JSON document.
	ExportJSON(ctx context.Context, writer io.Writer) error

	Close() error
}

// NewReport builds a report from a succeeded state.
func NewReport(sessionID string, state domain.RequestState) (*Report, error) {
	if state.Phase != domain.PhaseSucceeded || state.Outcome == nil {
		return nil, errors.New("only succeeded analyses can be archived")
	}

	report := &Report{
		SessionID:   sessionID,
		RequestID:   state.RequestID,
		ResultCount: len(state.Outcome.Results),
		Body:        state.Outcome.Raw,
	}
	if primary := state.Outcome.Primary(); primary != nil {
		if primary.Drug != nil {
			report.Drug = *primary.Drug
		}
		if primary.RiskAssessment != nil && primary.RiskAssessment.RiskLabel != nil {
			report.RiskLabel = *primary.RiskAssessment.RiskLabel
		}
	}
	if len(report.Body) == 0 {
		body, err := json.Marshal(state.Outcome.Results)
		if err != nil {
			return nil, err
		}
		report.Body = body
	}
	return report, nil
}
