package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-client/internal/archive"
	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/internal/projector"
)

func TestBar(t *testing.T) {
	tests := []struct {
		percent int
		filled  int
	}{
		{30, 6},
		{60, 12},
		{90, 18},
		{0, 0},
		{150, 20},
		{-5, 0},
	}

	for _, tt := range tests {
		bar := Bar(tt.percent)
		assert.Equal(t, BarWidth, len([]rune(bar)))
		assert.Equal(t, tt.filled, strings.Count(bar, "█"), "percent %d", tt.percent)
	}
}

func TestRenderer_View(t *testing.T) {
	r := New(&bytes.Buffer{})
	result := &domain.AnalysisResult{
		Drug: domain.StringPtr("WARFARIN"),
		RiskAssessment: &domain.RiskAssessment{
			RiskLabel: domain.StringPtr("Adjust Dosage"),
		},
		ClinicalRecommendation: &domain.ClinicalRecommendation{
			RecommendationText: domain.StringPtr("Reduce starting dose."),
		},
	}

	collapsed := r.View(projector.Project(result, false))
	assert.Contains(t, collapsed, "WARFARIN")
	assert.Contains(t, collapsed, "Adjust Dosage")
	assert.Contains(t, collapsed, "60%")
	assert.Contains(t, collapsed, "N/A")
	assert.NotContains(t, collapsed, "Reduce starting dose.")

	expanded := r.View(projector.Project(result, true))
	assert.Contains(t, expanded, "Clinical recommendation")
	assert.Contains(t, expanded, "Reduce starting dose.")
	assert.Contains(t, expanded, "Pharmacogenomic profile")
}

func TestRenderer_State(t *testing.T) {
	r := New(&bytes.Buffer{})

	assert.Empty(t, r.State(domain.IdleState(), false))
	assert.Contains(t, r.State(domain.PendingState("req-1"), false), "Analyzing")

	failed := r.State(domain.FailedState("req-1", &domain.ServiceError{StatusCode: 400, Message: "Unsupported drug"}), false)
	assert.Contains(t, failed, "Unsupported drug")

	transport := r.State(domain.FailedState("req-2", &domain.TransportError{Op: "post analysis", Err: errors.New("refused")}), false)
	assert.Contains(t, transport, "Check your connection")

	outcome, err := domain.DecodeOutcome([]byte(`[{"drug":"CODEINE"},{"drug":"SIMVASTATIN"}]`))
	require.NoError(t, err)
	succeeded := r.State(domain.SucceededState("req-3", outcome), false)
	assert.Contains(t, succeeded, "CODEINE")
	assert.Contains(t, succeeded, "SIMVASTATIN")
	assert.Contains(t, succeeded, "Unknown")
}

func TestRenderer_History(t *testing.T) {
	r := New(&bytes.Buffer{})
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)

	out := r.History([]*archive.Report{
		{ID: "report-2", Drug: "CODEINE", RiskLabel: "Ineffective", ResultCount: 2, CreatedAt: created},
		{ID: "report-1", ResultCount: 1, CreatedAt: created},
	})

	for _, header := range []string{"ID", "DATE", "DRUG", "RISK", "RESULTS"} {
		assert.Contains(t, out, header)
	}
	assert.Contains(t, out, "report-2")
	assert.Contains(t, out, "2026-03-14 09:30")
	assert.Contains(t, out, "Ineffective")
	assert.Contains(t, out, projector.NotAvailable)
	assert.Contains(t, out, projector.UnknownLabel)
	assert.Contains(t, out, "│")
	assert.Less(t, strings.Index(out, "report-2"), strings.Index(out, "report-1"))
}
