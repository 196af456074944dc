package actions

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-client/internal/domain"
)

const sampleBody = `{"drug":"WARFARIN","risk_assessment":{"risk_label":"Adjust Dosage","confidence_score":"92%","severity":"Moderate"},"pharmacogenomic_profile":{"primary_gene":"CYP2C9","phenotype":"IM"},"extra":{"model":"v2"}}`

type fixedState struct {
	state domain.RequestState
}

func (f fixedState) State() domain.RequestState { return f.state }

type fakeClipboard struct {
	writes []string
	err    error
}

func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, text)
	return nil
}

func succeeded(t *testing.T, body string) fixedState {
	t.Helper()
	outcome, err := domain.DecodeOutcome([]byte(body))
	require.NoError(t, err)
	return fixedState{state: domain.SucceededState("req-1", outcome)}
}

func TestActions_NoOpUnlessSucceeded(t *testing.T) {
	states := map[string]domain.RequestState{
		"idle":    domain.IdleState(),
		"pending": domain.PendingState("req-1"),
		"failed":  domain.FailedState("req-1", &domain.ServiceError{StatusCode: 400, Message: "Unsupported drug"}),
	}

	for name, state := range states {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			clip := &fakeClipboard{}
			a := New(fixedState{state: state}, WithFs(fs), WithClipboard(clip), WithExportDir("/out"))

			notice, err := a.CopyToClipboard()
			require.NoError(t, err)
			assert.False(t, notice.Performed)

			notice, err = a.ExportAsFile()
			require.NoError(t, err)
			assert.False(t, notice.Performed)

			assert.Empty(t, clip.writes)
			exists, err := afero.Exists(fs, "/out/"+ExportFileName)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}

	t.Run("nil source", func(t *testing.T) {
		notice, err := New(nil, WithClipboard(&fakeClipboard{})).CopyToClipboard()
		require.NoError(t, err)
		assert.Equal(t, Notice{}, notice)
	})
}

func TestCopyToClipboard(t *testing.T) {
	clip := &fakeClipboard{}
	a := New(succeeded(t, sampleBody), WithClipboard(clip), WithFs(afero.NewMemMapFs()))

	notice, err := a.CopyToClipboard()
	require.NoError(t, err)
	assert.True(t, notice.Performed)
	assert.Equal(t, CopiedMessage, notice.Message)

	require.Len(t, clip.writes, 1)
	assert.JSONEq(t, sampleBody, clip.writes[0])
	assert.Contains(t, clip.writes[0], "\n  \"drug\": \"WARFARIN\"")
}

func TestCopyToClipboard_Error(t *testing.T) {
	clip := &fakeClipboard{err: errors.New("no display")}
	a := New(succeeded(t, sampleBody), WithClipboard(clip))

	notice, err := a.CopyToClipboard()
	require.Error(t, err)
	assert.False(t, notice.Performed)
}

func TestExportAsFile_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	clip := &fakeClipboard{}
	source := succeeded(t, sampleBody)
	a := New(source, WithFs(fs), WithClipboard(clip), WithExportDir("/reports"))

	notice, err := a.ExportAsFile()
	require.NoError(t, err)
	assert.True(t, notice.Performed)
	assert.Equal(t, "/reports/pharmaguard_report.json", notice.Path)

	data, err := afero.ReadFile(fs, notice.Path)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	var exported domain.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Equal(t, *source.state.Outcome.Primary(), exported)

	_, err = a.CopyToClipboard()
	require.NoError(t, err)
	assert.Equal(t, string(data), clip.writes[0])
}

func TestExportAsFile_Overwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, ExportFileName, []byte("stale"), 0o644))

	a := New(succeeded(t, `{"drug":"CODEINE"}`), WithFs(fs))
	_, err := a.ExportAsFile()
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, ExportFileName)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"drug\": \"CODEINE\"\n}\n", string(data))
}

func TestExportAsFile_ReadOnlyFs(t *testing.T) {
	a := New(succeeded(t, sampleBody), WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())), WithExportDir("/out"))

	notice, err := a.ExportAsFile()
	require.Error(t, err)
	assert.False(t, notice.Performed)
}

func TestEncode(t *testing.T) {
	t.Run("array body", func(t *testing.T) {
		outcome, err := domain.DecodeOutcome([]byte(`[{"drug":"CODEINE"},{"drug":"WARFARIN"}]`))
		require.NoError(t, err)

		data, err := Encode(outcome)
		require.NoError(t, err)
		assert.Equal(t, "[\n  {\n    \"drug\": \"CODEINE\"\n  },\n  {\n    \"drug\": \"WARFARIN\"\n  }\n]\n", string(data))
	})

	t.Run("in-memory outcome", func(t *testing.T) {
		outcome := &domain.Outcome{Results: []*domain.AnalysisResult{{Drug: domain.StringPtr("A&B")}}}

		data, err := Encode(outcome)
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"drug\": \"A&B\"\n}\n", string(data))
	})

	t.Run("nil", func(t *testing.T) {
		_, err := Encode(nil)
		assert.Error(t, err)
	})
}
