package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-client/internal/archive"
	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/pkg/analysis/analysistest"
)

type fakeClipboard struct {
	text string
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.text = text
	return nil
}

type harness struct {
	cli       *CLI
	fake      *analysistest.Server
	out       *bytes.Buffer
	errOut    *bytes.Buffer
	fs        afero.Fs
	clipboard *fakeClipboard
	vcf       string
	config    *domain.Config
}

func newHarness(t *testing.T, archiveEnabled bool) *harness {
	t.Helper()

	fake := analysistest.NewServer()
	t.Cleanup(fake.Close)

	dir := t.TempDir()
	vcf := filepath.Join(dir, "sample.vcf")
	require.NoError(t, os.WriteFile(vcf, []byte("##fileformat=VCFv4.2\n"), 0o644))

	config := &domain.Config{
		Service: fake.Config(),
		Breaker: domain.BreakerConfig{FailureThreshold: 3},
		Export:  domain.ExportConfig{Dir: "/exports"},
		Archive: domain.ArchiveConfig{
			Enabled:   archiveEnabled,
			Path:      filepath.Join(dir, "history.db"),
			CacheSize: 8,
		},
		Logging: domain.LoggingConfig{Level: "info", Format: "text"},
	}

	h := &harness{
		fake:      fake,
		out:       &bytes.Buffer{},
		errOut:    &bytes.Buffer{},
		fs:        afero.NewMemMapFs(),
		clipboard: &fakeClipboard{},
		vcf:       vcf,
		config:    config,
	}
	h.cli = New(config, nil,
		WithOutput(h.out, h.errOut),
		WithFs(h.fs),
		WithClipboard(h.clipboard),
	)
	t.Cleanup(func() { h.cli.Close() })
	return h
}

func (h *harness) run(args ...string) error {
	return h.cli.Run(context.Background(), args)
}

func TestRun_Help(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.run())
	assert.Contains(t, h.out.String(), "pharmaguard <command>")

	h.out.Reset()
	require.NoError(t, h.run("help"))
	assert.Contains(t, h.out.String(), "analyze")

	err := h.run("classify")
	require.Error(t, err)
	assert.Contains(t, h.errOut.String(), "Unknown command: classify")
}

func TestAnalyze_Success(t *testing.T) {
	h := newHarness(t, true)

	err := h.run("analyze", "--file", h.vcf, "--drug", "WARFARIN", "--expand", "--copy", "--export")
	require.NoError(t, err)

	out := h.out.String()
	assert.Contains(t, out, "WARFARIN")
	assert.Contains(t, out, "Adjust Dosage")
	assert.Contains(t, out, "60%")
	assert.Contains(t, out, "Dose adjustment required.")
	assert.Contains(t, out, "Report copied to clipboard")
	assert.Contains(t, out, "pharmaguard_report.json")
	assert.Contains(t, h.errOut.String(), "Analyzing")

	subs := h.fake.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "WARFARIN", subs[0].Drug)
	assert.Equal(t, "sample.vcf", subs[0].FileName)

	exported, err := afero.ReadFile(h.fs, "/exports/pharmaguard_report.json")
	require.NoError(t, err)
	assert.JSONEq(t, analysistest.SampleResult, string(exported))
	assert.Equal(t, string(exported), h.clipboard.text)

	count, err := h.cli.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAnalyze_Collapsed(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.run("analyze", "-f", h.vcf, "-d", "WARFARIN"))
	assert.NotContains(t, h.out.String(), "Dose adjustment required.")
	assert.Contains(t, h.out.String(), "details hidden")
	assert.Empty(t, h.clipboard.text)
}

func TestAnalyze_MissingInput(t *testing.T) {
	h := newHarness(t, false)

	err := h.run("analyze", "--drug", "WARFARIN")

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "file", validationErr.Field)
	assert.Contains(t, h.errOut.String(), domain.ValidationMessage)
	assert.Equal(t, 0, h.fake.Count())
}

func TestAnalyze_ServiceError(t *testing.T) {
	h := newHarness(t, true)
	h.fake.RespondJSON(http.StatusBadRequest, map[string]string{"error": "Unsupported drug"})

	err := h.run("analyze", "-f", h.vcf, "-d", "ASPIRIN", "--export")

	require.Error(t, err)
	assert.Contains(t, h.out.String(), "Unsupported drug")
	exists, _ := afero.Exists(h.fs, "/exports/pharmaguard_report.json")
	assert.False(t, exists)

	count, err := h.cli.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAnalyze_NonVCFWarning(t *testing.T) {
	h := newHarness(t, false)
	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("not a vcf"), 0o644))

	require.NoError(t, h.run("analyze", "-f", txt, "-d", "WARFARIN"))
	assert.Contains(t, h.errOut.String(), "does not look like a VCF file")
	assert.Equal(t, 1, h.fake.Count())
}

func TestAnalyze_BadArguments(t *testing.T) {
	h := newHarness(t, false)

	assert.Error(t, h.run("analyze", "--file"))
	assert.Error(t, h.run("analyze", "--verbose"))
	assert.Error(t, h.run("analyze", "-f", filepath.Join(t.TempDir(), "missing.vcf"), "-d", "WARFARIN"))
	assert.Equal(t, 0, h.fake.Count())
}

func TestAnalyze_NoArchiveFlag(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.run("analyze", "-f", h.vcf, "-d", "WARFARIN", "--no-archive"))
	assert.Nil(t, h.cli.store)
}

func TestHistoryAndShow(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.run("analyze", "-f", h.vcf, "-d", "WARFARIN"))
	h.fake.Respond(http.StatusOK, `[{"drug":"CODEINE","risk_assessment":{"risk_label":"Ineffective"}},{"drug":"SIMVASTATIN"}]`)
	require.NoError(t, h.run("analyze", "-f", h.vcf, "-d", "CODEINE,SIMVASTATIN"))

	h.out.Reset()
	require.NoError(t, h.run("history", "--limit", "10"))
	out := h.out.String()
	assert.Contains(t, out, "CODEINE")
	assert.Contains(t, out, "Ineffective")
	assert.Contains(t, out, "WARFARIN")
	assert.Contains(t, out, "Showing 2 of 2 analyses.")
	// Newest first.
	assert.Less(t, strings.Index(out, "CODEINE"), strings.Index(out, "WARFARIN"))

	reports, err := h.cli.store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Contains(t, out, "RESULTS")
	assert.Contains(t, out, reports[0].ID)
	assert.Contains(t, out, reports[1].ID)

	h.out.Reset()
	require.NoError(t, h.run("show", reports[1].ID, "--expand", "--export"))
	assert.Contains(t, h.out.String(), "WARFARIN")
	assert.Contains(t, h.out.String(), "Clinical recommendation")

	exported, err := afero.ReadFile(h.fs, "/exports/pharmaguard_report.json")
	require.NoError(t, err)
	var result domain.AnalysisResult
	require.NoError(t, json.Unmarshal(exported, &result))
	assert.Equal(t, "WARFARIN", *result.Drug)

	require.Error(t, h.run("show"))
	err = h.run("show", "no-such-id")
	assert.ErrorIs(t, err, archive.ErrNotFound)
}

func TestHistory_Empty(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.run("history"))
	assert.Contains(t, h.out.String(), "No analyses recorded yet.")

	assert.Error(t, h.run("history", "--limit", "zero"))
}

func TestHistory_ArchiveDisabled(t *testing.T) {
	h := newHarness(t, false)

	assert.ErrorIs(t, h.run("history"), ErrArchiveDisabled)
	assert.ErrorIs(t, h.run("show", "abc"), ErrArchiveDisabled)
}

func TestStatus(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.run("status"))
	out := h.out.String()
	assert.Contains(t, out, h.fake.URL+"/api/analyze")
	assert.Contains(t, out, "0 analyses recorded")

	h = newHarness(t, false)
	require.NoError(t, h.run("status"))
	assert.Contains(t, h.out.String(), "Disabled")
}

func TestHistory_Export(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.run("analyze", "-f", h.vcf, "-d", "WARFARIN"))
	require.NoError(t, h.run("history", "--export", "/backups/history.json"))
	assert.Contains(t, h.out.String(), "History saved to /backups/history.json")

	data, err := afero.ReadFile(h.fs, "/backups/history.json")
	require.NoError(t, err)

	var export archive.ReportExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 1, export.Count)
	require.Len(t, export.Reports, 1)
	assert.Equal(t, "WARFARIN", export.Reports[0].Drug)
	assert.JSONEq(t, analysistest.SampleResult, string(export.Reports[0].Body))

	assert.Error(t, h.run("history", "--export"))
}

func TestHistory_ExportReadOnlyFs(t *testing.T) {
	h := newHarness(t, true)
	h.cli.fs = afero.NewReadOnlyFs(afero.NewMemMapFs())

	assert.Error(t, h.run("history", "--export", "history.json"))
}

func TestDelete(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.run("analyze", "-f", h.vcf, "-d", "WARFARIN"))
	reports, err := h.cli.store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	id := reports[0].ID

	h.out.Reset()
	require.NoError(t, h.run("delete", id))
	assert.Contains(t, h.out.String(), "Deleted report "+id)

	count, err := h.cli.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.ErrorIs(t, h.run("show", id), archive.ErrNotFound)
	assert.ErrorIs(t, h.run("delete", id), archive.ErrNotFound)
	assert.Error(t, h.run("delete"))
	assert.Error(t, h.run("delete", "a", "b"))
}

func TestDelete_ArchiveDisabled(t *testing.T) {
	h := newHarness(t, false)

	assert.ErrorIs(t, h.run("delete", "abc"), ErrArchiveDisabled)
}
