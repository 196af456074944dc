// Package cli implements the pharmaguard command line: analyze a VCF file against a drug,
// browse the local history and re-show or re-export archived reports.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/pharmaguard-client/internal/actions"
	"github.com/pharmaguard-client/internal/archive"
	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/internal/logging"
	"github.com/pharmaguard-client/internal/projector"
	"github.com/pharmaguard-client/internal/render"
	"github.com/pharmaguard-client/internal/session"
	"github.com/pharmaguard-client/internal/staging"
	"github.com/pharmaguard-client/pkg/analysis"
)

// DefaultHistoryLimit is how many reports history lists without --limit.
const DefaultHistoryLimit = 20

// ErrArchiveDisabled is returned by history commands when the archive is turned off.
var ErrArchiveDisabled = errors.New("the analysis archive is disabled (archive.enabled=false)")

// CLI provides the command-line interface.
type CLI struct {
	config    *domain.Config
	logger    *logrus.Logger
	out       io.Writer
	errOut    io.Writer
	analyzer  domain.Analyzer
	fs        afero.Fs
	clipboard actions.Clipboard
	store     archive.Store
}

// Option configures the CLI.
type Option func(*CLI)

// WithOutput redirects report output and diagnostics.
func WithOutput(out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.out = out
		c.errOut = errOut
	}
}

// WithAnalyzer replaces the HTTP analyzer built from configuration.
func WithAnalyzer(analyzer domain.Analyzer) Option {
	return func(c *CLI) {
		c.analyzer = analyzer
	}
}

// WithFs replaces the filesystem exports are written to.
func WithFs(fs afero.Fs) Option {
	return func(c *CLI) {
		c.fs = fs
	}
}

// WithClipboard replaces the system clipboard.
func WithClipboard(clipboard actions.Clipboard) Option {
	return func(c *CLI) {
		c.clipboard = clipboard
	}
}

// WithArchive uses an already open archive instead of opening archive.path.
func WithArchive(store archive.Store) Option {
	return func(c *CLI) {
		c.store = store
	}
}

// New creates a CLI for config.
func New(config *domain.Config, logger *logrus.Logger, opts ...Option) *CLI {
	c := &CLI{
		config:    config,
		logger:    logger,
		out:       os.Stdout,
		errOut:    os.Stderr,
		fs:        afero.NewOsFs(),
		clipboard: actions.SystemClipboard{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	return c
}

// Run executes the command named by args[0].
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "analyze":
		return c.analyze(ctx, args[1:])
	case "history":
		return c.history(ctx, args[1:])
	case "show":
		return c.show(ctx, args[1:])
	case "delete":
		return c.deleteReport(ctx, args[1:])
	case "status":
		return c.status(ctx)
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.errOut, "Unknown command: %s\n\n", args[0])
		c.showHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// Close releases the archive, if one was opened.
func (c *CLI) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// showHelp displays usage information.
func (c *CLI) showHelp() error {
	help := `
PharmaGuard - pharmacogenomic risk analysis client

Usage:
  pharmaguard <command> [options]

Commands:
  analyze   Submit a VCF file and a drug name for analysis
  history   List archived analyses
  show      Show an archived analysis
  delete    Remove an archived analysis
  status    Show the effective configuration

Analyze options:
  --file, -f <path>   VCF file to analyze
  --drug, -d <name>   Drug name, or several separated by commas
  --expand, -e        Show profile, recommendation and explanation
  --copy, -c          Copy the JSON report to the clipboard
  --export, -x        Save the JSON report as pharmaguard_report.json
  --no-archive        Do not record this analysis in the history

History options:
  --limit, -n <n>     Number of analyses to list (default 20)
  --export <path>     Write every archived analysis to one JSON file

Examples:
  pharmaguard analyze --file sample.vcf --drug WARFARIN --expand
  pharmaguard analyze -f sample.vcf -d CODEINE,CLOPIDOGREL --export
  pharmaguard history --limit 5
  pharmaguard history --export history.json
  pharmaguard show <id> --export
  pharmaguard delete <id>
`
	fmt.Fprintln(c.out, help)
	return nil
}

type analyzeOptions struct {
	file      string
	drug      string
	expand    bool
	copy      bool
	export    bool
	noArchive bool
}

func parseAnalyzeArgs(args []string) (analyzeOptions, error) {
	var opts analyzeOptions
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--file", "-f":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a path", args[i])
			}
			opts.file = args[i+1]
			i++
		case "--drug", "-d":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a drug name", args[i])
			}
			opts.drug = args[i+1]
			i++
		case "--expand", "-e":
			opts.expand = true
		case "--copy", "-c":
			opts.copy = true
		case "--export", "-x":
			opts.export = true
		case "--no-archive":
			opts.noArchive = true
		default:
			return opts, fmt.Errorf("unknown option for analyze: %s", args[i])
		}
	}
	return opts, nil
}

// analyze stages the input, submits it once and renders the outcome.
func (c *CLI) analyze(ctx context.Context, args []string) error {
	opts, err := parseAnalyzeArgs(args)
	if err != nil {
		return err
	}

	stage := staging.New()
	if opts.file != "" {
		blob, err := staging.NewFileBlob(opts.file)
		if err != nil {
			return fmt.Errorf("failed to stage file: %w", err)
		}
		if !staging.AcceptsFile(blob.Name()) {
			fmt.Fprintf(c.errOut, "⚠ Warning: %s does not look like a VCF file; submitting anyway\n", blob.Name())
		}
		stage.SetFile(blob)
	}
	stage.SetDrugName(opts.drug)

	sessionOpts := []session.Option{
		session.WithStage(stage),
		session.WithLogger(c.logger),
		session.WithTimeout(c.config.Service.Timeout),
	}
	if c.config.Archive.Enabled && !opts.noArchive {
		store, err := c.archive()
		if err != nil {
			// History is best effort; the analysis itself does not depend on it.
			c.logger.WithError(err).Warn("Archive unavailable, analysis will not be recorded")
		} else {
			sessionOpts = append(sessionOpts, session.WithRecorder(store))
		}
	}

	sess := session.New(c.analyzerFor(), sessionOpts...)
	defer sess.Close()

	r := render.New(c.out)
	unsubscribe := sess.Subscribe(func(state domain.RequestState) {
		if state.Phase == domain.PhasePending {
			fmt.Fprintln(c.errOut, r.State(state, false))
		}
	})
	defer unsubscribe()

	if err := sess.Submit(ctx); err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			fmt.Fprintln(c.errOut, domain.ValidationMessage)
			return err
		}
		state := sess.State()
		if state.Phase == domain.PhaseFailed {
			fmt.Fprintln(c.out, r.State(state, false))
		}
		return err
	}

	var expansion projector.Expansion
	if opts.expand {
		expansion.Toggle()
	}
	fmt.Fprintln(c.out, r.State(sess.State(), expansion.Expanded()))

	return c.runActions(r, actions.New(sess, c.actionOptions()...), opts.copy, opts.export)
}

func (c *CLI) runActions(r *render.Renderer, a *actions.Actions, copyReport, exportReport bool) error {
	if copyReport {
		notice, err := a.CopyToClipboard()
		if err != nil {
			return err
		}
		if notice.Performed {
			fmt.Fprintln(c.out, r.Notice(notice.Message))
		}
	}
	if exportReport {
		notice, err := a.ExportAsFile()
		if err != nil {
			return err
		}
		if notice.Performed {
			fmt.Fprintln(c.out, r.Notice(notice.Message))
		}
	}
	return nil
}

// history lists archived analyses, newest first, or exports all of them.
func (c *CLI) history(ctx context.Context, args []string) error {
	limit := DefaultHistoryLimit
	var exportPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit", "-n":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a number", args[i])
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid limit: %s", args[i+1])
			}
			limit = n
			i++
		case "--export":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a path", args[i])
			}
			exportPath = args[i+1]
			i++
		default:
			return fmt.Errorf("unknown option for history: %s", args[i])
		}
	}

	store, err := c.archive()
	if err != nil {
		return err
	}

	if exportPath != "" {
		return c.exportHistory(ctx, store, exportPath)
	}

	reports, err := store.List(ctx, limit, 0)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	total, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count history: %w", err)
	}

	if len(reports) == 0 {
		fmt.Fprintln(c.out, "No analyses recorded yet.")
		return nil
	}

	fmt.Fprintln(c.out, render.New(c.out).History(reports))
	fmt.Fprintf(c.out, "\nShowing %d of %d analyses.\n", len(reports), total)
	return nil
}

// exportHistory writes the whole archive to path.
func (c *CLI) exportHistory(ctx context.Context, store archive.Store, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := c.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	file, err := c.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create history export: %w", err)
	}
	if err := store.ExportJSON(ctx, file); err != nil {
		file.Close()
		return fmt.Errorf("failed to export history: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write history export: %w", err)
	}

	c.logger.WithField("path", path).Info("History exported")
	fmt.Fprintln(c.out, render.New(c.out).Notice(fmt.Sprintf("History saved to %s", path)))
	return nil
}

// deleteReport removes one archived analysis.
func (c *CLI) deleteReport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete requires exactly one report id (see 'pharmaguard history')")
	}
	id := args[0]

	store, err := c.archive()
	if err != nil {
		return err
	}
	if _, err := store.Get(ctx, id); err != nil {
		return fmt.Errorf("failed to load report %s: %w", id, err)
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}

	c.logger.WithField("report_id", id).Info("Report deleted")
	fmt.Fprintln(c.out, render.New(c.out).Notice(fmt.Sprintf("Deleted report %s", id)))
	return nil
}

// show renders one archived analysis.
func (c *CLI) show(ctx context.Context, args []string) error {
	var id string
	var expand, exportReport bool
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--expand", "-e":
			expand = true
		case "--export", "-x":
			exportReport = true
		default:
			if id != "" {
				return fmt.Errorf("unexpected argument: %s", args[i])
			}
			id = args[i]
		}
	}
	if id == "" {
		return fmt.Errorf("show requires a report id (see 'pharmaguard history')")
	}

	store, err := c.archive()
	if err != nil {
		return err
	}
	report, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load report %s: %w", id, err)
	}
	outcome, err := report.Outcome()
	if err != nil {
		return fmt.Errorf("archived report %s is unreadable: %w", id, err)
	}

	r := render.New(c.out)
	fmt.Fprintln(c.out, r.State(domain.SucceededState(report.RequestID, outcome), expand))

	if exportReport {
		notice, err := actions.New(nil, c.actionOptions()...).Export(outcome)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, r.Notice(notice.Message))
	}
	return nil
}

// status prints the effective configuration.
func (c *CLI) status(ctx context.Context) error {
	cfg := c.config
	client := analysis.NewClient(cfg.Service, c.logger)

	fmt.Fprintln(c.out, "PharmaGuard Status")
	fmt.Fprintln(c.out, "==================")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Analysis service:")
	fmt.Fprintf(c.out, "  Endpoint: %s\n", client.Endpoint())
	if cfg.Service.Timeout > 0 {
		fmt.Fprintf(c.out, "  Timeout: %s\n", cfg.Service.Timeout)
	} else {
		fmt.Fprintln(c.out, "  Timeout: none")
	}
	fmt.Fprintf(c.out, "  Circuit breaker: opens after %d consecutive failures for %s\n",
		cfg.Breaker.FailureThreshold, cfg.Breaker.Timeout)
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Export:")
	fmt.Fprintf(c.out, "  Directory: %s\n", cfg.Export.Dir)
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Archive:")
	if !cfg.Archive.Enabled {
		fmt.Fprintln(c.out, "  Status: - Disabled")
		return nil
	}
	fmt.Fprintf(c.out, "  Path: %s\n", cfg.Archive.Path)
	store, err := c.archive()
	if err != nil {
		fmt.Fprintf(c.out, "  Status: ✗ %v\n", err)
		return nil
	}
	count, err := store.Count(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "  Status: ✗ %v\n", err)
		return nil
	}
	fmt.Fprintf(c.out, "  Status: ✓ %d analyses recorded\n", count)
	return nil
}

// analyzerFor returns the injected analyzer or the circuit-breaking HTTP client.
func (c *CLI) analyzerFor() domain.Analyzer {
	if c.analyzer != nil {
		return c.analyzer
	}
	client := analysis.NewClient(c.config.Service, c.logger)
	return analysis.NewResilientClient(client, c.config.Breaker, c.logger)
}

// archive opens the configured store on first use.
func (c *CLI) archive() (archive.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	if !c.config.Archive.Enabled {
		return nil, ErrArchiveDisabled
	}
	store, err := archive.NewSQLiteStore(c.config.Archive.Path, c.config.Archive.CacheSize, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	c.store = store
	return store, nil
}

func (c *CLI) actionOptions() []actions.Option {
	return []actions.Option{
		actions.WithFs(c.fs),
		actions.WithClipboard(c.clipboard),
		actions.WithExportDir(c.config.Export.Dir),
		actions.WithLogger(c.logger),
	}
}
