// Package actions implements the user-triggered operations on a completed analysis:
// copying the report to the clipboard and exporting it to a local file.
package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/internal/logging"
)

// ExportFileName is the fixed name of exported reports.
const ExportFileName = "pharmaguard_report.json"

// Notices shown after a successful action.
const (
	CopiedMessage   = "Report copied to clipboard"
	ExportedMessage = "Report saved to %s"
)

// StateSource exposes the current request state.
type StateSource interface {
	State() domain.RequestState
}

// Clipboard places text on the platform clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard is the platform clipboard.
type SystemClipboard struct{}

// WriteAll writes text to the system clipboard.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this system")
	}
	return clipboard.WriteAll(text)
}

// Notice reports the outcome of an action. The zero Notice means nothing was done.
type Notice struct {
	Performed bool
	Message   string
	Path      string
}

// Actions runs copy and export against the state of a session.
type Actions struct {
	source    StateSource
	clipboard Clipboard
	fs        afero.Fs
	dir       string
	logger    *logrus.Logger
}

// Option configures Actions.
type Option func(*Actions)

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option {
	return func(a *Actions) {
		a.clipboard = c
	}
}

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(a *Actions) {
		a.fs = fs
	}
}

// WithExportDir sets the directory reports are exported to.
func WithExportDir(dir string) Option {
	return func(a *Actions) {
		a.dir = dir
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(a *Actions) {
		a.logger = logger
	}
}

// New creates Actions reading state from source.
func New(source StateSource, opts ...Option) *Actions {
	a := &Actions{
		source:    source,
		clipboard: SystemClipboard{},
		fs:        afero.NewOsFs(),
		dir:       ".",
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	return a
}

// CopyToClipboard places the encoded report on the clipboard. It does nothing unless the
// current state is Succeeded.
func (a *Actions) CopyToClipboard() (Notice, error) {
	outcome, ok := a.completed()
	if !ok {
		return Notice{}, nil
	}

	data, err := Encode(outcome)
	if err != nil {
		return Notice{}, err
	}
	if err := a.clipboard.WriteAll(string(data)); err != nil {
		return Notice{}, fmt.Errorf("failed to copy report: %w", err)
	}

	a.logger.WithField("bytes", len(data)).Info("Report copied to clipboard")
	return Notice{Performed: true, Message: CopiedMessage}, nil
}

// ExportAsFile writes the encoded report to ExportFileName in the export directory,
// replacing any earlier export. It does nothing unless the current state is Succeeded.
func (a *Actions) ExportAsFile() (Notice, error) {
	outcome, ok := a.completed()
	if !ok {
		return Notice{}, nil
	}
	return a.Export(outcome)
}

// Export writes outcome to the export directory regardless of session state. It backs
// re-export of archived reports.
func (a *Actions) Export(outcome *domain.Outcome) (Notice, error) {
	data, err := Encode(outcome)
	if err != nil {
		return Notice{}, err
	}

	if err := a.fs.MkdirAll(a.dir, 0o755); err != nil {
		return Notice{}, fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(a.dir, ExportFileName)
	if err := afero.WriteFile(a.fs, path, data, 0o644); err != nil {
		return Notice{}, fmt.Errorf("failed to write report: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"path":  path,
		"bytes": len(data),
	}).Info("Report exported")
	return Notice{Performed: true, Message: fmt.Sprintf(ExportedMessage, path), Path: path}, nil
}

func (a *Actions) completed() (*domain.Outcome, bool) {
	if a.source == nil {
		return nil, false
	}
	state := a.source.State()
	if state.Phase != domain.PhaseSucceeded || state.Outcome == nil {
		return nil, false
	}
	return state.Outcome, true
}

// Encode renders outcome as UTF-8 JSON indented by two spaces with a trailing newline.
// The service's own body is re-indented, so unknown fields survive; an outcome built in
// memory is marshalled instead.
func Encode(outcome *domain.Outcome) ([]byte, error) {
	if outcome == nil {
		return nil, fmt.Errorf("no analysis result to encode")
	}

	var buf bytes.Buffer
	if len(outcome.Raw) > 0 {
		if err := json.Indent(&buf, outcome.Raw, "", "  "); err != nil {
			return nil, fmt.Errorf("failed to encode report: %w", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	}

	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	var v interface{} = outcome.Results
	if len(outcome.Results) == 1 {
		v = outcome.Results[0]
	}
	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return buf.Bytes(), nil
}
