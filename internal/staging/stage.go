// Package staging holds the file and drug name a user has selected before an analysis
// is submitted.
package staging

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/pharmaguard-client/internal/domain"
)

// AcceptedExtension is the advisory file filter offered at selection time.
const AcceptedExtension = ".vcf"

// DragEventType identifies a drag-and-drop event on the drop zone.
type DragEventType string

const (
	DragEnter DragEventType = "dragenter"
	DragOver  DragEventType = "dragover"
	DragLeave DragEventType = "dragleave"
	Drop      DragEventType = "drop"
)

// DragEvent is a drag-and-drop event. Files is only meaningful for Drop.
type DragEvent struct {
	Type  DragEventType
	Files []domain.Blob
}

// DragOutcome tells the event source how to treat the event.
type DragOutcome struct {
	PreventDefault  bool
	StopPropagation bool
	Staged          domain.Blob
}

// Stage is the input staging area. The zero value is not usable; use New.
type Stage struct {
	mu         sync.RWMutex
	file       domain.Blob
	drugName   string
	dragActive bool
}

// New returns an empty stage.
func New() *Stage {
	return &Stage{}
}

// SetFile replaces the staged file. No extension or content check is made.
func (s *Stage) SetFile(b domain.Blob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = b
}

// SetDrugName replaces the staged drug name verbatim.
func (s *Stage) SetDrugName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drugName = name
}

// File returns the staged file or nil.
func (s *Stage) File() domain.Blob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file
}

// DrugName returns the staged drug name.
func (s *Stage) DrugName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drugName
}

// IsReady reports whether a file and a non-empty drug name are staged.
func (s *Stage) IsReady() bool {
	return s.Snapshot().Ready()
}

// Snapshot copies the staged input.
func (s *Stage) Snapshot() domain.StagedInput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.StagedInput{File: s.file, DrugName: s.drugName}
}

// DragActive reports whether a drag is currently hovering the drop zone.
func (s *Stage) DragActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dragActive
}

// HandleDrag processes a drop-zone event. Every event suppresses the default file-open
// behavior. A drop stages the first file it carries and ignores the rest.
func (s *Stage) HandleDrag(evt DragEvent) DragOutcome {
	out := DragOutcome{PreventDefault: true, StopPropagation: true}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch evt.Type {
	case DragEnter, DragOver:
		s.dragActive = true
	case DragLeave:
		s.dragActive = false
	case Drop:
		s.dragActive = false
		if len(evt.Files) > 0 && evt.Files[0] != nil {
			s.file = evt.Files[0]
			out.Staged = evt.Files[0]
		}
	}
	return out
}

// AcceptsFile reports whether name passes the advisory .vcf filter.
func AcceptsFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), AcceptedExtension)
}
