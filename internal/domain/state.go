package domain

import (
	"io"
	"time"
)

// Phase is the lifecycle position of an analysis request.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSucceeded
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RequestState is the authoritative value a rendering surface draws from.
// Outcome is set only in PhaseSucceeded; Message and Err only in PhaseFailed.
type RequestState struct {
	Phase     Phase
	Outcome   *Outcome
	Message   string
	Err       error
	RequestID string
	UpdatedAt time.Time
}

// IdleState is the state of a session that has not submitted anything yet.
func IdleState() RequestState {
	return RequestState{Phase: PhaseIdle, UpdatedAt: time.Now().UTC()}
}

// PendingState marks a request as in flight.
func PendingState(requestID string) RequestState {
	return RequestState{Phase: PhasePending, RequestID: requestID, UpdatedAt: time.Now().UTC()}
}

// SucceededState holds a completed outcome.
func SucceededState(requestID string, outcome *Outcome) RequestState {
	return RequestState{Phase: PhaseSucceeded, Outcome: outcome, RequestID: requestID, UpdatedAt: time.Now().UTC()}
}

// FailedState records a reported failure along with its user-visible message.
func FailedState(requestID string, err error) RequestState {
	return RequestState{
		Phase:     PhaseFailed,
		Message:   UserMessage(err),
		Err:       err,
		RequestID: requestID,
		UpdatedAt: time.Now().UTC(),
	}
}

// Result returns the primary result when the state is Succeeded.
func (s RequestState) Result() (*AnalysisResult, bool) {
	if s.Phase != PhaseSucceeded || s.Outcome == nil {
		return nil, false
	}
	r := s.Outcome.Primary()
	return r, r != nil
}

// Blob is a staged file. Implementations must allow Open to be called more than once.
type Blob interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// StagedInput is the file and drug name held before submission.
type StagedInput struct {
	File     Blob
	DrugName string
}

// Ready reports whether both a file and a non-empty drug name are present.
func (s StagedInput) Ready() bool {
	return s.File != nil && s.DrugName != ""
}

// AnalysisRequest is the outbound payload built from staged input.
type AnalysisRequest struct {
	RequestID string
	File      Blob
	Drug      string
}
