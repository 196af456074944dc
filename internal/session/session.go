// Package session owns one analysis session: the staged input, the request lifecycle and
// the single in-flight request to the analysis service.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/internal/logging"
	"github.com/pharmaguard-client/internal/staging"
)

// Listener is notified of every state transition, in order.
type Listener func(domain.RequestState)

// Session is the request orchestrator. At most one request is in flight at a time.
type Session struct {
	id       string
	analyzer domain.Analyzer
	input    *staging.Stage
	recorder domain.Recorder
	timeout  time.Duration
	logger   *logrus.Logger

	mu         sync.Mutex
	state      domain.RequestState
	generation uint64
	cancel     context.CancelFunc
	closed     bool
	queue      []domain.RequestState

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int
	notifyMu   sync.Mutex
}

// Option is a functional option for Session.
type Option func(*Session)

// WithTimeout bounds every request. Zero leaves the wait unbounded except for the
// caller's own context.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRecorder records every succeeded outcome.
func WithRecorder(recorder domain.Recorder) Option {
	return func(s *Session) {
		s.recorder = recorder
	}
}

// WithStage uses an existing stage instead of a fresh one.
func WithStage(stage *staging.Stage) Option {
	return func(s *Session) {
		s.input = stage
	}
}

// New creates an idle session submitting through analyzer.
func New(analyzer domain.Analyzer, opts ...Option) *Session {
	s := &Session{
		id:        uuid.New().String(),
		analyzer:  analyzer,
		state:     domain.IdleState(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.input == nil {
		s.input = staging.New()
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Input returns the session's staging area.
func (s *Session) Input() *staging.Stage {
	return s.input
}

// State returns the current request state.
func (s *Session) State() domain.RequestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for state transitions and returns a function removing it.
func (s *Session) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

// Submit validates the staged input and runs one analysis request to completion.
//
// It rejects the call without any transition or network traffic when the session is
// closed, a request is already pending, or the input is incomplete. Otherwise the state
// moves to Pending and then to Succeeded or Failed; the error stored in a Failed state is
// also returned. A response arriving after Close is discarded.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if s.state.Phase == domain.PhasePending {
		s.mu.Unlock()
		return domain.ErrRequestPending
	}

	input := s.input.Snapshot()
	if err := validate(input); err != nil {
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{
			"session_id": s.id,
			"field":      err.Field,
		}).Info("Submission rejected: incomplete input")
		return err
	}

	s.generation++
	gen := s.generation
	reqCtx, cancel := s.requestContext(ctx)
	s.cancel = cancel
	requestID := uuid.New().String()
	s.setStateLocked(domain.PendingState(requestID))
	s.mu.Unlock()
	s.flush()

	defer cancel()

	log := s.logger.WithFields(logrus.Fields{
		"session_id": s.id,
		"request_id": requestID,
		"drug":       input.DrugName,
	})
	log.Info("Analysis submitted")

	outcome, err := s.analyzer.Analyze(reqCtx, domain.AnalysisRequest{
		RequestID: requestID,
		File:      input.File,
		Drug:      input.DrugName,
	})

	s.mu.Lock()
	if s.closed || s.generation != gen {
		s.mu.Unlock()
		log.Debug("Discarding response for a closed session")
		return domain.ErrSessionClosed
	}
	s.cancel = nil

	var next domain.RequestState
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = &domain.TransportError{Op: "analysis cancelled", Err: context.Canceled}
		}
		next = domain.FailedState(requestID, err)
	} else {
		next = domain.SucceededState(requestID, outcome)
	}
	s.setStateLocked(next)
	s.mu.Unlock()
	s.flush()

	if err != nil {
		log.WithFields(logrus.Fields{
			"code":  domain.ErrorCode(err),
			"error": err.Error(),
		}).Warn("Analysis failed")
		return err
	}

	log.WithField("results", len(outcome.Results)).Info("Analysis succeeded")
	s.record(ctx, next)
	return nil
}

// Close tears the session down. An in-flight request is cancelled and its response, if
// it still arrives, is ignored. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(parent, s.timeout)
	}
	return context.WithCancel(parent)
}

// setStateLocked stores next and queues it for listeners. Callers hold s.mu and must
// call flush after releasing it.
func (s *Session) setStateLocked(next domain.RequestState) {
	s.state = next
	s.queue = append(s.queue, next)
}

// flush delivers queued transitions in order. Only one goroutine delivers at a time, so
// listeners never run concurrently and may call back into the session.
func (s *Session) flush() {
	for {
		if !s.notifyMu.TryLock() {
			return
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			for _, fn := range s.snapshotListeners() {
				fn(next)
			}
		}
		s.notifyMu.Unlock()

		s.mu.Lock()
		empty := len(s.queue) == 0
		s.mu.Unlock()
		if empty {
			return
		}
	}
}

func (s *Session) snapshotListeners() []Listener {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	listeners := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	return listeners
}

func (s *Session) record(ctx context.Context, state domain.RequestState) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), s.id, state); err != nil {
		s.logger.WithError(err).WithField("session_id", s.id).Warn("Failed to record analysis")
	}
}

func validate(input domain.StagedInput) *domain.ValidationError {
	if input.File == nil {
		return domain.NewValidationError("file", "a VCF file must be selected", nil)
	}
	if input.DrugName == "" {
		return domain.NewValidationError("drug", "a drug name must be entered", input.DrugName)
	}
	return nil
}
