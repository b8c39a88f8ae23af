package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type State string

const (
	StateIdle    State = "idle"
	StateReady   State = "ready"
	StateRunning State = "running"
)

type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is what the control surface shows once a run has ended.
type Outcome struct {
	BatchID    string      `json:"batchId"`
	Kind       OutcomeKind `json:"kind"`
	Error      string      `json:"error,omitempty"`
	Stage      Stage       `json:"stage,omitempty"`
	Group      string      `json:"group,omitempty"`
	OutputDir  string      `json:"outputDir,omitempty"`
	Completed  int         `json:"completed"`
	Total      int         `json:"total"`
	FinishedAt time.Time   `json:"finishedAt"`
}

type Snapshot struct {
	State    State     `json:"state"`
	Batch    *Batch    `json:"batch,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
	ETA      string    `json:"eta,omitempty"`
	Last     *Outcome  `json:"last,omitempty"`
}

// Session owns the batch state of one control surface. The control
// surface drops, starts and cancels; a single worker goroutine executes.
type Session struct {
	mu       sync.Mutex
	exec     *Executor
	opts     []PlanOption
	state    State
	batch    *Batch
	signal   *CancelSignal
	progress *Progress
	last     *Outcome
	// worker is closed once the most recent run has fully exited: its
	// process reaped, intermediates handled and output lock released.
	worker chan struct{}
}

func NewSession(exec *Executor, opts ...PlanOption) *Session {
	return &Session{
		exec:  exec,
		opts:  opts,
		state: StateIdle,
	}
}

// resetLocked returns the session to idle. Callers hold s.mu.
func (s *Session) resetLocked() {
	s.state = StateIdle
	s.batch = nil
	s.signal = nil
	s.progress = nil
}

// Drop classifies and plans a new set of paths, replacing any ready batch.
// A NoOp drop returns (nil, nil) and leaves the session idle.
func (s *Session) Drop(paths []string) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return nil, ErrBusy
	}
	s.resetLocked()

	res, err := Classify(paths)
	if err != nil {
		log.Warnf("Drop rejected: %v", err)
		return nil, err
	}
	if res.NoOp {
		log.Info("Only MP4 files dropped, nothing to convert")
		return nil, nil
	}

	b, err := BuildPlan(res, s.opts...)
	if err != nil {
		return nil, err
	}
	s.batch = b
	s.state = StateReady

	log.Infof("Loaded %d %s files (%d ignored)", len(res.Files), res.Category, res.Ignored)
	log.Infof("Plan: %s", b.Describe())
	return b, nil
}

// Start runs the ready batch on a new worker goroutine and returns its ID.
// The returned channel receives the result once and is then closed. A run
// started right after Cancel waits for the cancelled worker to exit first,
// so at most one encoder process is alive at any time.
func (s *Session) Start(ctx context.Context) (string, <-chan ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return "", nil, ErrBusy
	case StateIdle:
		return "", nil, ErrNotReady
	}

	b := s.batch
	sig := NewCancelSignal()
	s.signal = sig
	s.state = StateRunning

	prev := s.worker
	worker := make(chan struct{})
	s.worker = worker

	done := make(chan ExecutionResult, 1)
	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		res := s.exec.Execute(ctx, b, func(p Progress) { s.report(sig, p) }, sig)
		close(worker)
		s.finish(sig, res)
		done <- res
	}()
	return b.ID, done, nil
}

// report stores progress unless the run has been cancelled or replaced.
func (s *Session) report(sig *CancelSignal, p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signal != sig {
		return
	}
	s.progress = &p
}

func (s *Session) finish(sig *CancelSignal, res ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signal != sig {
		// Cancel already reset the session and recorded the outcome.
		return
	}

	o := &Outcome{
		BatchID:    res.BatchID,
		Kind:       OutcomeCompleted,
		OutputDir:  res.OutputDir,
		Completed:  res.Completed,
		Total:      res.Total,
		FinishedAt: time.Now(),
	}
	if res.Err != nil {
		o.Kind = OutcomeFailed
		if res.Cancelled() {
			o.Kind = OutcomeCancelled
		}
		o.Error = res.Err.Error()
		var pf *ProcessFailure
		if errors.As(res.Err, &pf) {
			o.Stage = pf.Stage
			o.Group = pf.BaseName
		}
	}
	s.last = o
	s.resetLocked()
}

// Cancel kills the running process, if any, and resets the session to idle
// in one step. It is safe to call in any state.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.signal == nil && s.batch == nil {
		return
	}
	if s.signal != nil {
		s.signal.Cancel()
		o := &Outcome{Kind: OutcomeCancelled, Error: ErrCancelled.Error(), FinishedAt: time.Now()}
		if s.batch != nil {
			o.BatchID = s.batch.ID
			o.OutputDir = s.batch.OutputDir
			o.Total = len(s.batch.Groups)
		}
		if s.progress != nil {
			o.Completed = s.progress.Completed
		}
		s.last = o
	}
	s.resetLocked()
	log.Warn("Processing cancelled")
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{State: s.state, Batch: s.batch, Last: s.last}
	if s.progress != nil {
		p := *s.progress
		snap.Progress = &p
		snap.ETA = p.ETAString()
	} else if s.state == StateRunning {
		snap.ETA = "calculating"
	}
	return snap
}
