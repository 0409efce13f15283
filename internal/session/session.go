package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/convertctl/internal/api"
	"github.com/MimeLyc/convertctl/pkg/log"
)

const (
	statusComplete     = "Complete"
	statusInitializing = "Initializing..."
	statusProcessing   = "Processing..."

	backendDone      = "done"
	backendError     = "error"
	backendCancelled = "cancelled"
)

type Result string

const (
	ResultCompleted Result = "completed"
	ResultErrored   Result = "error"
	ResultCancelled Result = "cancelled"
	// ResultAborted means the local context ended before a terminal status.
	ResultAborted Result = "aborted"
)

// Outcome is how one submission ended.
type Outcome struct {
	JobID       string  `json:"job_id"`
	Result      Result  `json:"result"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	DownloadURL string  `json:"download_url,omitempty"`
	Err         error   `json:"-"`
}

type tickResult struct {
	seq   uint64
	state *api.JobState
	err   error
}

// jobSession owns the polling loop and progress of exactly one job.
type jobSession struct {
	ctrl     *Controller
	jobID    string
	progress *Progress

	ctx    context.Context
	cancel context.CancelFunc

	pollCtx    context.Context
	pollCancel context.CancelFunc
	ticker     *time.Ticker
	stopOnce   sync.Once
	stops      atomic.Int32
	fetches    atomic.Int64

	done    chan struct{}
	outcome Outcome
}

func newJobSession(parent context.Context, ctrl *Controller, jobID string) *jobSession {
	ctx, cancel := context.WithCancel(parent)
	pollCtx, pollCancel := context.WithCancel(ctx)
	return &jobSession{
		ctrl:       ctrl,
		jobID:      jobID,
		progress:   NewProgress(ctrl.rand),
		ctx:        ctx,
		cancel:     cancel,
		pollCtx:    pollCtx,
		pollCancel: pollCancel,
		done:       make(chan struct{}),
		outcome:    Outcome{JobID: jobID},
	}
}

// abort ends the session early; the poll loop exits and done is closed.
func (s *jobSession) abort() {
	s.cancel()
}

// stopPolling is idempotent; only the first call has an effect.
func (s *jobSession) stopPolling() {
	s.stopOnce.Do(func() {
		s.stops.Add(1)
		if s.ticker != nil {
			s.ticker.Stop()
		}
		s.pollCancel()
	})
}

func (s *jobSession) run() {
	defer close(s.done)
	defer s.cancel()
	defer s.stopPolling()

	s.ticker = time.NewTicker(s.ctrl.pollInterval)
	results := make(chan tickResult)

	var issued, applied uint64
	for {
		select {
		case <-s.pollCtx.Done():
			s.aborted()
			return
		case <-s.ticker.C:
			issued++
			go s.fetch(issued, results)
		case res := <-results:
			if res.err != nil {
				log.Warn("%v", NewErrorWithCause(ErrPoll, "status fetch failed", res.err).
					WithContext("job_id", s.jobID).
					WithContext("tick", res.seq))
				continue
			}
			if res.seq <= applied {
				log.Debug("Dropping stale status for job %s (tick %d, applied %d)", s.jobID, res.seq, applied)
				continue
			}
			applied = res.seq
			if s.apply(*res.state) {
				return
			}
		}
	}
}

func (s *jobSession) fetch(seq uint64, out chan<- tickResult) {
	s.fetches.Add(1)
	state, err := s.ctrl.backend.JobStatus(s.pollCtx, s.jobID)
	if err == nil && state == nil {
		state = &api.JobState{}
	}
	select {
	case out <- tickResult{seq: seq, state: state, err: err}:
	case <-s.pollCtx.Done():
	}
}

// apply renders one status response and reports whether it was terminal.
func (s *jobSession) apply(state api.JobState) bool {
	value := s.progress.Apply(state)
	view := s.ctrl.view

	status := state.Status
	if status == "" {
		status = statusProcessing
	}
	view.SetStatus(status)
	view.SetProgress(Display(value))

	s.outcome.Status = state.Status
	s.outcome.Progress = value

	switch {
	case state.Status == backendDone || (state.Progress != nil && *state.Progress == 100):
		s.stopPolling()
		s.complete()
		return true
	case state.Status == backendError || state.Status == backendCancelled:
		s.stopPolling()
		s.fail(state.Status)
		return true
	}
	return false
}

func (s *jobSession) complete() {
	view := s.ctrl.view
	s.ctrl.transition(s, StateCompleting)

	view.SetStatus(statusComplete)
	view.SetProgress(100, 100)
	s.outcome.Progress = 100

	timer := time.NewTimer(s.ctrl.settleDelay)
	select {
	case <-timer.C:
	case <-s.ctx.Done():
		timer.Stop()
		s.aborted()
		return
	}

	view.SetBusy(false)
	view.SetTriggerEnabled(true)
	view.SetStatus(statusInitializing)
	view.SetProgress(0, 0)
	s.progress.Reset()

	url := s.ctrl.backend.DownloadURL(s.jobID)
	s.outcome.Result = ResultCompleted
	s.outcome.DownloadURL = url
	s.ctrl.transition(s, StateIdle)

	if err := s.ctrl.nav.Navigate(s.ctx, s.jobID, url); err != nil {
		log.Error("Fetching result of job %s failed: %v", s.jobID, err)
		s.outcome.Err = NewErrorWithCause(ErrNavigate, "download failed", err).
			WithContext("job_id", s.jobID)
	}
}

func (s *jobSession) fail(status string) {
	view := s.ctrl.view
	s.ctrl.transition(s, StateFailed)

	view.SetStatus(status)
	view.SetTriggerEnabled(true)
	view.SetBusy(false)

	s.outcome.Result = ResultErrored
	if status == backendCancelled {
		s.outcome.Result = ResultCancelled
	}
	s.outcome.Err = NewError(ErrJobTerminal, status).WithContext("job_id", s.jobID)
	s.progress.Reset()
	s.ctrl.transition(s, StateIdle)
}

func (s *jobSession) aborted() {
	s.outcome.Result = ResultAborted
	s.outcome.Err = s.ctx.Err()
	if s.outcome.Err == nil {
		s.outcome.Err = context.Canceled
	}
	s.progress.Reset()
	if s.ctrl.transition(s, StateIdle) {
		s.ctrl.view.SetBusy(false)
		s.ctrl.view.SetTriggerEnabled(true)
	}
}
