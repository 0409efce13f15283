package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MimeLyc/convertctl/internal/api"
	"github.com/MimeLyc/convertctl/internal/formats"
	"github.com/MimeLyc/convertctl/pkg/log"
)

type State int

const (
	StateIdle State = iota
	StateUploading
	StatePolling
	StateCompleting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StatePolling:
		return "polling"
	case StateCompleting:
		return "completing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	DefaultPollInterval = 1000 * time.Millisecond
	DefaultSettleDelay  = 800 * time.Millisecond
	DefaultLevel        = 70
	MaxLevel            = 90

	statusUploading   = "Uploading file..."
	uploadProgress    = 5
	uploadFailedText  = "Upload failed"
	noFileSelectedMsg = "no file selected"
)

// SubmitRequest describes one submission. Either Path or File must be set;
// FileName defaults to the base name of Path.
type SubmitRequest struct {
	Path     string
	File     io.Reader
	FileName string
	Action   formats.Action
	ToFormat string
	// Level is the compression level sent as the "target" form field.
	Level int
}

func (r SubmitRequest) name() string {
	if r.FileName != "" {
		return r.FileName
	}
	return filepath.Base(r.Path)
}

// Controller drives the submit, poll, complete cycle for one file at a time.
// At most one job session is active per controller.
type Controller struct {
	backend Backend
	advisor *formats.Advisor
	view    View
	nav     Navigator
	rand    Rand

	pollInterval time.Duration
	settleDelay  time.Duration

	mu     sync.Mutex
	state  State
	active *jobSession
	last   *jobSession
}

type Option func(*Controller)

// WithRand sets the source of simulated progress increments.
func WithRand(r Rand) Option {
	return func(c *Controller) { c.rand = r }
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.settleDelay = d
		}
	}
}

func WithView(v View) Option {
	return func(c *Controller) {
		if v != nil {
			c.view = v
		}
	}
}

func WithNavigator(n Navigator) Option {
	return func(c *Controller) {
		if n != nil {
			c.nav = n
		}
	}
}

func NewController(backend Backend, advisor *formats.Advisor, opts ...Option) *Controller {
	if advisor == nil {
		advisor = formats.NewAdvisor()
	}
	c := &Controller{
		backend:      backend,
		advisor:      advisor,
		view:         nopView{},
		nav:          logNavigator{},
		pollInterval: DefaultPollInterval,
		settleDelay:  DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Advisor() *formats.Advisor {
	return c.advisor
}

// Select classifies filename and enables the trigger only when action is
// allowed for it.
func (c *Controller) Select(filename string, action formats.Action) formats.Advice {
	advice := c.advisor.AdviseFile(filename)
	c.view.SetTriggerEnabled(advice.Allows(action))
	return advice
}

// Submit uploads the file and starts polling the created job. It returns once
// the upload has been answered; use Wait for the outcome.
//
// A polling session is aborted, and waited for, before the upload starts. A
// session past terminal detection is waited for without aborting it, so its
// result is still fetched.
func (c *Controller) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	name := req.name()
	if req.File == nil && req.Path == "" {
		return "", NewError(ErrValidation, noFileSelectedMsg)
	}
	advice := c.advisor.AdviseFile(name)
	toFormat, err := advice.Check(req.Action, req.ToFormat)
	if err != nil {
		return "", NewErrorWithCause(ErrValidation, err.Error(), err).WithContext("file", name)
	}
	if req.Level < 0 || req.Level > MaxLevel {
		return "", NewError(ErrValidation, fmt.Sprintf("compression level must be between 0 and %d", MaxLevel)).
			WithContext("level", req.Level)
	}

	file := req.File
	if file == nil {
		f, err := os.Open(req.Path)
		if err != nil {
			return "", NewErrorWithCause(ErrValidation, "cannot open file", err).WithContext("file", req.Path)
		}
		defer f.Close()
		file = f
	}

	c.mu.Lock()
	if c.state == StateUploading {
		c.mu.Unlock()
		return "", NewError(ErrValidation, "an upload is already in progress")
	}
	old := c.active
	finishing := c.state == StateCompleting
	c.active = nil
	c.state = StateUploading
	c.mu.Unlock()

	if old != nil {
		if finishing {
			// The job is done; its result is still fetched.
			log.Debug("Waiting for job %s to finish before a new submission", old.jobID)
		} else {
			log.Debug("Aborting polling of job %s for a new submission", old.jobID)
			old.abort()
		}
		<-old.done
	}

	c.view.SetTriggerEnabled(false)
	c.view.SetBusy(true)
	c.view.SetStatus(statusUploading)
	c.view.SetProgress(uploadProgress, uploadProgress)

	resp, err := c.backend.Upload(ctx, api.UploadRequest{
		FileName: name,
		File:     file,
		Action:   string(req.Action),
		Target:   req.Level,
		ToFormat: toFormat,
	})
	if err != nil {
		message := uploadFailedText
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			message = apiErr.Message
		}
		log.Error("Upload of %s failed: %v", name, err)

		c.view.Alert(message)
		c.view.SetBusy(false)
		c.view.SetTriggerEnabled(true)
		c.setState(StateIdle)
		return "", NewErrorWithCause(ErrUpload, message, err).WithContext("file", name)
	}

	log.Info("Uploaded %s as job %s (request %s)", name, resp.JobID, resp.RequestID)

	s := newJobSession(ctx, c, resp.JobID)
	c.mu.Lock()
	c.active = s
	c.last = s
	c.state = StatePolling
	c.mu.Unlock()

	go s.run()
	return resp.JobID, nil
}

// Wait blocks until the most recent session resolves. The returned error is
// the outcome's error, or ctx's when ctx ends first.
func (c *Controller) Wait(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	s := c.last
	c.mu.Unlock()
	if s == nil {
		return Outcome{}, errors.New("no submission to wait for")
	}

	select {
	case <-s.done:
		return s.outcome, s.outcome.Err
	case <-ctx.Done():
		return Outcome{JobID: s.jobID, Result: ResultAborted}, ctx.Err()
	}
}

// Run submits req and waits for its outcome.
func (c *Controller) Run(ctx context.Context, req SubmitRequest) (Outcome, error) {
	if _, err := c.Submit(ctx, req); err != nil {
		return Outcome{}, err
	}
	return c.Wait(ctx)
}

// Stop aborts the active session, if any, and waits for its loop to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return
	}
	s.abort()
	<-s.done
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// transition moves to state only while s is the active session.
func (c *Controller) transition(s *jobSession, state State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != s {
		return false
	}
	c.state = state
	if state == StateIdle {
		c.active = nil
	}
	return true
}
