package jobs

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

// ErrSkipped marks a job the executor declined to submit, e.g. a file the
// format rules block for the requested action.
var ErrSkipped = errors.New("submission skipped")

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   Payload
}

// Payload is what gets submitted to the backend.
type Payload struct {
	FilePath string `json:"file_path"`
	Action   string `json:"action"`
	ToFormat string `json:"to_format,omitempty"`
	Level    int    `json:"level"`
}

type SubmissionJob struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	DedupeKey string  `json:"dedupe_key"`
	Payload   Payload `json:"payload"`
	Status    Status  `json:"status"`

	// RemoteJobID is the backend's job_id once the upload succeeded.
	RemoteJobID   string    `json:"remote_job_id,omitempty"`
	BackendStatus string    `json:"backend_status,omitempty"`
	OutputPath    string    `json:"output_path,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Result is what an executor learned about a submission, recorded whether
// or not it succeeded.
type Result struct {
	RemoteJobID   string
	BackendStatus string
	OutputPath    string
}

// DedupeKey identifies one version of a file submitted with one set of
// options.
func DedupeKey(path string, size int64, modTime time.Time, action, target string) string {
	return fmt.Sprintf("%s|%d|%d|%s|%s", path, size, modTime.Unix(), action, target)
}
