package api

import (
	"fmt"
	"io"
	"strings"
)

// UploadRequest is one submission of the upload form.
type UploadRequest struct {
	FileName string
	File     io.Reader
	Action   string
	// Target is the compression level (0-90); the backend ignores it for conversions.
	Target   int
	ToFormat string
}

type UploadResponse struct {
	JobID    string   `json:"job_id"`
	Status   string   `json:"status,omitempty"`
	Progress *float64 `json:"progress,omitempty"`

	RequestID string `json:"-"`
}

// JobState is the backend's view of a job as returned by GET /job/{id}.
type JobState struct {
	Status   string   `json:"status"`
	Progress *float64 `json:"progress,omitempty"`
}

// ProgressValue returns the reported progress, or 0 when absent.
func (s JobState) ProgressValue() float64 {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}

// DownloadResult streams a finished job's output. The caller closes Body.
type DownloadResult struct {
	Body          io.ReadCloser
	FileName      string
	ContentType   string
	ContentLength int64
}

// Error is a non-success HTTP response from the backend.
type Error struct {
	StatusCode int
	// Message is the backend's "error" field, empty when the body had none.
	Message string
	Body    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, body)
}

type errorBody struct {
	Error string `json:"error"`
}

type healthBody struct {
	Status string `json:"status"`
}
