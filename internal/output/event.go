package output

import "time"

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventSubmissionStarted EventName = "submission_started"
	EventProgress          EventName = "progress"
	EventUploadFailed      EventName = "upload_failed"
	EventJobCompleted      EventName = "job_completed"
	EventJobFailed         EventName = "job_failed"
	EventDownloadSaved     EventName = "download_saved"
	EventFileSkipped       EventName = "file_skipped"
	EventWatchScan         EventName = "watch_scan"
)

type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	JobID     string         `json:"job_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(level Level, name EventName, message string) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Event:     name,
		Message:   message,
	}
}

func (e Event) WithJob(jobID string) Event {
	e.JobID = jobID
	return e
}

func (e Event) WithDetail(key string, value any) Event {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}
