package session

import (
	"context"

	"github.com/MimeLyc/convertctl/internal/api"
	"github.com/MimeLyc/convertctl/pkg/log"
)

// View receives every user-visible update the controller makes.
type View interface {
	SetTriggerEnabled(enabled bool)
	SetBusy(busy bool)
	SetStatus(text string)
	// SetProgress gets the indicator width (one decimal) and the percent text value.
	SetProgress(width float64, percent int)
	// Alert surfaces an upload failure message verbatim.
	Alert(message string)
}

// Navigator performs the follow-up action for a completed job.
type Navigator interface {
	Navigate(ctx context.Context, jobID, url string) error
}

// Backend is the subset of *api.Client the controller needs.
type Backend interface {
	Upload(ctx context.Context, req api.UploadRequest) (*api.UploadResponse, error)
	JobStatus(ctx context.Context, jobID string) (*api.JobState, error)
	DownloadURL(jobID string) string
}

type nopView struct{}

func (nopView) SetTriggerEnabled(bool)   {}
func (nopView) SetBusy(bool)             {}
func (nopView) SetStatus(string)         {}
func (nopView) SetProgress(float64, int) {}
func (nopView) Alert(string)             {}

type logNavigator struct{}

func (logNavigator) Navigate(_ context.Context, jobID, url string) error {
	log.Info("Job %s finished, result available at %s", jobID, url)
	return nil
}
