package jobs

import "context"

// Store persists submissions for history and restart recovery.
type Store interface {
	LoadJobs(ctx context.Context) ([]*SubmissionJob, error)
	UpsertJob(ctx context.Context, job *SubmissionJob) error
	DeleteJob(ctx context.Context, jobID string) error
}
