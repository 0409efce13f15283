package service

import (
	"context"

	"github.com/MimeLyc/convertctl/internal/inbox"
	"github.com/MimeLyc/convertctl/internal/jobs"
)

type Scanner interface {
	Scan(ctx context.Context) ([]inbox.Candidate, error)
}

type Enqueuer interface {
	Enqueue(req jobs.EnqueueRequest) (*jobs.SubmissionJob, bool)
}

// ScanReport summarizes one watch run.
type ScanReport struct {
	Found      int `json:"found"`
	Enqueued   int `json:"enqueued"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// CandidateFunc observes every file a run looked at. job is nil for skipped
// files; created is false when an identical submission was already queued.
type CandidateFunc func(c inbox.Candidate, job *jobs.SubmissionJob, created bool)

// ReportFunc receives the summary of a scheduled scan and its error, if any.
type ReportFunc func(report ScanReport, err error)
