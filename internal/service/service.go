package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/convertctl/internal/inbox"
	"github.com/MimeLyc/convertctl/internal/jobs"
	"github.com/MimeLyc/convertctl/pkg/icron"
	"github.com/MimeLyc/convertctl/pkg/log"
)

const watchSource = "watch"

// WatchService periodically scans the inbox and queues eligible files.
type WatchService struct {
	scanner Scanner
	queue   Enqueuer
	cron    *cron.Cron
	level   int

	mu       sync.Mutex
	cronExpr string
	entryID  cron.EntryID
	ctx      context.Context
	observe  CandidateFunc
	report   ReportFunc

	group singleflight.Group
}

type Option func(*WatchService)

func WithObserver(fn CandidateFunc) Option {
	return func(s *WatchService) { s.observe = fn }
}

// WithReporter is called after every scheduled scan.
func WithReporter(fn ReportFunc) Option {
	return func(s *WatchService) { s.report = fn }
}

func NewWatchService(
	scanner Scanner,
	queue Enqueuer,
	cronEngine *cron.Cron,
	cronExpr string,
	level int,
	opts ...Option,
) *WatchService {
	s := &WatchService{
		scanner:  scanner,
		queue:    queue,
		cron:     cronEngine,
		cronExpr: cronExpr,
		level:    level,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers the scan with the cron engine. Runs use ctx until it is
// cancelled.
func (s *WatchService) Schedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Info("Scheduling inbox scan with %q", s.cronExpr)
	s.ctx = ctx
	id, err := s.cron.AddFunc(s.cronExpr, s.scheduledRun)
	if err != nil {
		return fmt.Errorf("schedule inbox scan: %w", err)
	}
	s.entryID = id
	return nil
}

// Reschedule replaces the cron expression of a scheduled service.
func (s *WatchService) Reschedule(cronExpr string) error {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		id, err := s.cron.AddFunc(cronExpr, s.scheduledRun)
		if err != nil {
			return fmt.Errorf("schedule inbox scan: %w", err)
		}
		s.entryID = id
	}
	s.cronExpr = cronExpr
	return nil
}

func (s *WatchService) CronExpr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cronExpr
}

// NextRun reports when the next scheduled scan fires.
func (s *WatchService) NextRun(now time.Time) (time.Time, error) {
	info, err := icron.GetTriggerInfo(s.CronExpr(), now)
	if err != nil {
		return time.Time{}, err
	}
	return info.Next, nil
}

func (s *WatchService) scheduledRun() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	report, err := s.RunOnce(ctx)
	if err != nil {
		log.Error("Inbox scan failed: %v", err)
	}
	log.Info("Inbox scan: %d found, %d queued, %d duplicate, %d skipped",
		report.Found, report.Enqueued, report.Duplicates, report.Skipped)
	if s.report != nil {
		s.report(report, err)
	}
}

// RunOnce scans the inbox now. Concurrent calls share a single scan.
func (s *WatchService) RunOnce(ctx context.Context) (ScanReport, error) {
	v, err, shared := s.group.Do("scan", func() (any, error) {
		return s.run(ctx)
	})
	if shared {
		log.Debug("Joined an inbox scan already in progress")
	}
	report, _ := v.(ScanReport)
	return report, err
}

func (s *WatchService) run(ctx context.Context) (ScanReport, error) {
	var report ScanReport

	candidates, err := s.scanner.Scan(ctx)
	report.Found = len(candidates)

	for _, c := range candidates {
		if !c.Eligible {
			report.Skipped++
			log.Debug("Skipping %s: %s", c.Path, c.Reason)
			s.notify(c, nil, false)
			continue
		}

		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    watchSource,
			DedupeKey: c.DedupeKey,
			Payload: jobs.Payload{
				FilePath: c.Path,
				Action:   string(c.Action),
				ToFormat: c.ToFormat,
				Level:    s.level,
			},
		})
		if created {
			report.Enqueued++
		} else {
			report.Duplicates++
		}
		s.notify(c, job, created)
	}
	return report, err
}

func (s *WatchService) notify(c inbox.Candidate, job *jobs.SubmissionJob, created bool) {
	if s.observe != nil {
		s.observe(c, job, created)
	}
}

// InitialSince picks the look-back point of the first scan: the previous cron
// trigger, but never further back than maxLookback.
func InitialSince(cronExpr string, now time.Time, maxLookback time.Duration) (time.Time, error) {
	info, err := icron.GetTriggerInfo(cronExpr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cron schedule: %w", err)
	}
	floor := now.Add(-maxLookback)
	if info.Last.IsZero() || info.Last.Before(floor) {
		return floor, nil
	}
	return info.Last, nil
}
