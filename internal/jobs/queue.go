package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/convertctl/pkg/log"
)

const localIDPrefix = "sub-"

type Executor func(ctx context.Context, job *SubmissionJob) (Result, error)

// Queue runs submissions one at a time. A single worker keeps at most one
// upload and poll loop active against the backend.
type Queue struct {
	maxJobs  int
	resume   bool
	store    Store
	observer func(*SubmissionJob)

	mu         sync.RWMutex
	jobs       map[string]*SubmissionJob
	dedupe     map[string]string
	idCounter  uint64
	started    bool
	changed    chan struct{}
	pendingIDs chan string
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

type Option func(*Queue)

// WithMaxJobs bounds how many jobs are kept; the oldest terminal jobs are
// pruned first.
func WithMaxJobs(n int) Option {
	return func(q *Queue) { q.maxJobs = n }
}

// WithoutResume ignores stored jobs except for local id allocation. New jobs
// are still persisted.
func WithoutResume() Option {
	return func(q *Queue) { q.resume = false }
}

// WithObserver is called with a snapshot after every status change.
func WithObserver(fn func(*SubmissionJob)) Option {
	return func(q *Queue) { q.observer = fn }
}

func NewQueue(store Store, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		maxJobs:    1000,
		resume:     true,
		store:      store,
		jobs:       make(map[string]*SubmissionJob),
		dedupe:     make(map[string]string),
		changed:    make(chan struct{}),
		pendingIDs: make(chan string, 1024),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.hydrateFromStore(context.Background())
	return q
}

// Enqueue adds a job unless a pending or running job with the same dedupe
// key exists, in which case that job is returned with created=false.
func (q *Queue) Enqueue(req EnqueueRequest) (*SubmissionJob, bool) {
	now := time.Now()

	q.mu.Lock()
	if id, ok := q.dedupe[req.DedupeKey]; ok {
		if existing, exists := q.jobs[id]; exists {
			snapshot := cloneJob(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, req.DedupeKey)
	}

	id := fmt.Sprintf("%s%d", localIDPrefix, atomic.AddUint64(&q.idCounter, 1))
	job := &SubmissionJob{
		ID:        id,
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.jobs[id] = job
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = id
	}
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	if started {
		q.enqueuePendingID(id)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*SubmissionJob, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns all known jobs, oldest first.
func (q *Queue) List() []*SubmissionJob {
	q.mu.RLock()
	ret := make([]*SubmissionJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	q.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

// Wait blocks until job id reaches a terminal status.
func (q *Queue) Wait(ctx context.Context, id string) (*SubmissionJob, error) {
	for {
		q.mu.RLock()
		job, ok := q.jobs[id]
		var snapshot *SubmissionJob
		if ok {
			snapshot = cloneJob(job)
		}
		changed := q.changed
		q.mu.RUnlock()

		if !ok {
			return nil, fmt.Errorf("unknown job %s", id)
		}
		if snapshot.Status.Terminal() {
			return snapshot, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snapshot, ctx.Err()
		}
	}
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]*SubmissionJob, 0)
	for _, job := range q.jobs {
		if job.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	ids := make([]string, 0, len(pending))
	for _, job := range pending {
		ids = append(ids, job.ID)
	}
	q.mu.Unlock()

	for _, id := range ids {
		q.enqueuePendingID(id)
	}

	q.wg.Add(1)
	go q.worker(exec)
}

// Stop cancels the running job, if any, and waits for the worker to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case id := <-q.pendingIDs:
			job, ok := q.markRunning(id)
			if !ok {
				continue
			}

			res, err := exec(q.ctx, job)
			switch {
			case err == nil:
				q.finish(id, StatusSuccess, res, nil)
			case errors.Is(err, ErrSkipped):
				q.finish(id, StatusSkipped, res, err)
			case q.ctx.Err() != nil:
				// interrupted by Stop; picked up again on the next start
				q.requeue(id)
				return
			default:
				q.finish(id, StatusFailed, res, err)
			}
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() {
			select {
			case q.pendingIDs <- id:
			case <-q.ctx.Done():
			}
		}()
	}
}

func (q *Queue) markRunning(id string) (*SubmissionJob, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusPending {
		q.mu.Unlock()
		return nil, false
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.notifyLocked()
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.observe(snapshot)
	return snapshot, true
}

func (q *Queue) requeue(id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = StatusPending
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.notifyLocked()
	q.mu.Unlock()

	q.persistJob(snapshot)
}

func (q *Queue) finish(id string, status Status, res Result, err error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = status
	job.Error = ""
	if err != nil {
		job.Error = err.Error()
	}
	if res.RemoteJobID != "" {
		job.RemoteJobID = res.RemoteJobID
	}
	if res.BackendStatus != "" {
		job.BackendStatus = res.BackendStatus
	}
	if res.OutputPath != "" {
		job.OutputPath = res.OutputPath
	}
	job.UpdatedAt = time.Now()
	q.releaseDedupeLocked(job)
	pruned := q.pruneTerminalJobsLocked()
	snapshot := cloneJob(job)
	q.notifyLocked()
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
	q.observe(snapshot)
}

func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *Queue) observe(job *SubmissionJob) {
	if q.observer != nil {
		q.observer(job)
	}
}

func (q *Queue) releaseDedupeLocked(job *SubmissionJob) {
	if job == nil || job.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[job.DedupeKey]; ok && id == job.ID {
		delete(q.dedupe, job.DedupeKey)
	}
}

func (q *Queue) pruneTerminalJobsLocked() []string {
	if q.maxJobs <= 0 || len(q.jobs) <= q.maxJobs {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(q.jobs))
	for id, job := range q.jobs {
		if job == nil || !job.Status.Terminal() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: job.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(q.jobs) - q.maxJobs
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		id := terminal[i].id
		if job := q.jobs[id]; job != nil {
			q.releaseDedupeLocked(job)
		}
		delete(q.jobs, id)
		pruned = append(pruned, id)
	}
	return pruned
}

func (q *Queue) deleteJobsFromStore(ids []string) {
	if q.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*SubmissionJob, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		q.updateIDCounterLocked(raw.ID)
		if !q.resume {
			continue
		}
		job := cloneJob(raw)
		if job.Status == StatusRunning {
			job.Status = StatusPending
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		q.jobs[job.ID] = job
		if job.Status == StatusPending && job.DedupeKey != "" {
			q.dedupe[job.DedupeKey] = job.ID
		}
	}
	q.mu.Unlock()

	for _, job := range toPersist {
		q.persistJob(job)
	}
}

func (q *Queue) updateIDCounterLocked(jobID string) {
	if !strings.HasPrefix(jobID, localIDPrefix) {
		return
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(jobID, localIDPrefix), 10, 64)
	if err != nil {
		return
	}
	if n > q.idCounter {
		q.idCounter = n
	}
}

func (q *Queue) persistJob(job *SubmissionJob) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func cloneJob(job *SubmissionJob) *SubmissionJob {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
