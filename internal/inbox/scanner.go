// Package inbox finds new files in watched directories and decides which of
// them can be submitted.
package inbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/convertctl/internal/formats"
	"github.com/MimeLyc/convertctl/internal/jobs"
	"github.com/MimeLyc/convertctl/pkg/file"
)

type scannerOptions struct {
	since   time.Time
	minAge  time.Duration
	exclude []string
	now     func() time.Time
}

type Option func(*scannerOptions)

// WithSince only reports files modified after t on the first scan.
func WithSince(t time.Time) Option {
	return func(o *scannerOptions) { o.since = t }
}

// WithMinAge leaves files younger than d for a later scan, so that files
// still being copied in are not uploaded half-written.
func WithMinAge(d time.Duration) Option {
	return func(o *scannerOptions) { o.minAge = d }
}

// WithExclude ignores files below dirs, typically the download directory.
func WithExclude(dirs ...string) Option {
	return func(o *scannerOptions) { o.exclude = append(o.exclude, dirs...) }
}

func withClock(now func() time.Time) Option {
	return func(o *scannerOptions) { o.now = now }
}

type Scanner struct {
	sources  []SourceConfig
	advisor  *formats.Advisor
	action   formats.Action
	toFormat string
	exclude  []string
	minAge   time.Duration
	now      func() time.Time

	mu    sync.Mutex
	since map[string]time.Time
}

func NewScanner(
	sources []SourceConfig,
	advisor *formats.Advisor,
	action formats.Action,
	toFormat string,
	opts ...Option,
) *Scanner {
	options := scannerOptions{
		since:  time.Now(),
		minAge: 2 * time.Second,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}

	exclude := make([]string, 0, len(options.exclude))
	for _, dir := range options.exclude {
		if abs, err := filepath.Abs(dir); err == nil {
			exclude = append(exclude, abs)
		}
	}

	since := make(map[string]time.Time, len(sources))
	for i := range sources {
		if sources[i].ID == "" {
			sources[i].ID = sourceID(i, sources[i].Path)
		}
		since[sources[i].ID] = options.since
	}

	return &Scanner{
		sources:  sources,
		advisor:  advisor,
		action:   action,
		toFormat: toFormat,
		exclude:  exclude,
		minAge:   options.minAge,
		now:      options.now,
		since:    since,
	}
}

func sourceID(i int, path string) string {
	name := filepath.Base(filepath.Clean(path))
	if name == "." || name == string(filepath.Separator) {
		return "inbox-" + strconv.Itoa(i+1)
	}
	return name
}

func (s *Scanner) Sources() []SourceConfig {
	return append([]SourceConfig(nil), s.sources...)
}

// Scan returns files that appeared since the previous scan, oldest first.
// A failing source does not stop the others; its error is returned joined
// with the rest.
func (s *Scanner) Scan(ctx context.Context) ([]Candidate, error) {
	var out []Candidate
	var errs []string

	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		found, err := s.scanSource(src)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", src.ID, err))
			continue
		}
		out = append(out, found...)
	}

	if len(errs) > 0 {
		return out, fmt.Errorf("scan inbox: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

func (s *Scanner) scanSource(src SourceConfig) ([]Candidate, error) {
	s.mu.Lock()
	since := s.since[src.ID]
	s.mu.Unlock()

	entries, err := file.FindRecentAfter(src.Path, since)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.minAge)
	ret := make([]Candidate, 0, len(entries))
	latest := since
	for _, entry := range entries {
		if entry.ModTime.After(cutoff) {
			break
		}
		latest = entry.ModTime
		if s.excluded(entry.Path) {
			continue
		}
		ret = append(ret, s.classify(src.ID, entry))
	}

	s.mu.Lock()
	s.since[src.ID] = latest
	s.mu.Unlock()
	return ret, nil
}

func (s *Scanner) excluded(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range s.exclude {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *Scanner) classify(sourceID string, entry file.Entry) Candidate {
	c := Candidate{
		SourceID: sourceID,
		Path:     entry.Path,
		Size:     entry.Size,
		ModTime:  entry.ModTime,
		Action:   s.action,
	}

	advice := s.advisor.AdviseFile(entry.Path)
	toFormat, err := advice.Check(s.action, s.toFormat)
	if err != nil {
		c.Reason = err.Error()
	} else {
		c.Eligible = true
		c.ToFormat = toFormat
	}
	c.DedupeKey = jobs.DedupeKey(entry.Path, entry.Size, entry.ModTime, string(s.action), c.ToFormat)
	return c
}
