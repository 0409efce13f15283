// Package download fetches the results of finished jobs.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/MimeLyc/convertctl/internal/api"
	"github.com/MimeLyc/convertctl/pkg/file"
	"github.com/MimeLyc/convertctl/pkg/log"
)

// Downloader is the subset of *api.Client a Saver needs.
type Downloader interface {
	Download(ctx context.Context, jobID string) (*api.DownloadResult, error)
}

// Saved describes one stored result.
type Saved struct {
	JobID string
	Path  string
	Bytes int64
}

// Saver stores finished job results in a directory. It implements
// session.Navigator.
type Saver struct {
	client Downloader
	dir    string

	mu       sync.Mutex
	source   string
	toFormat string
	saved    map[string]Saved
	onSaved  func(Saved)
}

func NewSaver(client Downloader, dir string) *Saver {
	if dir == "" {
		dir = "."
	}
	return &Saver{
		client: client,
		dir:    dir,
		saved:  make(map[string]Saved),
	}
}

// OnSaved registers a callback invoked after every stored result.
func (s *Saver) OnSaved(fn func(Saved)) {
	s.mu.Lock()
	s.onSaved = fn
	s.mu.Unlock()
}

// Expect records the source file name and target format of the next job, used
// to name the result when the server does not suggest a file name.
func (s *Saver) Expect(source, toFormat string) {
	s.mu.Lock()
	s.source = source
	s.toFormat = toFormat
	s.mu.Unlock()
}

// Navigate downloads the result of jobID. url is only logged; the download
// itself goes through the client.
func (s *Saver) Navigate(ctx context.Context, jobID, url string) error {
	log.Debug("Fetching %s", url)
	saved, err := s.Save(ctx, jobID)
	if err != nil {
		return err
	}
	log.Info("Saved job %s to %s (%s)", jobID, saved.Path, humanize.Bytes(uint64(saved.Bytes)))
	return nil
}

// Save downloads the result of jobID into the target directory without
// overwriting existing files.
func (s *Saver) Save(ctx context.Context, jobID string) (Saved, error) {
	res, err := s.client.Download(ctx, jobID)
	if err != nil {
		return Saved{}, fmt.Errorf("download job %s: %w", jobID, err)
	}
	defer res.Body.Close()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Saved{}, fmt.Errorf("create download directory: %w", err)
	}

	s.mu.Lock()
	name := s.fileName(jobID, res.FileName)
	target := file.UniquePath(filepath.Join(s.dir, name))
	s.mu.Unlock()

	n, err := writeAtomic(target, res.Body)
	if err != nil {
		return Saved{}, fmt.Errorf("save job %s: %w", jobID, err)
	}

	saved := Saved{JobID: jobID, Path: target, Bytes: n}
	s.mu.Lock()
	s.saved[jobID] = saved
	onSaved := s.onSaved
	s.mu.Unlock()

	if onSaved != nil {
		onSaved(saved)
	}
	return saved, nil
}

// Lookup returns the stored result of jobID, if any.
func (s *Saver) Lookup(jobID string) (Saved, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, ok := s.saved[jobID]
	return saved, ok
}

func (s *Saver) fileName(jobID, suggested string) string {
	if suggested != "" {
		return suggested
	}
	if s.source != "" {
		base := filepath.Base(s.source)
		if s.toFormat != "" {
			return filepath.Base(file.ReplaceExt(base, s.toFormat))
		}
		return base
	}
	return jobID
}

func writeAtomic(target string, body io.Reader) (int64, error) {
	tmp := target + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, err
	}

	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr != nil {
			return 0, copyErr
		}
		return 0, closeErr
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return n, nil
}
