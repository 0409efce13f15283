package file

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is a regular file found by a directory walk.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// FindRecentAfter walks dir and returns regular files modified after startTime,
// oldest first. Hidden files and partial downloads are ignored.
func FindRecentAfter(dir string, startTime time.Time) ([]Entry, error) {
	var recent []Entry

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || isTransient(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(startTime) {
			recent = append(recent, Entry{
				Path:    path,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
		return nil
	})

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].ModTime.Before(recent[j].ModTime)
	})
	return recent, err
}

func isTransient(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".crdownload")
}
