package inbox

import (
	"time"

	"github.com/MimeLyc/convertctl/internal/formats"
)

type SourceConfig struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Candidate is one new file found in a watched directory.
type Candidate struct {
	SourceID string         `json:"source_id"`
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	ModTime  time.Time      `json:"mod_time"`
	Action   formats.Action `json:"action"`
	ToFormat string         `json:"to_format,omitempty"`
	Eligible bool           `json:"eligible"`

	// Reason explains why an ineligible file is skipped.
	Reason    string `json:"reason,omitempty"`
	DedupeKey string `json:"dedupe_key"`
}
