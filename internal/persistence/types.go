package persistence

import "github.com/MimeLyc/convertctl/internal/jobs"

// HistoryFilter narrows ListRecent. Zero values match everything; Limit
// defaults to 20.
type HistoryFilter struct {
	Limit  int
	Status jobs.Status
	Action string
}

const defaultHistoryLimit = 20
