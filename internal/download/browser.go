package download

import (
	"context"
	"fmt"

	"github.com/pkg/browser"

	"github.com/MimeLyc/convertctl/pkg/log"
)

// Browser hands the download URL to the system browser instead of fetching
// the result itself.
type Browser struct {
	open func(url string) error
}

func NewBrowser() *Browser {
	return &Browser{open: browser.OpenURL}
}

func (b *Browser) Navigate(_ context.Context, jobID, url string) error {
	log.Info("Opening result of job %s in the browser", jobID)
	if err := b.open(url); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}
