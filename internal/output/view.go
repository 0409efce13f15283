package output

import (
	"fmt"
	"io"
	"sync"
)

type ViewOptions struct {
	// JSON sends progress as events instead of drawing a line.
	JSON bool
	// Quiet suppresses progress lines; alerts still surface.
	Quiet bool
	// Interactive redraws a single line in place.
	Interactive bool
}

// ProgressView renders controller updates on a terminal, or as progress
// events in JSON mode.
type ProgressView struct {
	out     io.Writer
	emitter EventEmitter
	opts    ViewOptions

	mu         sync.Mutex
	status     string
	width      float64
	percent    int
	busy       bool
	enabled    bool
	lastLine   string
	lineActive bool
}

func NewProgressView(out io.Writer, emitter EventEmitter, opts ViewOptions) *ProgressView {
	return &ProgressView{out: out, emitter: emitter, opts: opts}
}

func (v *ProgressView) SetTriggerEnabled(enabled bool) {
	v.mu.Lock()
	v.enabled = enabled
	v.mu.Unlock()
}

// TriggerEnabled reports whether the last Select allowed submission.
func (v *ProgressView) TriggerEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled
}

func (v *ProgressView) SetBusy(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = busy
	if !busy {
		v.endLine()
	}
}

func (v *ProgressView) SetStatus(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = text
	v.render()
}

func (v *ProgressView) SetProgress(width float64, percent int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.width = width
	v.percent = percent
	v.render()
}

func (v *ProgressView) Alert(message string) {
	v.mu.Lock()
	v.endLine()
	v.mu.Unlock()
	if v.emitter != nil {
		_ = v.emitter.Emit(NewEvent(LevelError, EventUploadFailed, message))
	}
}

func (v *ProgressView) render() {
	if v.opts.Quiet || !v.busy {
		return
	}
	line := fmt.Sprintf("[%s] %d%%", v.status, v.percent)
	if line == v.lastLine {
		return
	}
	v.lastLine = line

	if v.opts.JSON {
		if v.emitter != nil {
			_ = v.emitter.Emit(NewEvent(LevelInfo, EventProgress, v.status).
				WithDetail("progress", v.width).
				WithDetail("percent", v.percent))
		}
		return
	}
	if v.opts.Interactive {
		fmt.Fprintf(v.out, "\r\033[K%s", line)
		v.lineActive = true
		return
	}
	fmt.Fprintln(v.out, line)
}

func (v *ProgressView) endLine() {
	if v.lineActive {
		fmt.Fprintln(v.out)
		v.lineActive = false
	}
	v.lastLine = ""
}
