package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/convertctl/internal/formats"
)

func TestJSONEmitter_WritesOneEventPerLine(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewJSONEmitter(&buf)

	require.NoError(t, emitter.Emit(NewEvent(LevelInfo, EventSubmissionStarted, "uploading a.png").WithJob("job-1")))
	require.NoError(t, emitter.Emit(NewEvent(LevelError, EventJobFailed, "error").WithDetail("status", "error")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, EventSubmissionStarted, first.Event)
	assert.Equal(t, "job-1", first.JobID)

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "job_failed", second["event"])
	assert.Equal(t, map[string]any{"status": "error"}, second["details"])
}

func TestHumanEmitter_Routing(t *testing.T) {
	var stdout, stderr bytes.Buffer
	emitter := NewHumanEmitter(&stdout, &stderr, false, false)

	require.NoError(t, emitter.Emit(NewEvent(LevelInfo, EventJobCompleted, "done")))
	require.NoError(t, emitter.Emit(NewEvent(LevelInfo, EventFileSkipped, "skipped a.docx")))
	require.NoError(t, emitter.Emit(NewEvent(LevelError, EventUploadFailed, "too large")))
	require.NoError(t, emitter.Emit(NewEvent(LevelWarn, EventWatchScan, "slow")))

	assert.Equal(t, "done\n", stdout.String())
	assert.Equal(t, "ERROR: too large\nWARN: slow\n", stderr.String())
}

func TestHumanEmitter_QuietKeepsResults(t *testing.T) {
	var stdout, stderr bytes.Buffer
	emitter := NewHumanEmitter(&stdout, &stderr, true, false)

	require.NoError(t, emitter.Emit(NewEvent(LevelInfo, EventSubmissionStarted, "uploading")))
	require.NoError(t, emitter.Emit(NewEvent(LevelInfo, EventDownloadSaved, "saved out.png")))
	require.NoError(t, emitter.Emit(NewEvent(LevelWarn, EventWatchScan, "slow")))

	assert.Equal(t, "saved out.png\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestEvent_WithDetailCopies(t *testing.T) {
	base := NewEvent(LevelInfo, EventProgress, "x").WithDetail("a", 1)
	derived := base.WithDetail("b", 2)

	assert.Len(t, base.Details, 1)
	assert.Len(t, derived.Details, 2)
}

func TestProgressView_LinePerChange(t *testing.T) {
	var out bytes.Buffer
	view := NewProgressView(&out, nil, ViewOptions{})

	view.SetBusy(true)
	view.SetStatus("queued")
	view.SetProgress(12.3, 12)
	view.SetProgress(12.3, 12)
	view.SetStatus("Compressing")
	view.SetBusy(false)
	// updates after the busy indicator is hidden are not drawn
	view.SetStatus("Initializing...")

	assert.Equal(t, "[queued] 0%\n[queued] 12%\n[Compressing] 12%\n", out.String())
}

func TestProgressView_InPlace(t *testing.T) {
	var out bytes.Buffer
	view := NewProgressView(&out, nil, ViewOptions{Interactive: true})

	view.SetBusy(true)
	view.SetStatus("Complete")
	view.SetProgress(100, 100)
	view.SetBusy(false)

	assert.Equal(t, "\r\033[K[Complete] 0%\r\033[K[Complete] 100%\n", out.String())
}

func TestProgressView_JSONAndAlert(t *testing.T) {
	var out bytes.Buffer
	view := NewProgressView(&out, NewJSONEmitter(&out), ViewOptions{JSON: true})

	view.SetBusy(true)
	view.SetProgress(5, 5)
	view.SetBusy(false)
	view.Alert("too large")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var progress, alert Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &progress))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &alert))
	assert.Equal(t, EventProgress, progress.Event)
	assert.Equal(t, 5.0, progress.Details["progress"])
	assert.Equal(t, EventUploadFailed, alert.Event)
	assert.Equal(t, LevelError, alert.Level)
	assert.Equal(t, "too large", alert.Message)
}

func TestProgressView_QuietDrawsNothing(t *testing.T) {
	var out bytes.Buffer
	view := NewProgressView(&out, nil, ViewOptions{Quiet: true})
	view.SetBusy(true)
	view.SetStatus("queued")
	view.SetProgress(50, 50)
	view.SetTriggerEnabled(true)

	assert.Empty(t, out.String())
	assert.True(t, view.TriggerEnabled())
}

func TestStyler_PlainText(t *testing.T) {
	s := NewStyler(&bytes.Buffer{}, false)
	assert.Equal(t, "not supported", s.Hint(formats.Hint{Text: "not supported", Tone: formats.ToneDanger}))
	assert.Equal(t, "JPG, PNG", s.Targets([]string{"JPG", "PNG"}))
	assert.Equal(t, "-", s.Targets(nil))
}

func TestStyler_Table(t *testing.T) {
	s := NewStyler(&bytes.Buffer{}, false)
	rendered := s.Table(table.New().
		Headers("ID", "STATUS").
		Rows([]string{"sub-1", "success"}, []string{"sub-2", "failed"}))

	lines := strings.Split(strings.TrimRight(rendered, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "sub-1")
	assert.Contains(t, lines[2], "failed")
	assert.NotContains(t, rendered, "│")
}

func TestStyler_TableHeaderStyle(t *testing.T) {
	colored := NewStyler(&bytes.Buffer{}, true)
	assert.True(t, colored.tableCell(0).GetBold(), "header row")
	assert.Equal(t, 2, colored.tableCell(0).GetPaddingRight())
	assert.False(t, colored.tableCell(1).GetBold(), "first data row")
	assert.Equal(t, 2, colored.tableCell(1).GetPaddingRight())

	plain := NewStyler(&bytes.Buffer{}, false)
	assert.False(t, plain.tableCell(0).GetBold())
}

func TestSupportsInPlaceUpdates_NonFile(t *testing.T) {
	assert.False(t, SupportsInPlaceUpdates(&bytes.Buffer{}))
}
