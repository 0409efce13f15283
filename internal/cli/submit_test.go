package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/convertctl/internal/exitcode"
	"github.com/MimeLyc/convertctl/internal/jobs"
	"github.com/MimeLyc/convertctl/internal/output"
)

func TestCompress_SavesResultAndRecordsHistory(t *testing.T) {
	backend := newFakeBackend(t,
		`{"status":"Compressing file","progress":40}`,
		`{"status":"done","progress":100}`,
	)
	isolate(t, backend.URL)
	src := writeInput(t, t.TempDir(), "photo.png", "png-bytes")
	outDir := t.TempDir()

	stdout, stderr, code := runCLI(t, "compress", src, "--level", "55", "--out", outDir)
	require.Equal(t, exitcode.Success, code, stderr)

	uploads := backend.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "photo.png", uploads[0].FileName)
	assert.Equal(t, "compress", uploads[0].Action)
	assert.Equal(t, "55", uploads[0].Target)
	assert.Empty(t, uploads[0].ToFormat)
	assert.Equal(t, "png-bytes", uploads[0].Content)

	saved, err := os.ReadFile(filepath.Join(outDir, "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, "result:job-1", string(saved))

	assert.Contains(t, stdout, "Submitted photo.png for compress as job job-1")
	assert.Contains(t, stdout, "Job job-1 completed")
	assert.Contains(t, stdout, "Saved "+filepath.Join(outDir, "photo.png"))
	assert.Contains(t, stderr, "[Uploading file...] 5%")
	assert.Contains(t, stderr, "[Compressing file] 40%")
	assert.Contains(t, stderr, "[Complete] 100%")

	stdout, _, code = runCLI(t, "--json", "history")
	require.Equal(t, exitcode.Success, code)
	history := decodeLines[jobs.SubmissionJob](t, stdout)
	require.Len(t, history, 1)
	assert.Equal(t, jobs.StatusSuccess, history[0].Status)
	assert.Equal(t, "cli", history[0].Source)
	assert.Equal(t, "job-1", history[0].RemoteJobID)
	assert.Equal(t, "done", history[0].BackendStatus)
	assert.Equal(t, filepath.Join(outDir, "photo.png"), history[0].OutputPath)
	assert.Equal(t, 55, history[0].Payload.Level)
}

func TestConvert_DefaultTargetNamesResult(t *testing.T) {
	backend := newFakeBackend(t, `{"status":"done","progress":100}`)
	isolate(t, backend.URL)
	src := writeInput(t, t.TempDir(), "IMG_0001.HEIC", "heic-bytes")
	outDir := t.TempDir()

	_, stderr, code := runCLI(t, "convert", src, "--out", outDir)
	require.Equal(t, exitcode.Success, code, stderr)

	uploads := backend.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "convert", uploads[0].Action)
	assert.Equal(t, "jpg", uploads[0].ToFormat)

	_, err := os.Stat(filepath.Join(outDir, "IMG_0001.jpg"))
	assert.NoError(t, err)
}

func TestConvert_JSONEvents(t *testing.T) {
	backend := newFakeBackend(t,
		`{"status":"Converting","progress":30}`,
		`{"status":"done","progress":100}`,
	)
	backend.disposition = "converted.webp"
	isolate(t, backend.URL)
	src := writeInput(t, t.TempDir(), "photo.png", "png-bytes")

	stdout, stderr, code := runCLI(t, "--json", "convert", src, "--to", "WEBP", "--out", t.TempDir())
	require.Equal(t, exitcode.Success, code, stderr)

	events := decodeLines[output.Event](t, stdout)
	names := make([]output.EventName, 0, len(events))
	for _, e := range events {
		names = append(names, e.Event)
	}
	assert.Contains(t, names, output.EventSubmissionStarted)
	assert.Contains(t, names, output.EventProgress)
	require.Equal(t, output.EventJobCompleted, names[len(names)-1])
	assert.Equal(t, "job-1", events[len(events)-1].JobID)

	var saved *output.Event
	for i := range events {
		if events[i].Event == output.EventDownloadSaved {
			saved = &events[i]
		}
	}
	require.NotNil(t, saved)
	assert.Contains(t, saved.Details["path"], "converted.webp")

	assert.Equal(t, "webp", backend.Uploads()[0].ToFormat)
}

func TestConvert_TerminalErrorStatus(t *testing.T) {
	backend := newFakeBackend(t,
		`{"status":"Converting","progress":10}`,
		`{"status":"error"}`,
	)
	isolate(t, backend.URL)
	src := writeInput(t, t.TempDir(), "clip.mp4", "mp4-bytes")
	outDir := t.TempDir()

	_, stderr, code := runCLI(t, "convert", src, "--to", "gif", "--out", outDir)
	assert.Equal(t, exitcode.JobFailed, code)
	assert.Contains(t, stderr, `ERROR: Job job-1 ended with status "error"`)
	assert.Equal(t, 1, strings.Count(stderr, "ERROR:"), stderr)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	stdout, _, _ := runCLI(t, "--json", "history", "--status", "failed")
	history := decodeLines[jobs.SubmissionJob](t, stdout)
	require.Len(t, history, 1)
	assert.Equal(t, "error", history[0].BackendStatus)
}

func TestCompress_UploadRejected(t *testing.T) {
	backend := newFakeBackend(t)
	backend.uploadStatus = 413
	backend.uploadBody = `{"error":"too large"}`
	isolate(t, backend.URL)
	src := writeInput(t, t.TempDir(), "movie.mkv", "mkv-bytes")

	_, stderr, code := runCLI(t, "compress", src)
	assert.Equal(t, exitcode.RuntimeFailure, code)
	assert.Contains(t, stderr, "ERROR: too large")
	assert.Equal(t, 1, strings.Count(stderr, "ERROR:"), stderr)
}

func TestCompress_BlockedByFormatRules(t *testing.T) {
	backend := newFakeBackend(t)
	isolate(t, backend.URL)
	src := writeInput(t, t.TempDir(), "report.docx", "docx-bytes")

	_, stderr, code := runCLI(t, "compress", src)
	assert.Equal(t, exitcode.InvalidUsage, code)
	assert.Contains(t, stderr, "cannot compress report.docx: Format not supported for compression")
	assert.Empty(t, backend.Uploads())
}

func TestConvert_TargetNotOffered(t *testing.T) {
	backend := newFakeBackend(t)
	isolate(t, backend.URL)
	src := writeInput(t, t.TempDir(), "photo.png", "png-bytes")

	_, stderr, code := runCLI(t, "convert", src, "--to", "mp3")
	assert.Equal(t, exitcode.InvalidUsage, code)
	assert.Contains(t, stderr, "HINT:")
	assert.Empty(t, backend.Uploads())
}

func TestCompress_InvalidLevel(t *testing.T) {
	backend := newFakeBackend(t)
	isolate(t, backend.URL)
	src := writeInput(t, t.TempDir(), "photo.png", "png-bytes")

	_, stderr, code := runCLI(t, "compress", src, "--level", "95")
	assert.Equal(t, exitcode.InvalidUsage, code)
	assert.Contains(t, stderr, "--level must be between 0 and 90")
}

func TestCompress_MissingFile(t *testing.T) {
	backend := newFakeBackend(t)
	isolate(t, backend.URL)

	_, _, code := runCLI(t, "compress", filepath.Join(t.TempDir(), "gone.png"))
	assert.Equal(t, exitcode.InvalidUsage, code)
	assert.Empty(t, backend.Uploads())
}
