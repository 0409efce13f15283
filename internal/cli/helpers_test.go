package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type uploadCall struct {
	FileName string
	Action   string
	Target   string
	ToFormat string
	Content  string
}

// fakeBackend serves the conversion API. Every job walks through script,
// repeating the last entry once it is exhausted.
type fakeBackend struct {
	*httptest.Server

	mu           sync.Mutex
	script       []string
	uploads      []uploadCall
	polls        map[string]int
	uploadStatus int
	uploadBody   string
	disposition  string
	health       string
}

func newFakeBackend(t *testing.T, script ...string) *fakeBackend {
	t.Helper()
	b := &fakeBackend{script: script, polls: make(map[string]int), health: "ok"}

	mux := http.NewServeMux()
	mux.HandleFunc("/upload", b.handleUpload)
	mux.HandleFunc("/job/", b.handleJob)
	mux.HandleFunc("/download/", b.handleDownload)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		status := b.health
		b.mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *fakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	call := uploadCall{
		Action:   r.FormValue("action"),
		Target:   r.FormValue("target"),
		ToFormat: r.FormValue("to_format"),
	}
	if f, header, err := r.FormFile("file"); err == nil {
		content, _ := io.ReadAll(f)
		_ = f.Close()
		call.FileName = header.Filename
		call.Content = string(content)
	}

	b.mu.Lock()
	b.uploads = append(b.uploads, call)
	id := fmt.Sprintf("job-%d", len(b.uploads))
	status, body := b.uploadStatus, b.uploadBody
	b.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_, _ = fmt.Fprintf(w, `{"job_id":%q,"status":"queued","progress":0}`, id)
}

func (b *fakeBackend) handleJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/job/")

	b.mu.Lock()
	n := b.polls[id]
	b.polls[id] = n + 1
	var body string
	if len(b.script) > 0 {
		body = b.script[min(n, len(b.script)-1)]
	}
	b.mu.Unlock()

	if body == "" {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Job not found"}`))
		return
	}
	_, _ = w.Write([]byte(body))
}

func (b *fakeBackend) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/download/")

	b.mu.Lock()
	name := b.disposition
	b.mu.Unlock()

	if name != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, name))
	}
	_, _ = w.Write([]byte("result:" + id))
}

func (b *fakeBackend) Uploads() []uploadCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uploadCall(nil), b.uploads...)
}

// isolate points every path and the server URL at test-owned locations.
func isolate(t *testing.T, serverURL string) string {
	t.Helper()
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(state, "config"))
	t.Setenv("CONVERTCTL_CONFIG", "")
	t.Setenv("CONVERTCTL_SERVER_URL", serverURL)
	t.Setenv("CONVERTCTL_POLL_INTERVAL_MS", "10")
	t.Setenv("CONVERTCTL_SETTLE_DELAY_MS", "0")
	t.Setenv("CONVERTCTL_HISTORY_DB", filepath.Join(state, "history.db"))
	t.Setenv("CONVERTCTL_DOWNLOAD_DIR", filepath.Join(state, "downloads"))
	return state
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeOldInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := writeInput(t, dir, name, content)
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

// syncBuffer is written by the progress view, the logger and the emitters
// from different goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	out := &syncBuffer{}
	errOut := &syncBuffer{}
	app := &AppContext{
		Build: BuildInfo{Version: "test", Commit: "abc123"},
		IO:    IOStreams{In: strings.NewReader(""), Out: out, ErrOut: errOut},
	}
	code = execute(app, args)
	return out.String(), errOut.String(), code
}

// decodeLines parses newline-delimited JSON output.
func decodeLines[T any](t *testing.T, output string) []T {
	t.Helper()
	var ret []T
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		var v T
		require.NoError(t, json.Unmarshal([]byte(line), &v), line)
		ret = append(ret, v)
	}
	return ret
}
