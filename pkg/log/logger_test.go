package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_FiltersBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLoggerTo(buf, LevelWarn)

	l.Info("hidden %d", 1)
	l.Warn("poll failed: %s", "timeout")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "poll failed: timeout") {
		t.Fatalf("missing warn line, got %q", out)
	}
	if !strings.Contains(out, "logger_test.go:") {
		t.Fatalf("expected caller file in %q", out)
	}
}

func TestGlobalLogger_UsesInstalledLogger(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	buf := &bytes.Buffer{}
	SetLogger(NewLoggerTo(buf, LevelDebug))
	Debug("tick %d", 3)

	if !strings.Contains(buf.String(), "[DEBUG]") || !strings.Contains(buf.String(), "tick 3") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestFileLogger_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "convertctl.log")

	l, err := NewFileLogger(path, LevelInfo)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	l.Info("scan %s", "done")
	l.Debug("hidden")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l, err = NewFileLogger(path, LevelInfo)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	l.Error("second run")
	_ = l.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(content)
	if !strings.Contains(out, "scan done") || !strings.Contains(out, "second run") {
		t.Fatalf("expected both runs in %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered, got %q", out)
	}
}
