package logging

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.name); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "driftd.log")
	log, closer, err := New(Config{
		Level:    "debug",
		Format:   "json",
		Output:   "file",
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if closer == nil {
		t.Fatal("file output should return a closer")
	}

	log.Info("baseline built", "subject", "s-1", "samples", 20)
	log.Debug("tick", "subject", "s-1")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("line %d is not JSON: %v", lines+1, err)
		}
		if _, ok := entry["msg"]; !ok {
			t.Errorf("line %d missing msg field: %v", lines+1, entry)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("expected 2 log lines at debug level, got %d", lines)
	}
}

func TestNewLevelFiltersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driftd.log")
	log, closer, err := New(Config{
		Level:    "error",
		Output:   "file",
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("should be filtered")
	log.Warn("also filtered")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty log at error level, got %q", data)
	}
}

func TestNewErrors(t *testing.T) {
	t.Run("file_without_path", func(t *testing.T) {
		if _, _, err := New(Config{Output: "file"}); err == nil {
			t.Error("expected error for file output without file_path")
		}
	})

	t.Run("unknown_output", func(t *testing.T) {
		if _, _, err := New(Config{Output: "syslog"}); err == nil {
			t.Error("expected error for unknown output")
		}
	})
}

func TestNewStandardOutputs(t *testing.T) {
	for _, output := range []string{"", "stderr", "stdout"} {
		log, closer, err := New(Config{Output: output})
		if err != nil {
			t.Fatalf("New(output=%q): %v", output, err)
		}
		if log == nil {
			t.Fatalf("New(output=%q): nil logger", output)
		}
		if closer != nil {
			t.Errorf("New(output=%q): unexpected closer", output)
		}
	}
}

func TestComponent(t *testing.T) {
	base, _, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if Component(base, "monitor") == nil {
		t.Error("Component returned nil")
	}
	if Component(nil, "monitor") == nil {
		t.Error("Component with nil base should fall back to default")
	}
}
