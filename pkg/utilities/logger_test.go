package utilities

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	if got := levelFromString("warning"); got != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %v", got)
	}
	if got := levelFromString("nonsense"); got != zapcore.InfoLevel {
		t.Fatalf("expected info fallback, got %v", got)
	}
}

func TestInitWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	lg, err := Init(Config{Level: "info", File: path, MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	lg.Info("hello")
	_ = lg.Sync()

	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("expected a rotated log file next to %s", path)
	}
}
