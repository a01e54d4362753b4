package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "node.log")
	logger, err := NewLogger("debug", logFile)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Debug("boot")
	_ = logger.Sync()

	info, err := os.Stat(logFile)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("log file empty after debug write")
	}
}

func TestNewLoggerLevelValidation(t *testing.T) {
	if _, err := NewLogger("chatty", ""); err == nil {
		t.Error("NewLogger accepted an unknown level")
	}
	// Empty level falls back to info.
	if _, err := NewLogger("", ""); err != nil {
		t.Errorf("NewLogger with empty level failed: %v", err)
	}
}
