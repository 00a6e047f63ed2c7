package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"warning alias", "WARNING", slog.LevelWarn},
		{"default info", "", slog.LevelInfo},
		{"garbage falls back to info", "loud", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestNewErrorLevelDisablesInfo(t *testing.T) {
	logger := New("error")
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at error level")
	}
}

func TestNamed(t *testing.T) {
	logger := Default().Named("scheduler")
	// Must not panic and must stay usable.
	logger.Info("named logger works", "key", "value")
}
