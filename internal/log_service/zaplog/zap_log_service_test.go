package zaplog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/AnishMulay/fscheck/internal/log_service"
)

func TestZapLogService_ForwardsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	zs := NewZapLogService("fcheck", zap.New(core))

	zs.Debug(log_service.LogEvent{Message: "dropped"})
	zs.Info(log_service.LogEvent{Message: "image checked", Metadata: map[string]any{"runID": "abc"}})
	zs.Warn(log_service.LogEvent{Message: "violation", Metadata: map[string]any{"check": 5}})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	if entries[0].Message != "image checked" {
		t.Errorf("entries[0].Message = %q, want %q", entries[0].Message, "image checked")
	}
	ctx := entries[0].ContextMap()
	if ctx["node"] != "fcheck" {
		t.Errorf("node field = %v, want fcheck", ctx["node"])
	}
	if ctx["runID"] != "abc" {
		t.Errorf("runID field = %v, want abc", ctx["runID"])
	}

	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("entries[1].Level = %v, want warn", entries[1].Level)
	}
}

func TestZapLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"WARN", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := zapLevel(tt.in); got != tt.want {
			t.Errorf("zapLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogService(t *testing.T) {
	zs := NewNopLogService()
	zs.Error(log_service.LogEvent{Message: "ignored"})
}
