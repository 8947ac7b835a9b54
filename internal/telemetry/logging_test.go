package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithOrderID(slog.New(slog.NewTextHandler(&buf, nil)), 42)

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info("order touched")

	if !strings.Contains(buf.String(), "order_id=42") {
		t.Errorf("log = %q, want order_id attribute", buf.String())
	}

	if FromContext(context.Background()) != slog.Default() {
		t.Error("empty context must fall back to the default logger")
	}
}
