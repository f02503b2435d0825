package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{" Error ", LevelError},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSimpleLogger_FormatAndFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSimpleLoggerWithWriter("session", LevelInfo, false, &buf)

	logger.Debug("hidden")
	logger.Info("token verified", "user", "alice", "left", 120)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level: %q", out)
	}
	if !strings.Contains(out, "[session] INFO: token verified user=alice left=120") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestSimpleLogger_DanglingKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSimpleLoggerWithWriter("x", LevelDebug, false, &buf)

	logger.Warn("odd args", "key")

	if !strings.Contains(buf.String(), "key=<missing>") {
		t.Errorf("expected dangling key marker, got %q", buf.String())
	}
}

func TestSimpleLogger_WithModuleNests(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSimpleLoggerWithWriter("main", LevelDebug, false, &buf)

	logger.WithModule("session").WithModule("countdown").Error("boom")

	if !strings.Contains(buf.String(), "[main/session/countdown] ERROR: boom") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestSimpleLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSimpleLoggerWithWriter("main", LevelInfo, false, &buf)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.Fatal("cannot continue")

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestSimpleLogger_Colors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSimpleLoggerWithWriter("main", LevelInfo, true, &buf)

	logger.Error("red")

	if !strings.Contains(buf.String(), colorRed+"ERROR"+colorReset) {
		t.Errorf("expected colored level, got %q", buf.String())
	}
}

func TestTestLogger_WithModule(t *testing.T) {
	logger := NewTestLogger().WithModule("session")

	tl, ok := logger.(*TestLogger)
	if !ok {
		t.Fatalf("WithModule returned %T", logger)
	}
	if tl.module != "test/session" {
		t.Errorf("module = %q, want test/session", tl.module)
	}
	// silent logger must not panic without a *testing.T
	logger.Info("quiet", "k", "v")
}
