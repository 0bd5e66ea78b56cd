package logx

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatTelegramJSON(t *testing.T) {
	t.Parallel()
	got := formatTelegramJSON([]byte(`{"level":"warn","message":"delivery failed","key":"monza-q","time":"x"}`))
	if !strings.HasPrefix(got, "[WARN] delivery failed") {
		t.Fatalf("unexpected prefix: %q", got)
	}
	if !strings.Contains(got, "key=monza-q") {
		t.Fatalf("field missing: %q", got)
	}
	if strings.Contains(got, "time=") {
		t.Fatalf("time must be stripped: %q", got)
	}

	raw := formatTelegramJSON([]byte("not json at all\n"))
	if raw != "not json at all" {
		t.Fatalf("raw fallback: %q", raw)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("short", 100); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
	long := strings.Repeat("a", 200)
	got := truncate(long, 50)
	if len(got) != 50 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q (len %d)", got, len(got))
	}
}

func TestNopLoggerSafe(t *testing.T) {
	t.Parallel()
	var zero Logger // zero value must not panic
	zero.Info("ignored", String("k", "v"))

	l := Nop().With(String("comp", "test"))
	l.Warn("also ignored", Err(nil))
}
