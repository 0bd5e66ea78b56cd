package telegram

import (
	"strings"
	"testing"

	logx "racebot/pkg/logx"
)

func TestNewRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "   "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestNewOffline(t *testing.T) {
	t.Parallel()
	a, err := New(Config{Token: "123:abc", Offline: true}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.bot == nil {
		t.Fatal("bot not constructed")
	}
}

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("short text must pass through, got %q", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("x", 60) + "\n" + strings.Repeat("y", 60)
	got := splitTelegramText(in, 100)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(got), got)
	}
	if got[0] != strings.Repeat("x", 60) || got[1] != strings.Repeat("y", 60) {
		t.Fatalf("split not on newline: %q", got)
	}
}

func TestSplitTelegramTextHardBreak(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("z", 250)
	got := splitTelegramText(in, 100)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	for i, c := range got {
		if len(c) > 100 {
			t.Fatalf("chunk %d over limit: %d runes", i, len(c))
		}
	}
	if strings.Join(got, "") != in {
		t.Fatal("hard break must be lossless")
	}
}

func TestSplitTelegramTextNoEmptyChunks(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("a", 99) + "\n\n\n" + strings.Repeat("b", 50)
	for _, c := range splitTelegramText(in, 100) {
		if c == "" {
			t.Fatal("empty chunk produced")
		}
	}
}
