package envconfig

import (
	"log/slog"
	"testing"

	"github.com/bpetok/internal/logutil"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"BPETOK_DEBUG", "BPETOK_VOCAB_SIZE", "BPETOK_MODEL", "BPETOK_OOV"} {
		t.Setenv(k, "")
	}
	LoadConfig()

	if LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", LogLevel)
	}
	if VocabSize != 1000 {
		t.Fatalf("VocabSize = %d", VocabSize)
	}
	if Model != "bpe_model.txt" {
		t.Fatalf("Model = %q", Model)
	}
	if OOV != "extend" {
		t.Fatalf("OOV = %q", OOV)
	}
}

func TestDebugLevels(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"0":     slog.LevelInfo,
		"false": slog.LevelInfo,
		"1":     slog.LevelDebug,
		"true":  slog.LevelDebug,
		"2":     logutil.LevelTrace,
		"yes":   slog.LevelDebug,
	}

	for in, want := range cases {
		t.Setenv("BPETOK_DEBUG", in)
		LoadConfig()
		if LogLevel != want {
			t.Fatalf("BPETOK_DEBUG=%q: got %v want %v", in, LogLevel, want)
		}
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("BPETOK_VOCAB_SIZE", "-4")
	t.Setenv("BPETOK_OOV", "maybe")
	t.Setenv("BPETOK_MODEL", "'/tmp/m.txt'")
	LoadConfig()

	if VocabSize != 1000 {
		t.Fatalf("VocabSize = %d, want default", VocabSize)
	}
	if OOV != "extend" {
		t.Fatalf("OOV = %q, want default", OOV)
	}
	if Model != "/tmp/m.txt" {
		t.Fatalf("Model = %q, quotes not stripped", Model)
	}

	t.Setenv("BPETOK_VOCAB_SIZE", "5000")
	t.Setenv("BPETOK_OOV", "Reject")
	LoadConfig()
	if VocabSize != 5000 || OOV != "reject" {
		t.Fatalf("got VocabSize=%d OOV=%q", VocabSize, OOV)
	}
}
