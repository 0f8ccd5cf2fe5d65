package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := New(tt.in, "").GetLevel(); got != tt.want {
			t.Errorf("New(%q) level = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	log := New("info", path)
	log.Info().Str("command", "ping").Msg("dispatched")
	log.Debug().Msg("filtered out")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"command":"ping"`) || !strings.Contains(out, "dispatched") {
		t.Errorf("missing entry in %q", out)
	}
	if strings.Contains(out, "filtered out") {
		t.Error("debug entry written at info level")
	}
}
