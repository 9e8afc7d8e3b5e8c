package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	golog "github.com/ipfs/go-log/v2"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    golog.LogFormat
		wantErr bool
	}{
		{"", golog.ColorizedOutput, false},
		{"color", golog.ColorizedOutput, false},
		{"NOCOLOR", golog.PlaintextOutput, false},
		{"plain", golog.PlaintextOutput, false},
		{"json", golog.JSONOutput, false},
		{"xml", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFormat(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseFormat(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFormat(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseFormat(%q) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupRejectsBadLevel(t *testing.T) {
	if err := Setup("loud", "color"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := SetLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSetupAndSetLevel(t *testing.T) {
	if err := Setup("debug", "nocolor"); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := SetLevel("info"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if Logger("test") == nil {
		t.Error("expected non-nil logger")
	}
}

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tui.log")
	if err := SetupFile("info", path); err != nil {
		t.Fatalf("SetupFile: %v", err)
	}
	defer Setup("info", "nocolor")

	Logger("test").Infow("hello", "k", "v")
	_ = golog.Logger(Prefix + "test").Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing entry: %q", data)
	}
}
