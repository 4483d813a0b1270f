package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
		ok   bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"", zapcore.InfoLevel, true},
		{"Warning", zapcore.WarnLevel, true},
		{"ERROR", zapcore.ErrorLevel, true},
		{"verbose", zapcore.InfoLevel, false},
	}
	for _, c := range cases {
		got, ok := ParseLevel(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestNewWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "service.log")
	zl, err := New(Options{Level: "info", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	NewZapAdapter(zl).Info("structure refreshed", "wallet", "0xabc")
	_ = zl.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"msg":"structure refreshed"`) || !strings.Contains(line, `"wallet":"0xabc"`) {
		t.Fatalf("unexpected log output: %s", line)
	}
}
