// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLevelsAndFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      Options
		wantLevel log.Level
		wantErr   bool
	}{
		{"defaults", Options{}, log.InfoLevel, false},
		{"debug upper case", Options{Level: "DEBUG"}, log.DebugLevel, false},
		{"json", Options{Level: "warn", Format: "json"}, log.WarnLevel, false},
		{"logfmt", Options{Format: "logfmt"}, log.InfoLevel, false},
		{"bad level", Options{Level: "loud"}, 0, true},
		{"bad format", Options{Format: "xml"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := New(&bytes.Buffer{}, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if logger.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Format: FormatJSON, Prefix: "host"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("module loaded", "module", "echo")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if line["msg"] != "module loaded" || line["module"] != "echo" || line["prefix"] != "host" {
		t.Errorf("line = %v", line)
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	if _, err := ParseFormat("yaml"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("ParseFormat(yaml) error = %v", err)
	}
	if f, err := ParseFormat("JSON"); err != nil || f != log.JSONFormatter {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, _ := New(&buf, Options{})
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}
