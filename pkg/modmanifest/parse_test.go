// SPDX-License-Identifier: MPL-2.0

package modmanifest

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestParseDirFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		file    string
		content string
	}{
		{"module.cue", `
name:         "alpha"
version:      "1.2.3"
entry:        "builtin:echo"
load_before:  ["beta"]
capabilities: ["GUILD_MESSAGES"]
`},
		{"module.yaml", `
name: alpha
version: 1.2.3
entry: builtin:echo
load_before: [beta]
capabilities: [GUILD_MESSAGES]
`},
		{"module.yml", `
name: alpha
version: "1.2.3"
entry: "builtin:echo"
load_before:
  - beta
capabilities:
  - GUILD_MESSAGES
`},
		{"module.toml", `
name = "alpha"
version = "1.2.3"
entry = "builtin:echo"
load_before = ["beta"]
capabilities = ["GUILD_MESSAGES"]
`},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)

			d, err := ParseDir(dir)
			if err != nil {
				t.Fatalf("ParseDir() error: %v", err)
			}
			if d.Name != "alpha" || d.Version != "1.2.3" || d.Entry != "builtin:echo" {
				t.Errorf("unexpected descriptor: %+v", d)
			}
			if !slices.Equal(d.LoadBefore, []Name{"beta"}) {
				t.Errorf("LoadBefore = %v", d.LoadBefore)
			}
			if !slices.Equal(d.Capabilities, []string{"GUILD_MESSAGES"}) {
				t.Errorf("Capabilities = %v", d.Capabilities)
			}
			if d.Dir != dir || d.Source != filepath.Join(dir, tt.file) {
				t.Errorf("Dir/Source = %q/%q", d.Dir, d.Source)
			}
		})
	}
}

func TestParseDirScriptModule(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "module.cue", `
name:    "tools"
version: "0.1.0"
entry:   "script"
commands: [
	{name: "hello", group: "fun", description: "say hi", script: "echo hello $1"},
]
`)

	d, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir() error: %v", err)
	}
	if len(d.Commands) != 1 || d.Commands[0].Group != "fun" || d.Commands[0].Script != "echo hello $1" {
		t.Errorf("unexpected commands: %+v", d.Commands)
	}
}

func TestParseDirErrors(t *testing.T) {
	t.Parallel()

	t.Run("no manifest", func(t *testing.T) {
		t.Parallel()

		_, err := ParseDir(t.TempDir())
		if !errors.Is(err, ErrManifestInvalid) || !errors.Is(err, ErrManifestNotFound) {
			t.Fatalf("expected invalid + not found, got %v", err)
		}
	})

	t.Run("cue schema violation", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, dir, "module.cue", `name: "x", version: "1.0.0", entry: "java:Main"`)
		_, err := ParseDir(dir)
		if !errors.Is(err, ErrManifestInvalid) {
			t.Fatalf("expected ErrManifestInvalid, got %v", err)
		}
		var mErr *InvalidManifestError
		if !errors.As(err, &mErr) || mErr.Path != filepath.Join(dir, "module.cue") {
			t.Errorf("expected InvalidManifestError for module.cue, got %v", err)
		}
	})

	t.Run("yaml unknown field", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, dir, "module.yaml", "name: x\nversion: 1.0.0\nentry: builtin:e\nmain: Foo\n")
		if _, err := ParseDir(dir); !errors.Is(err, ErrManifestInvalid) {
			t.Fatalf("expected ErrManifestInvalid, got %v", err)
		}
	})

	t.Run("toml go-side validation", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, dir, "module.toml", "name = \"x\"\nversion = \"nope\"\nentry = \"builtin:e\"\n")
		_, err := ParseDir(dir)
		if !errors.Is(err, ErrInvalidVersion) {
			t.Fatalf("expected ErrInvalidVersion, got %v", err)
		}
	})

	t.Run("cue takes precedence over yaml", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, dir, "module.cue", `name: "from-cue", version: "1.0.0", entry: "builtin:e"`)
		writeFile(t, dir, "module.yaml", "name: from-yaml\nversion: 1.0.0\nentry: builtin:e\n")
		d, err := ParseDir(dir)
		if err != nil {
			t.Fatalf("ParseDir() error: %v", err)
		}
		if d.Name != "from-cue" {
			t.Errorf("Name = %q, want from-cue", d.Name)
		}
	})
}

func TestHasManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if HasManifest(dir) {
		t.Error("empty dir should have no manifest")
	}
	writeFile(t, dir, "module.toml", "")
	if !HasManifest(dir) {
		t.Error("module.toml should be found")
	}
}

func TestParseBytesUnknownFormat(t *testing.T) {
	t.Parallel()

	if _, err := ParseBytes([]byte("{}"), "json", "m.json"); !errors.Is(err, ErrManifestInvalid) {
		t.Fatalf("expected ErrManifestInvalid, got %v", err)
	}
}
