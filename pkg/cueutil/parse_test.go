// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSchema = `
#Thing: {
	name:   string & =~"^[a-z]+$"
	count?: int & >=0
	tags?: [...string]
}
`

type thing struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	t.Run("valid data decodes", func(t *testing.T) {
		t.Parallel()

		res, err := ParseAndDecode[thing]([]byte(testSchema), []byte(`name: "alpha", count: 3, tags: ["x"]`), "#Thing")
		if err != nil {
			t.Fatalf("ParseAndDecode() error: %v", err)
		}
		if res.Value.Name != "alpha" || res.Value.Count != 3 || len(res.Value.Tags) != 1 {
			t.Errorf("unexpected value: %+v", res.Value)
		}
	})

	t.Run("schema violation names the field", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[thing]([]byte(testSchema), []byte(`name: "Alpha"`), "#Thing", WithFilename("thing.cue"))
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "thing.cue") || !strings.Contains(err.Error(), "name") {
			t.Errorf("error should name file and field, got: %v", err)
		}
	})

	t.Run("closed definition rejects unknown fields", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseAndDecode[thing]([]byte(testSchema), []byte(`name: "a", bogus: 1`), "#Thing"); err == nil {
			t.Fatal("expected error for unknown field")
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseAndDecode[thing]([]byte(testSchema), []byte(`name: `), "#Thing"); err == nil {
			t.Fatal("expected syntax error")
		}
	})

	t.Run("size limit", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[thing]([]byte(testSchema), []byte(`name: "abc"`), "#Thing", WithMaxFileSize(4))
		if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
			t.Fatalf("expected size error, got %v", err)
		}
	})

	t.Run("missing definition is internal error", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[thing]([]byte(testSchema), []byte(`name: "a"`), "#Missing")
		if err == nil || !strings.Contains(err.Error(), "internal error") {
			t.Fatalf("expected internal error, got %v", err)
		}
	})
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "thing.cue")
	if err := os.WriteFile(path, []byte(`name: "beta"`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := ParseFile[thing]([]byte(testSchema), path, "#Thing")
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if res.Value.Name != "beta" {
		t.Errorf("Name = %q, want beta", res.Value.Name)
	}

	if _, err := ParseFile[thing]([]byte(testSchema), filepath.Join(t.TempDir(), "nope.cue"), "#Thing"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDecodeMap(t *testing.T) {
	t.Parallel()

	m, err := DecodeMap([]byte(testSchema), []byte(`name: "gamma"`), "#Thing", WithConcrete(false))
	if err != nil {
		t.Fatalf("DecodeMap() error: %v", err)
	}
	if m["name"] != "gamma" {
		t.Errorf("name = %v, want gamma", m["name"])
	}
	if _, ok := m["count"]; ok {
		t.Error("optional field should be absent when unset")
	}
}
