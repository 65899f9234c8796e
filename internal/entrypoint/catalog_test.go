// SPDX-License-Identifier: MPL-2.0

package entrypoint

import (
	"errors"
	"slices"
	"testing"

	"github.com/modhost/modhost/pkg/hostapi"
	"github.com/modhost/modhost/pkg/modmanifest"
)

func TestCatalogRegisterAndInstantiate(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	c.Register("noop", func() hostapi.Module { return hostapi.BaseModule{} })
	c.Register("alpha", func() hostapi.Module { return hostapi.BaseModule{} })

	if got := c.IDs(); !slices.Equal(got, []string{"alpha", "noop"}) {
		t.Errorf("IDs() = %v", got)
	}

	m, err := c.Instantiate(&modmanifest.Descriptor{Name: "x", Entry: "builtin:noop"})
	if err != nil || m == nil {
		t.Fatalf("Instantiate(builtin:noop) = %v, %v", m, err)
	}

	_, err = c.Instantiate(&modmanifest.Descriptor{Name: "x", Entry: "builtin:missing"})
	if !errors.Is(err, ErrUnknownBuiltin) {
		t.Errorf("Instantiate(builtin:missing) = %v, want ErrUnknownBuiltin", err)
	}

	_, err = c.Instantiate(&modmanifest.Descriptor{Name: "x", Entry: "java:Main"})
	if !errors.Is(err, ErrUnsupportedEntry) {
		t.Errorf("Instantiate(java:Main) = %v, want ErrUnsupportedEntry", err)
	}
}

func TestCatalogNilModule(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	c.Register("nil", func() hostapi.Module { return nil })
	if _, err := c.Instantiate(&modmanifest.Descriptor{Name: "x", Entry: "builtin:nil"}); err == nil {
		t.Fatal("expected error for nil module")
	}
}

func TestCatalogRegisterPanics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(c *Catalog)
	}{
		{"duplicate", func(c *Catalog) {
			c.Register("dup", func() hostapi.Module { return hostapi.BaseModule{} })
			c.Register("dup", func() hostapi.Module { return hostapi.BaseModule{} })
		}},
		{"empty id", func(c *Catalog) {
			c.Register("", func() hostapi.Module { return hostapi.BaseModule{} })
		}},
		{"nil factory", func(c *Catalog) { c.Register("x", nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn(NewCatalog())
		})
	}
}
