// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// ModulePackage describes a package written by WriteModulePackage.
type ModulePackage struct {
	Name       string
	Version    string
	Entry      string
	LoadBefore []string
	// Capabilities are extra capability requests.
	Capabilities []string
	// Commands maps command names to scripts for "script" entries.
	Commands map[string]string
	// Dir overrides the directory name, which defaults to Name.
	Dir string
}

// WriteModulePackage writes a package directory with a module.yaml
// manifest under root and returns its path. Version defaults to 1.0.0 and
// Entry to "builtin:<Name>".
func WriteModulePackage(t testing.TB, root string, pkg ModulePackage) string {
	t.Helper()

	dirName := pkg.Dir
	if dirName == "" {
		dirName = pkg.Name
	}
	dir := filepath.Join(root, dirName)
	MustMkdirAll(t, dir, 0o755)
	MustWriteFile(t, filepath.Join(dir, "module.yaml"), []byte(ManifestYAML(pkg)), 0o644)
	return dir
}

// ManifestYAML renders pkg as a module.yaml document.
func ManifestYAML(pkg ModulePackage) string {
	version := pkg.Version
	if version == "" {
		version = "1.0.0"
	}
	entry := pkg.Entry
	if entry == "" {
		entry = "builtin:" + pkg.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\nversion: %s\nentry: %q\n", pkg.Name, version, entry)
	writeList(&b, "load_before", pkg.LoadBefore)
	writeList(&b, "capabilities", pkg.Capabilities)
	if len(pkg.Commands) > 0 {
		b.WriteString("commands:\n")
		for _, name := range slices.Sorted(maps.Keys(pkg.Commands)) {
			fmt.Fprintf(&b, "  - name: %s\n    script: %q\n", name, pkg.Commands[name])
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, key string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", key)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}
