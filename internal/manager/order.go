// SPDX-License-Identifier: MPL-2.0

package manager

import (
	"github.com/modhost/modhost/internal/dag"
	"github.com/modhost/modhost/pkg/modmanifest"
)

// missingTargets returns the load-before targets of d that are not
// registered yet.
func missingTargets(d *modmanifest.Descriptor, registered func(string) bool) []string {
	var missing []string
	for _, dep := range d.LoadBefore {
		if !registered(string(dep)) {
			missing = append(missing, string(dep))
		}
	}
	return missing
}

// unresolved builds the errors reported when the no-progress guard fires
// for the descriptors left in pending.
func unresolved(pending []*modmanifest.Descriptor, registered func(string) bool) []*DependencyError {
	g := dag.New()
	seen := make(map[string]bool, len(pending))
	for _, d := range pending {
		name := string(d.Name)
		if seen[name] {
			// The first descriptor of a duplicated name wins.
			continue
		}
		seen[name] = true
		g.AddNode(name)
		for _, dep := range d.LoadBefore {
			g.AddEdge(name, string(dep))
		}
	}
	cycles := g.Cycles()

	errs := make([]*DependencyError, 0, len(pending))
	for _, d := range pending {
		errs = append(errs, &DependencyError{
			Module:  string(d.Name),
			Missing: missingTargets(d, registered),
			Cycle:   cycles[string(d.Name)],
		})
	}
	return errs
}
